package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-client/internal/model"
)

// SignIn exchanges credentials for an identity. The returned identity's role
// is forced to the role signed in under.
func (c *Client) SignIn(ctx context.Context, role model.Role, email, password string) (*model.Identity, error) {
	if !role.Valid() {
		return nil, &Error{Kind: KindValidationFailed, Op: "sign in", Message: fmt.Sprintf("unknown role %q", role)}
	}

	var res model.LoginResponse
	if err := c.do(ctx, request{
		op:     "sign in",
		method: http.MethodPost,
		path:   fmt.Sprintf("/auth/%s/login", role),
		body:   model.LoginRequest{Email: email, Password: password},
		public: true,
	}, &res); err != nil {
		return nil, err
	}

	id := res.Identity()
	id.Role = role
	return id, nil
}
