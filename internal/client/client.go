package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/validator"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Credentials supplies the bearer token for every authenticated call.
// *session.Store satisfies it.
type Credentials interface {
	Token() string
}

// Client is a typed, authenticated wrapper over the portal API.
// It performs exactly one HTTP request per call and never retries.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for cfg.APIBaseURL.
func New(cfg *config.Config, creds Credentials, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: cfg.APIBaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		creds:   creds,
		log:     log.With().Str("component", "api_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	public bool // no bearer token
}

// do issues r and decodes a 2xx payload into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	if r.body != nil {
		if fields := validator.Struct(r.body); fields != nil {
			return &Error{Kind: KindValidationFailed, Op: r.op, Code: response.ErrValidation,
				Message: response.GetMessage(response.ErrValidation), Fields: fields}
		}
	}

	token := ""
	if !r.public {
		token = c.creds.Token()
		if token == "" {
			return &Error{Kind: KindAuthRequired, Op: r.op, Code: response.ErrTokenRequired,
				Message: response.GetMessage(response.ErrTokenRequired)}
		}
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}

	reqID := response.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(response.HeaderRequestID, reqID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", r.op).Str("request_id", reqID).Msg("Request failed")
		return &Error{Kind: KindNetworkUnreachable, Op: r.op, RequestID: reqID, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return &Error{Kind: KindNetworkUnreachable, Op: r.op, Status: res.StatusCode, RequestID: reqID, Err: err}
	}

	c.log.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", res.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", reqID).
		Msg("API call")

	if res.StatusCode/100 != 2 {
		return statusError(r.op, res.StatusCode, raw, reqID)
	}

	if out == nil {
		return nil
	}
	payload := response.Unwrap(raw)
	if len(payload) == 0 {
		return &Error{Kind: KindServerError, Op: r.op, Status: res.StatusCode, RequestID: reqID,
			Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Kind: KindServerError, Op: r.op, Status: res.StatusCode, RequestID: reqID,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
