package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/validator"
)

// ErrInvalidIdentity is returned by SetIdentity for identities that fail
// validation.
var ErrInvalidIdentity = errors.New("invalid identity")

// Store is the single source of truth for who is signed in. Every change is
// mirrored to Storage before SetIdentity/Clear return.
//
// Absence of an identity is not an error: callers treat a nil identity as
// unauthenticated.
type Store struct {
	mu       sync.RWMutex
	identity *model.Identity
	storage  Storage
	log      zerolog.Logger
	now      func() time.Time
}

// NewStore creates a Store backed by storage. Call Restore to pick up a
// previously persisted session.
func NewStore(storage Storage, log zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		log:     log.With().Str("component", "session_store").Logger(),
		now:     time.Now,
	}
}

// Restore loads the persisted identity. Malformed or expired data is purged
// and the store stays signed out; only storage I/O failures are returned.
func (s *Store) Restore(ctx context.Context) error {
	data, err := s.storage.Load(ctx)
	if errors.Is(err, ErrNoData) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	id, err := s.decode(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("Discarding stored session")
		if clearErr := s.storage.Clear(ctx); clearErr != nil {
			return fmt.Errorf("purge session: %w", clearErr)
		}
		return nil
	}

	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()

	s.log.Debug().Str("role", string(id.Role)).Int("id", id.ID).Msg("Session restored")
	return nil
}

func (s *Store) decode(data []byte) (*model.Identity, error) {
	var id model.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if fields := validator.Struct(id); fields != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, fields)
	}
	if err := checkCredential(id.Token, s.now()); err != nil {
		return nil, err
	}
	normalize(&id)
	return &id, nil
}

// SetIdentity replaces the current identity. A non-nil identity is persisted;
// nil clears storage.
func (s *Store) SetIdentity(ctx context.Context, id *model.Identity) error {
	if id == nil {
		return s.Clear(ctx)
	}

	if fields := validator.Struct(id); fields != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, fields)
	}
	if err := checkCredential(id.Token, s.now()); err != nil {
		return err
	}

	next := clone(id)
	normalize(next)

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	var ttl time.Duration
	if exp, ok := CredentialExpiry(next.Token); ok {
		ttl = exp.Sub(s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Save(ctx, data, ttl); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.identity = next
	return nil
}

// Clear signs out: removes the identity and its storage entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.identity)
}

// Token returns the bearer credential, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Token
}

func (s *Store) hasRole(r model.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == r
}

func (s *Store) IsStudent() bool { return s.hasRole(model.RoleStudent) }
func (s *Store) IsTeacher() bool { return s.hasRole(model.RoleTeacher) }
func (s *Store) IsAdmin() bool   { return s.hasRole(model.RoleAdmin) }

// Student returns the identity only if it is a student; its Student profile
// is always non-nil.
func (s *Store) Student() *model.Identity { return s.narrow(model.RoleStudent) }

// Teacher returns the identity only if it is a teacher.
func (s *Store) Teacher() *model.Identity { return s.narrow(model.RoleTeacher) }

// Admin returns the identity only if it is an admin.
func (s *Store) Admin() *model.Identity { return s.narrow(model.RoleAdmin) }

func (s *Store) narrow(r model.Role) *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil || s.identity.Role != r {
		return nil
	}
	return clone(s.identity)
}

// normalize keeps exactly the profile matching the role.
func normalize(id *model.Identity) {
	switch id.Role {
	case model.RoleStudent:
		if id.Student == nil {
			id.Student = &model.StudentProfile{}
		}
		id.Teacher, id.Admin = nil, nil
	case model.RoleTeacher:
		if id.Teacher == nil {
			id.Teacher = &model.TeacherProfile{}
		}
		id.Student, id.Admin = nil, nil
	case model.RoleAdmin:
		if id.Admin == nil {
			id.Admin = &model.AdminProfile{}
		}
		id.Student, id.Teacher = nil, nil
	}
}

func clone(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	c := *id
	if id.Student != nil {
		p := *id.Student
		c.Student = &p
	}
	if id.Teacher != nil {
		p := *id.Teacher
		c.Teacher = &p
	}
	if id.Admin != nil {
		p := *id.Admin
		p.Permissions = append([]string(nil), id.Admin.Permissions...)
		c.Admin = &p
	}
	return &c
}
