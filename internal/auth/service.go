package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/platform/httpx"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

// Authenticator is the backend login call.
type Authenticator interface {
	EmailLogin(ctx context.Context, creds apiclient.Credentials) (apiclient.LoginResult, error)
}

// Service wraps authentication business rules.
type Service struct {
	backend Authenticator
}

// NewService constructs a new Service.
func NewService(backend Authenticator) *Service {
	return &Service{backend: backend}
}

// Authenticate exchanges email and password for an identity and bearer token.
// Credentials the backend rejects return shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (shared.Identity, string, error) {
	res, err := s.backend.EmailLogin(ctx, apiclient.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrForbidden) {
			return shared.Identity{}, "", shared.ErrInvalidCredentials
		}
		return shared.Identity{}, "", err
	}
	token := res.BearerToken()
	if token == "" {
		return shared.Identity{}, "", shared.ErrInvalidCredentials
	}
	return IdentityOf(res.User), token, nil
}

// IdentityOf maps a backend profile onto the session identity.
func IdentityOf(p apiclient.Profile) shared.Identity {
	return shared.Identity{UserID: p.ID, Username: p.Username, Role: p.Role, Department: p.Department}
}
