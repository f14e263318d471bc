package users

import (
	"context"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
)

// Repository adapts the backend user endpoints to RepositoryPort.
type Repository struct {
	api apiclient.UsersAPI
}

// NewRepository constructs a repository over the user call group of a
// session-bound client.
func NewRepository(api apiclient.UsersAPI) *Repository {
	return &Repository{api: api}
}

// List implements RepositoryPort.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	records, err := r.api.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, len(records))
	for i, rec := range records {
		out[i] = fromRecord(rec)
	}
	return out, nil
}

// Create implements RepositoryPort.
func (r *Repository) Create(ctx context.Context, d Draft) (User, error) {
	rec, err := r.api.Create(ctx, apiclient.NewUser{
		Username:        d.Username,
		Email:           d.Email,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Password:        d.Password,
		PasswordConfirm: d.ConfirmPassword,
	})
	if err != nil {
		return User{}, err
	}
	return fromRecord(rec), nil
}

// Update implements RepositoryPort.
func (r *Repository) Update(ctx context.Context, id int64, f IdentityFields) (User, error) {
	rec, err := r.api.Update(ctx, id, apiclient.UserUpdate{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
	})
	if err != nil {
		return User{}, err
	}
	return fromRecord(rec), nil
}

// Delete implements RepositoryPort.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.api.Delete(ctx, id)
}

// SetRole implements RepositoryPort.
func (r *Repository) SetRole(ctx context.Context, id int64, role, department string) error {
	return r.api.SetRole(ctx, id, apiclient.RoleAssignment{Role: role, Department: department})
}

// Activate implements RepositoryPort.
func (r *Repository) Activate(ctx context.Context, id int64) error {
	return r.api.Activate(ctx, id)
}

// Deactivate implements RepositoryPort.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	return r.api.Deactivate(ctx, id)
}

// ResetPassword implements RepositoryPort.
func (r *Repository) ResetPassword(ctx context.Context, id int64, password string) error {
	return r.api.ResetPassword(ctx, id, password)
}

func fromRecord(rec apiclient.UserRecord) User {
	return User{
		ID:         rec.ID,
		Username:   rec.Username,
		Email:      rec.Email,
		FirstName:  rec.FirstName,
		LastName:   rec.LastName,
		IsActive:   rec.IsActive,
		Role:       rec.Role,
		Department: rec.Department,
	}
}
