package users

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

// RepositoryPort defines the backend calls the manager makes.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, d Draft) (User, error)
	Update(ctx context.Context, id int64, f IdentityFields) (User, error)
	Delete(ctx context.Context, id int64) error
	SetRole(ctx context.Context, id int64, role, department string) error
	Activate(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
	ResetPassword(ctx context.Context, id int64, password string) error
}

// Notifier is told about accounts after the backend accepted a change.
type Notifier interface {
	Welcome(ctx context.Context, u User) error
	PasswordReset(ctx context.Context, u User) error
}

const (
	noticeWelcome       = "welcome"
	noticePasswordReset = "password_reset"
)

// Manager owns the local user list of one view. Each operation makes its
// backend call first and touches the list only after it succeeded. Once
// unmounted, late responses no longer change the list.
type Manager struct {
	repo     RepositoryPort
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate

	mu      sync.Mutex
	users   []User
	mounted bool
}

// NewManager mounts a manager over repo. notifier may be nil.
func NewManager(repo RepositoryPort, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{repo: repo, notifier: notifier, logger: logger, validate: validator.New(), mounted: true}
}

// Unmount detaches the manager from its view.
func (m *Manager) Unmount() {
	m.mu.Lock()
	m.mounted = false
	m.mu.Unlock()
}

// Users returns a copy of the local list.
func (m *Manager) Users() []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users)
}

// Find returns the loaded user with id.
func (m *Manager) Find(id int64) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return User{}, false
	}
	return m.users[idx], true
}

// ListUsers replaces the local list with the backend's. A failure leaves the
// list empty.
func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	list, err := m.repo.List(ctx)
	if err != nil {
		m.apply(func() { m.users = nil })
		return nil, fmt.Errorf("list users: %w", err)
	}
	m.apply(func() { m.users = slices.Clone(list) })
	return list, nil
}

// CreateUser creates the account and then assigns its role. When the role
// assignment fails the account is deleted again; when that delete fails too
// the result is a *PartialCreateError and the account joins the list with
// the role the backend gave it.
func (m *Manager) CreateUser(ctx context.Context, d Draft) (User, error) {
	if d.Password != d.ConfirmPassword {
		return User{}, ErrPasswordMismatch
	}
	d = trimDraft(d)
	if err := m.validate.Struct(d); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !shared.IsKnownRole(d.Role) {
		return User{}, fmt.Errorf("create user with role %q: %w", d.Role, ErrUnknownRole)
	}

	created, err := m.repo.Create(ctx, d)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if err := m.repo.SetRole(ctx, created.ID, d.Role, d.Department); err != nil {
		if rbErr := m.repo.Delete(context.WithoutCancel(ctx), created.ID); rbErr != nil {
			m.logger.Error("user rollback failed", slog.Int64("user_id", created.ID), slog.Any("error", rbErr))
			m.apply(func() { m.users = append(m.users, created) })
			return created, &PartialCreateError{User: created, AssignErr: err, RollbackErr: rbErr}
		}
		return User{}, fmt.Errorf("assign role to new user: %w", err)
	}
	created.Role = d.Role
	created.Department = d.Department
	m.apply(func() { m.users = append(m.users, created) })
	m.notify(ctx, noticeWelcome, created)
	return created, nil
}

// UpdateUser saves identity fields. Role, department and active state are
// left as they are.
func (m *Manager) UpdateUser(ctx context.Context, id int64, f IdentityFields) (User, error) {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	if err := m.validate.Struct(f); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := m.repo.Update(ctx, id, f); err != nil {
		return User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	var out User
	m.apply(func() {
		if idx := m.indexOf(id); idx >= 0 {
			u := &m.users[idx]
			u.Username, u.Email, u.FirstName, u.LastName = f.Username, f.Email, f.FirstName, f.LastName
			out = *u
		}
	})
	if out.ID == 0 {
		out = User{ID: id, Username: f.Username, Email: f.Email, FirstName: f.FirstName, LastName: f.LastName}
	}
	return out, nil
}

// SetRole assigns role and department together.
func (m *Manager) SetRole(ctx context.Context, id int64, role, department string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("%w: role is required", ErrValidation)
	}
	if !shared.IsKnownRole(role) {
		return fmt.Errorf("set role of user %d to %q: %w", id, role, ErrUnknownRole)
	}
	department = strings.TrimSpace(department)
	if err := m.repo.SetRole(ctx, id, role, department); err != nil {
		return fmt.Errorf("set role of user %d: %w", id, err)
	}
	m.apply(func() {
		if idx := m.indexOf(id); idx >= 0 {
			m.users[idx].Role = role
			m.users[idx].Department = department
		}
	})
	return nil
}

// ToggleActive deactivates an active user or activates an inactive one. The
// user must be in the loaded list.
func (m *Manager) ToggleActive(ctx context.Context, id int64) (bool, error) {
	u, ok := m.Find(id)
	if !ok {
		return false, ErrNotFound
	}
	var err error
	if u.IsActive {
		err = m.repo.Deactivate(ctx, id)
	} else {
		err = m.repo.Activate(ctx, id)
	}
	if err != nil {
		return u.IsActive, fmt.Errorf("toggle user %d: %w", id, err)
	}
	m.apply(func() {
		if idx := m.indexOf(id); idx >= 0 {
			m.users[idx].IsActive = !u.IsActive
		}
	})
	return !u.IsActive, nil
}

// ResetPassword sets a new password. Nothing local changes.
func (m *Manager) ResetPassword(ctx context.Context, id int64, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := m.validate.Var(password, "required,min=8"); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := m.repo.ResetPassword(ctx, id, password); err != nil {
		return fmt.Errorf("reset password of user %d: %w", id, err)
	}
	if u, ok := m.Find(id); ok {
		m.notify(ctx, noticePasswordReset, u)
	}
	return nil
}

// DeleteUser removes the account permanently.
func (m *Manager) DeleteUser(ctx context.Context, id int64) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	m.apply(func() {
		if idx := m.indexOf(id); idx >= 0 {
			m.users = slices.Delete(m.users, idx, idx+1)
		}
	})
	return nil
}

// apply runs fn under the lock unless the manager was unmounted.
func (m *Manager) apply(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	fn()
}

func (m *Manager) indexOf(id int64) int {
	return slices.IndexFunc(m.users, func(u User) bool { return u.ID == id })
}

// notify queues a notice for u. Queue failures are only logged.
func (m *Manager) notify(ctx context.Context, kind string, u User) {
	if m.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	switch kind {
	case noticeWelcome:
		err = m.notifier.Welcome(ctx, u)
	case noticePasswordReset:
		err = m.notifier.PasswordReset(ctx, u)
	}
	if err != nil {
		m.logger.Warn("queue user notification", slog.String("kind", kind), slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
}

func trimDraft(d Draft) Draft {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Role = strings.TrimSpace(d.Role)
	d.Department = strings.TrimSpace(d.Department)
	return d
}
