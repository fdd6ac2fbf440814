package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"scriptshare/internal/server/auth"
	"scriptshare/internal/server/database"
)

// UserUpdate is a partial user update: only non-nil fields are merged into
// the stored record. Permissions are replaced wholesale when present;
// partial merges inside the bag are the caller's responsibility.
type UserUpdate struct {
	Name        *string               `json:"name"`
	Email       *string               `json:"email"`
	Role        *database.Role        `json:"role"`
	CanUpload   *bool                 `json:"canUpload"`
	SkipReview  *bool                 `json:"skipReview"`
	Permissions *database.Permissions `json:"permissions"`
}

// LoginResult is the authenticated user plus their session token.
type LoginResult struct {
	User  *database.User `json:"user"`
	Token string         `json:"token"`
}

// UserService manages account records and demo-grade login.
type UserService struct {
	users  UserStore
	issuer *auth.Issuer
}

// NewUserService creates a new user registry service.
func NewUserService(users UserStore, issuer *auth.Issuer) *UserService {
	return &UserService{users: users, issuer: issuer}
}

// Login looks the account up by exact email match and issues a session
// token. The password must be non-empty but is never verified: this is a
// deliberate demo-grade stand-in, not production authentication.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, missingField("email")
	}
	if password == "" {
		return nil, missingField("password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)
	return &LoginResult{User: user, Token: token}, nil
}

// Create synthesizes id, join date and upload count, fills defaults for the
// rest, and persists. Email format and uniqueness are not validated.
func (s *UserService) Create(ctx context.Context, upd UserUpdate) (*database.User, error) {
	user := &database.User{
		ID:          newID(),
		Role:        database.RoleUser,
		CanUpload:   true,
		JoinDate:    time.Now().Format("2006-01-02"),
		UploadCount: 0,
		Permissions: database.DefaultPermissions(),
	}
	applyUserUpdate(user, upd)

	if user.Name == "" {
		return nil, missingField("name")
	}
	if user.Email == "" {
		return nil, missingField("email")
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Register is self-signup: a plain user with the default permission bag.
// The allowUserRegistration setting only hides the signup UI; it is not a
// hard gate here.
func (s *UserService) Register(ctx context.Context, name, email string) (*database.User, error) {
	role := database.RoleUser
	return s.Create(ctx, UserUpdate{Name: &name, Email: &email, Role: &role})
}

// Update shallow-merges the provided fields into the stored record.
func (s *UserService) Update(ctx context.Context, id string, upd UserUpdate) (*database.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	applyUserUpdate(user, upd)

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Delete removes the account. The user's scripts stay behind, unowned.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}
	slog.Info("user deleted", "user_id", id)
	return nil
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context) ([]*database.User, error) {
	return s.users.List(ctx)
}

// GetByID returns one account.
func (s *UserService) GetByID(ctx context.Context, id string) (*database.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func applyUserUpdate(user *database.User, upd UserUpdate) {
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.CanUpload != nil {
		user.CanUpload = *upd.CanUpload
	}
	if upd.SkipReview != nil {
		user.SkipReview = *upd.SkipReview
	}
	if upd.Permissions != nil {
		user.Permissions = *upd.Permissions
	}
}
