package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"susu/internal/auth"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// Session is the outcome of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

// UserService administers the accounts allowed to use the API.
type UserService struct {
	st  store.UserStore
	jwt *auth.JWTManager
	now func() time.Time
}

func NewUserService(st store.UserStore, jwt *auth.JWTManager) *UserService {
	return &UserService{st: st, jwt: jwt, now: utcNow}
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, email, displayName, password string, role core.Role) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var fields []core.FieldError
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		fields = append(fields, core.FieldError{Field: "email", Error: "is not a valid address"})
	}
	if err := auth.ValidatePassword(password); err != nil {
		fields = append(fields, core.FieldError{Field: "password", Error: err.Error()})
	}
	if role == "" {
		role = core.RoleViewer
	}
	if !role.Valid() {
		fields = append(fields, core.FieldError{Field: "role", Error: "must be admin or viewer"})
	}
	if len(fields) > 0 {
		return core.User{}, core.NewValidationError(errors.New("invalid user"), fields...)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	if displayName == "" {
		displayName = email
	}
	u := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.st.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, "role", string(u.Role))
	return u, nil
}

// Authenticate checks the credentials and returns the account. Unknown
// emails and wrong passwords both yield auth.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Login authenticates and issues a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		slog.WarnContext(ctx, "Login failed", log.FieldErrorType, log.ErrorTypeAuth)
		return Session{}, err
	}
	return s.IssueToken(u)
}

func (s *UserService) IssueToken(u core.User) (Session, error) {
	token, err := s.jwt.Generate(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: s.now().Add(s.jwt.TTL()), User: u}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (core.User, error) {
	return s.st.GetUserByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]core.User, error) {
	return s.st.ListUsers(ctx)
}

// Delete removes an account. The last admin cannot be removed.
func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.st.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == core.RoleAdmin {
		users, err := s.st.ListUsers(ctx)
		if err != nil {
			return err
		}
		admins := 0
		for _, other := range users {
			if other.Role == core.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return core.Invalid("id", "cannot delete the last admin")
		}
	}
	if err := s.st.DeleteUser(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User deleted", log.FieldUserID, id)
	return nil
}

// EnsureAdmin creates the bootstrap admin when no account with email exists.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if _, err := s.Register(ctx, email, "Administrator", password, core.RoleAdmin); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Bootstrap admin created", "email", email)
	return nil
}
