package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"droppers-api/apperr"
	"droppers-api/config"
	"droppers-api/logx"
	"droppers-api/models"
)

type RegisterInput struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,password"`
	Name     string          `json:"name" validate:"required,personname"`
	Phone    string          `json:"phone" validate:"required,phone"`
	Role     models.UserRole `json:"role" validate:"required,oneof=VENDOR DELIVERY_PARTNER"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type claims struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users    userStore
	secret   []byte
	ttl      time.Duration
	rules    config.Rules
	validate *validator.Validate
	hashCost int
	log      logx.Logger
	now      func() time.Time
}

type AuthOption func(*AuthService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) { s.hashCost = cost }
}

// WithClock overrides the time source used for token timestamps.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(users userStore, auth config.Auth, rules config.Rules, log logx.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		secret:   []byte(auth.JWTSecret),
		ttl:      auth.TokenTTL,
		rules:    rules,
		validate: newValidator(rules),
		hashCost: bcrypt.DefaultCost,
		log:      log.With(logx.String("component", "auth")),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a vendor or delivery partner account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(s.validate, s.rules, in); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperr.New(apperr.Conflict, "email already registered")
	} else if !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}

	user, err := s.createUser(ctx, in.Email, in.Password, in.Name, in.Phone, in.Role)
	if err != nil {
		return nil, err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", logx.String("user_id", user.ID), logx.String("role", string(user.Role)))
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, name, phone string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to hash password", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperr.New(apperr.Authentication, "invalid email or password")
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.Authorization, "account is deactivated")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Profile returns the caller's own user record.
func (s *AuthService) Profile(ctx context.Context, caller Caller) (*models.User, error) {
	return s.users.FindByID(ctx, caller.ID)
}

// ListUsers is an admin view over all accounts.
func (s *AuthService) ListUsers(ctx context.Context, caller Caller, role models.UserRole) ([]models.User, error) {
	if caller.Role != models.RoleAdmin {
		return nil, apperr.New(apperr.Authorization, "admin access required")
	}
	if role != "" && !role.Valid() {
		return nil, apperr.Newf(apperr.Validation, "unknown role %q", role)
	}
	return s.users.List(ctx, role)
}

// SetUserActive lets an admin suspend or restore an account. Suspended
// accounts cannot log in. Admins cannot suspend themselves.
func (s *AuthService) SetUserActive(ctx context.Context, caller Caller, id string, active bool) (*models.User, error) {
	if caller.Role != models.RoleAdmin {
		return nil, apperr.New(apperr.Authorization, "admin access required")
	}
	if id == caller.ID && !active {
		return nil, apperr.New(apperr.Validation, "admins cannot deactivate their own account")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.log.Info("account status changed", logx.String("user_id", id), logx.Bool("active", active))
	return s.users.FindByID(ctx, id)
}

// EnsureAdmin creates the bootstrap administrator if the email is not taken yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			return false, apperr.Newf(apperr.Conflict, "%s exists and is not an admin", email)
		}
		return false, nil
	case !apperr.Is(err, apperr.NotFound):
		return false, err
	}
	if len(password) < s.rules.MinPasswordLength {
		return false, apperr.Newf(apperr.Validation, "admin password must be at least %d characters", s.rules.MinPasswordLength)
	}
	if _, err := s.createUser(ctx, email, password, "Administrator", "", models.RoleAdmin); err != nil {
		return false, err
	}
	s.log.Info("admin account created", logx.String("email", email))
	return true, nil
}

// IssueToken signs an HS256 bearer token for u.
func (s *AuthService) IssueToken(u *models.User) (string, error) {
	now := s.now()
	c := claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to generate token", err)
	}
	return token, nil
}

// ParseToken verifies a bearer token and returns the caller it names.
func (s *AuthService) ParseToken(token string) (Caller, error) {
	if token == "" {
		return Caller{}, apperr.New(apperr.Authentication, "authorization token required")
	}
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Caller{}, apperr.Wrap(apperr.Authentication, "token expired", err)
		}
		return Caller{}, apperr.Wrap(apperr.Authentication, "invalid token", err)
	}
	if c.Subject == "" || !c.Role.Valid() {
		return Caller{}, apperr.New(apperr.Authentication, "invalid token claims")
	}
	return Caller{ID: c.Subject, Email: c.Email, Role: c.Role}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
