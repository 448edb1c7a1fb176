package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"droppers-api/apperr"
	"droppers-api/config"
	"droppers-api/logx"
	"droppers-api/models"
	"droppers-api/repository"
	"droppers-api/testutil"
)

func newAuth(t *testing.T, opts ...AuthOption) (*AuthService, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(testutil.OpenDB(t))
	opts = append([]AuthOption{WithHashCost(bcrypt.MinCost)}, opts...)
	auth := config.Auth{JWTSecret: "test-secret", TokenTTL: time.Hour}
	return NewAuthService(users, auth, config.DefaultRules(), logx.Nop(), opts...), users
}

func registration(email string, role models.UserRole) RegisterInput {
	return RegisterInput{
		Email:    email,
		Password: "hunter22",
		Name:     "Sam Sender",
		Phone:    "+44 20 7946 0958",
		Role:     role,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registration(" Shop@Example.com ", models.RoleVendor))
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "shop@example.com", res.User.Email)
	require.NotEqual(t, "hunter22", res.User.PasswordHash)

	caller, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	require.Equal(t, Caller{ID: res.User.ID, Email: "shop@example.com", Role: models.RoleVendor}, caller)

	login, err := svc.Login(ctx, "SHOP@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "shop@example.com", "wrong-password")
	require.True(t, apperr.Is(err, apperr.Authentication))
	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	require.True(t, apperr.Is(err, apperr.Authentication))
	_, err = svc.Login(ctx, "", "")
	require.True(t, apperr.Is(err, apperr.Validation))

	profile, err := svc.Profile(ctx, caller)
	require.NoError(t, err)
	require.Equal(t, "Sam Sender", profile.Name)
}

func TestRegister_Rejections(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registration("dup@example.com", models.RoleDeliveryPartner))
	require.NoError(t, err)
	_, err = svc.Register(ctx, registration("DUP@example.com", models.RoleVendor))
	require.True(t, apperr.Is(err, apperr.Conflict))

	cases := map[string]func(*RegisterInput){
		"email":    func(in *RegisterInput) { in.Email = "not-an-email" },
		"password": func(in *RegisterInput) { in.Password = "123" },
		"name":     func(in *RegisterInput) { in.Name = "S" },
		"phone":    func(in *RegisterInput) { in.Phone = "555" },
		"role":     func(in *RegisterInput) { in.Role = models.RoleAdmin },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := registration("fresh@example.com", models.RoleVendor)
			mutate(&in)
			_, err := svc.Register(ctx, in)
			require.True(t, apperr.Is(err, apperr.Validation), "%v", err)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			require.Contains(t, ae.Fields, field)
		})
	}
}

func TestLogin_Deactivated(t *testing.T) {
	svc, users := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registration("idle@example.com", models.RoleDeliveryPartner))
	require.NoError(t, err)
	require.NoError(t, users.SetActive(ctx, res.User.ID, false))

	_, err = svc.Login(ctx, "idle@example.com", "hunter22")
	require.True(t, apperr.Is(err, apperr.Authorization))
}

func TestSetUserActive(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	admin := Caller{ID: login.User.ID, Email: login.User.Email, Role: models.RoleAdmin}

	res, err := svc.Register(ctx, registration("rider@example.com", models.RoleDeliveryPartner))
	require.NoError(t, err)
	rider := Caller{ID: res.User.ID, Role: models.RoleDeliveryPartner}

	_, err = svc.SetUserActive(ctx, rider, res.User.ID, false)
	require.True(t, apperr.Is(err, apperr.Authorization))
	_, err = svc.SetUserActive(ctx, admin, admin.ID, false)
	require.True(t, apperr.Is(err, apperr.Validation))
	_, err = svc.SetUserActive(ctx, admin, "missing", false)
	require.True(t, apperr.Is(err, apperr.NotFound))

	u, err := svc.SetUserActive(ctx, admin, res.User.ID, false)
	require.NoError(t, err)
	require.False(t, u.IsActive)
	_, err = svc.Login(ctx, "rider@example.com", "hunter22")
	require.True(t, apperr.Is(err, apperr.Authorization))

	u, err = svc.SetUserActive(ctx, admin, res.User.ID, true)
	require.NoError(t, err)
	require.True(t, u.IsActive)
	_, err = svc.Login(ctx, "rider@example.com", "hunter22")
	require.NoError(t, err)
}

func TestParseToken_Failures(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newAuth(t, WithClock(func() time.Time { return clock }))
	u := &models.User{ID: "u-1", Email: "a@b.test", Role: models.RoleDeliveryPartner}

	token, err := svc.IssueToken(u)
	require.NoError(t, err)

	_, err = svc.ParseToken("")
	require.True(t, apperr.Is(err, apperr.Authentication))
	_, err = svc.ParseToken("garbage.token.value")
	require.True(t, apperr.Is(err, apperr.Authentication))

	other, _ := newAuth(t)
	other.secret = []byte("another-secret")
	_, err = other.ParseToken(token)
	require.True(t, apperr.Is(err, apperr.Authentication))

	clock = now.Add(2 * time.Hour)
	_, err = svc.ParseToken(token)
	require.True(t, apperr.Is(err, apperr.Authentication))
	require.Equal(t, "token expired", apperr.MessageOf(err))
}

func TestEnsureAdminAndListUsers(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root@droppers.test", "supersecret")
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "root@droppers.test", "supersecret")
	require.NoError(t, err)
	require.False(t, created)

	_, err = svc.EnsureAdmin(ctx, "short@droppers.test", "x")
	require.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.Register(ctx, registration("v@example.com", models.RoleVendor))
	require.NoError(t, err)
	_, err = svc.EnsureAdmin(ctx, "v@example.com", "supersecret")
	require.True(t, apperr.Is(err, apperr.Conflict))

	login, err := svc.Login(ctx, "root@droppers.test", "supersecret")
	require.NoError(t, err)
	admin, err := svc.ParseToken(login.Token)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)

	all, err := svc.ListUsers(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	vendors, err := svc.ListUsers(ctx, admin, models.RoleVendor)
	require.NoError(t, err)
	require.Len(t, vendors, 1)

	_, err = svc.ListUsers(ctx, Caller{ID: "x", Role: models.RoleVendor}, "")
	require.True(t, apperr.Is(err, apperr.Authorization))
	_, err = svc.ListUsers(ctx, admin, "ROBOT")
	require.True(t, apperr.Is(err, apperr.Validation))
}
