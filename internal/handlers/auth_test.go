package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/apiserver/types"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[AuthResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "user registered successfully", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, types.RoleUser, resp.User.Role)

	// the token works immediately
	rec = env.do(t, http.MethodGet, "/users/me", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		req     RegisterRequest
		message string
	}{
		{"missing name", RegisterRequest{Email: "a@example.com", Password: "password1"}, "all fields are required"},
		{"missing password", RegisterRequest{Name: "A", Email: "a@example.com"}, "all fields are required"},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "password1"}, "invalid email"},
		{"short password", RegisterRequest{Name: "A", Email: "a@example.com", Password: "short"}, "password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/users/register", "", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		Name:     "Other Alice",
		Email:    "Alice@Example.com",
		Password: "password2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "email already in use", resp.Message)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPost, "/users/login", "", LoginRequest{
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[AuthResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "login successful", resp.Message)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	// unknown email and wrong password produce the same response
	for _, req := range []LoginRequest{
		{Email: "nobody@example.com", Password: "password1"},
		{Email: "alice@example.com", Password: "wrong password"},
	} {
		rec := env.do(t, http.MethodPost, "/users/login", "", req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeBody[ErrorResponse](t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "invalid credentials", resp.Message)
	}
}

func TestLoginBlockedAccount(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)
	_, err := env.users.SetBlocked(context.Background(), user.ID, true)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/users/login", "", LoginRequest{
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "your account has been blocked", resp.Message)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[UserResponse](t, rec)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPut, "/users/profile", token, ProfileRequest{
		Name:  "Alice Cooper",
		Email: "alice.cooper@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "profile updated", resp.Message)
	assert.Equal(t, "Alice Cooper", resp.User.Name)
	assert.Equal(t, "alice.cooper@example.com", resp.User.Email)
}

func TestUpdateProfileDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Bob", "bob@example.com", "password1", types.RoleUser)
	_, token := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPut, "/users/profile", token, ProfileRequest{
		Name:  "Alice",
		Email: "bob@example.com",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPut, "/users/password", token, PasswordRequest{
		OldPassword: "password1",
		NewPassword: "password2!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the old password no longer works, the new one does
	rec = env.do(t, http.MethodPost, "/users/login", "", LoginRequest{Email: "alice@example.com", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/users/login", "", LoginRequest{Email: "alice@example.com", Password: "password2!"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePasswordWrongOld(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "Alice", "alice@example.com", "password1", types.RoleUser)

	rec := env.do(t, http.MethodPut, "/users/password", token, PasswordRequest{
		OldPassword: "not the password",
		NewPassword: "password2!",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "old password is incorrect", resp.Message)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"alice@example.com", "alice@example.com", true},
		{"  Alice@Example.COM ", "alice@example.com", true},
		{"", "", false},
		{"not-an-email", "", false},
		{"Alice <alice@example.com>", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeEmail(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
