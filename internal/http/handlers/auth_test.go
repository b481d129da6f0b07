package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/repo/postgres"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/gin-gonic/gin"
)

type fakeAuthUsers struct {
	createFn func(ctx context.Context, email, passwordHash, name, locale string) (user.User, error)
	byEmail  func(ctx context.Context, email string) (user.User, error)
	byID     func(ctx context.Context, id int64) (user.User, error)
}

func (f *fakeAuthUsers) Create(ctx context.Context, email, passwordHash, name, locale string) (user.User, error) {
	return f.createFn(ctx, email, passwordHash, name, locale)
}

func (f *fakeAuthUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.byEmail(ctx, email)
}

func (f *fakeAuthUsers) GetByID(ctx context.Context, id int64) (user.User, error) {
	return f.byID(ctx, id)
}

type fakeSessions struct {
	saveFn   func(ctx context.Context, row postgres.RefreshTokenRow) error
	rotateFn func(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	revokeFn func(ctx context.Context, id string) error
}

func (f *fakeSessions) Save(ctx context.Context, row postgres.RefreshTokenRow) error {
	if f.saveFn == nil {
		return nil
	}
	return f.saveFn(ctx, row)
}

func (f *fakeSessions) Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error {
	if f.rotateFn == nil {
		return nil
	}
	return f.rotateFn(ctx, oldID, presentedHash, next)
}

func (f *fakeSessions) RevokeByID(ctx context.Context, id string) error {
	if f.revokeFn == nil {
		return nil
	}
	return f.revokeFn(ctx, id)
}

func testTokens() *auth.Manager {
	return auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func authRouter(users AuthUsersStore, sessions SessionStore, tokens TokenIssuer) *gin.Engine {
	h := NewAuthHandler(users, sessions, tokens, testLogger(), false)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)

	return r
}

func activeUser(passwordHash string) user.User {
	return user.User{
		ID:           1,
		Email:        "jo@example.com",
		PasswordHash: passwordHash,
		Name:         "Jo",
		Role:         user.RoleUser,
		Active:       true,
	}
}

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	var storedHash string

	users := &fakeAuthUsers{
		createFn: func(_ context.Context, email, passwordHash, name, _ string) (user.User, error) {
			storedHash = passwordHash
			return user.User{ID: 5, Email: email, Name: name, Role: user.RoleUser, Active: false}, nil
		},
	}

	body := gin.H{"email": "jo@example.com", "password": "hunter2hunter2", "name": "Jo"}

	rec := performJSON(t, authRouter(users, &fakeSessions{}, testTokens()), http.MethodPost, "/auth/register", body)
	wantStatus(t, rec, http.StatusCreated)

	if storedHash == "hunter2hunter2" || storedHash == "" {
		t.Error("password was not hashed before storage")
	}

	resp := decodeBody(t, rec)
	u, _ := resp["user"].(map[string]any)

	if active, _ := u["active"].(bool); active {
		t.Error("freshly registered account is active, want inactive until approved")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := &fakeAuthUsers{
		createFn: func(_ context.Context, _, _, _, _ string) (user.User, error) {
			return user.User{}, user.ErrEmailTaken
		},
	}

	body := gin.H{"email": "jo@example.com", "password": "hunter2hunter2", "name": "Jo"}

	rec := performJSON(t, authRouter(users, &fakeSessions{}, testTokens()), http.MethodPost, "/auth/register", body)
	wantStatus(t, rec, http.StatusConflict)

	if code := errorCode(t, rec); code != "email_taken" {
		t.Errorf("error code = %q, want email_taken", code)
	}
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		user       user.User
		userErr    error
		password   string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			user:       activeUser(hash),
			password:   "correct horse",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			user:       activeUser(hash),
			password:   "battery staple",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name:       "unknown email",
			userErr:    user.ErrNotFound,
			password:   "correct horse",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_credentials",
		},
		{
			name: "inactive account",
			user: func() user.User {
				u := activeUser(hash)
				u.Active = false
				return u
			}(),
			password:   "correct horse",
			wantStatus: http.StatusForbidden,
			wantCode:   "account_inactive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeAuthUsers{
				byEmail: func(_ context.Context, _ string) (user.User, error) {
					return tt.user, tt.userErr
				},
			}

			saved := false
			sessions := &fakeSessions{
				saveFn: func(_ context.Context, row postgres.RefreshTokenRow) error {
					saved = true
					if row.TokenHash == "" {
						t.Error("refresh token stored without a hash")
					}
					return nil
				},
			}

			body := gin.H{"email": "jo@example.com", "password": tt.password}

			rec := performJSON(t, authRouter(users, sessions, testTokens()), http.MethodPost, "/auth/login", body)
			wantStatus(t, rec, tt.wantStatus)

			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
				return
			}

			resp := decodeBody(t, rec)

			if token, _ := resp["accessToken"].(string); token == "" {
				t.Error("login response has no access token")
			}

			if !saved {
				t.Error("refresh session was not persisted")
			}

			cookie := rec.Header().Get("Set-Cookie")
			if !strings.Contains(cookie, refreshCookieName+"=") || !strings.Contains(cookie, "HttpOnly") {
				t.Errorf("refresh cookie missing or not HttpOnly: %q", cookie)
			}
		})
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	rec := performJSON(t, authRouter(&fakeAuthUsers{}, &fakeSessions{}, testTokens()), http.MethodPost, "/auth/refresh", nil)
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestRefreshRotatesSession(t *testing.T) {
	tokens := testTokens()

	raw, jti, _, err := tokens.GenerateRefreshToken(1, "jo@example.com", user.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	users := &fakeAuthUsers{
		byID: func(_ context.Context, id int64) (user.User, error) {
			return user.User{ID: id, Email: "jo@example.com", Role: user.RoleUser, Active: true}, nil
		},
	}

	var rotatedOld string
	sessions := &fakeSessions{
		rotateFn: func(_ context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error {
			rotatedOld = oldID
			if presentedHash != tokens.HashRefreshToken(raw) {
				t.Error("rotation presented the wrong token hash")
			}
			if next.ID == oldID {
				t.Error("successor reuses the old session id")
			}
			return nil
		},
	}

	r := authRouter(users, sessions, tokens)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: raw})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	wantStatus(t, rec, http.StatusOK)

	if rotatedOld != jti {
		t.Errorf("rotated session %q, want %q", rotatedOld, jti)
	}

	resp := decodeBody(t, rec)
	if token, _ := resp["accessToken"].(string); token == "" {
		t.Error("refresh response has no access token")
	}
}

func TestRefreshReuseFailsClosed(t *testing.T) {
	tokens := testTokens()

	raw, _, _, err := tokens.GenerateRefreshToken(1, "jo@example.com", user.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	users := &fakeAuthUsers{
		byID: func(_ context.Context, id int64) (user.User, error) {
			return user.User{ID: id, Active: true}, nil
		},
	}

	sessions := &fakeSessions{
		rotateFn: func(_ context.Context, _, _ string, _ postgres.RefreshTokenRow) error {
			return postgres.ErrRefreshTokenReused
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: raw})

	rec := httptest.NewRecorder()
	authRouter(users, sessions, tokens).ServeHTTP(rec, req)

	wantStatus(t, rec, http.StatusUnauthorized)

	// cookie is cleared so the client stops retrying a dead token
	if cookie := rec.Header().Get("Set-Cookie"); !strings.Contains(cookie, refreshCookieName+"=;") && !strings.Contains(cookie, "Max-Age=0") {
		t.Errorf("refresh cookie not cleared: %q", cookie)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	tokens := testTokens()

	raw, jti, _, err := tokens.GenerateRefreshToken(1, "jo@example.com", user.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	var revoked string
	sessions := &fakeSessions{
		revokeFn: func(_ context.Context, id string) error {
			revoked = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: raw})

	rec := httptest.NewRecorder()
	authRouter(&fakeAuthUsers{}, sessions, tokens).ServeHTTP(rec, req)

	wantStatus(t, rec, http.StatusNoContent)

	if revoked != jti {
		t.Errorf("revoked session %q, want %q", revoked, jti)
	}
}

func TestLogoutWithoutCookieIsIdempotent(t *testing.T) {
	rec := performJSON(t, authRouter(&fakeAuthUsers{}, &fakeSessions{}, testTokens()), http.MethodPost, "/auth/logout", nil)
	wantStatus(t, rec, http.StatusNoContent)
}
