package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/repo/postgres"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

// Narrow interfaces so the handler tests can run on fakes.

type AuthUsersStore interface {
	Create(ctx context.Context, email, passwordHash, name, locale string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type SessionStore interface {
	Save(ctx context.Context, row postgres.RefreshTokenRow) error
	Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	RevokeByID(ctx context.Context, id string) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID int64, email, role string) (string, error)
	GenerateRefreshToken(userID int64, email, role string) (raw string, jti string, expiresAt time.Time, err error)
	VerifyRefreshToken(token string) (*auth.Claims, error)
	HashRefreshToken(raw string) string
}

type AuthHandler struct {
	users    AuthUsersStore
	sessions SessionStore
	tokens   TokenIssuer
	log      *slog.Logger

	cookieSecure bool
}

func NewAuthHandler(users AuthUsersStore, sessions SessionStore, tokens TokenIssuer, log *slog.Logger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		tokens:       tokens,
		log:          log,
		cookieSecure: cookieSecure,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func userSummary(u user.User) gin.H {
	return gin.H{
		"id":     u.ID,
		"email":  u.Email,
		"name":   u.Name,
		"locale": u.Locale,
		"role":   u.Role,
		"active": u.Active,
	}
}

// Register creates an inactive account. An administrator has to flip the
// active flag before the first login succeeds.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		h.log.Error("password hashing failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	u, err := h.users.Create(ctx.Request.Context(), req.Email, hash, req.Name, req.Locale)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "An account with this email already exists")
			return
		}

		respondStoreError(ctx, h.log, err)
		return
	}

	h.log.Info("user registered", "user_id", u.ID)

	ctx.JSON(http.StatusCreated, gin.H{
		"user":    userSummary(u),
		"message": "Registration received, awaiting activation",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req loginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.GetByEmail(ctx.Request.Context(), req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Invalid email or password")
			return
		}

		respondStoreError(ctx, h.log, err)
		return
	}

	if security.CheckPassword(u.PasswordHash, req.Password) != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Invalid email or password")
		return
	}

	if !u.Active {
		RespondForbidden(ctx, "account_inactive", "Account is not active")
		return
	}

	if !h.issueSession(ctx, u) {
		return
	}
}

// Refresh rotates the refresh cookie and returns a new access token. A reused
// or unknown token clears the cookie and fails closed.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "invalid_refresh", "Missing refresh token")
		return
	}

	claims, err := h.tokens.VerifyRefreshToken(raw)

	if err != nil {
		h.clearRefreshCookie(ctx)
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid or expired refresh token")
		return
	}

	u, err := h.users.GetByID(ctx.Request.Context(), claims.UserID)

	if err != nil {
		h.clearRefreshCookie(ctx)
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid or expired refresh token")
		return
	}

	if !u.Active {
		h.clearRefreshCookie(ctx)
		RespondForbidden(ctx, "account_inactive", "Account is not active")
		return
	}

	newRaw, jti, expiresAt, err := h.tokens.GenerateRefreshToken(u.ID, u.Email, u.Role)

	if err != nil {
		h.log.Error("refresh token generation failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	err = h.sessions.Rotate(ctx.Request.Context(), claims.JTI, h.tokens.HashRefreshToken(raw), postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.tokens.HashRefreshToken(newRaw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrRefreshTokenReused):
			h.log.Warn("refresh token reuse detected", "user_id", u.ID)
			h.clearRefreshCookie(ctx)
			RespondUnAuthorized(ctx, "invalid_refresh", "Refresh token already used")
		case errors.Is(err, postgres.ErrRefreshTokenNotFound), errors.Is(err, postgres.ErrRefreshTokenExpired):
			h.clearRefreshCookie(ctx)
			RespondUnAuthorized(ctx, "invalid_refresh", "Invalid or expired refresh token")
		default:
			respondStoreError(ctx, h.log, err)
		}
		return
	}

	access, err := h.tokens.GenerateAccessToken(u.ID, u.Email, u.Role)

	if err != nil {
		h.log.Error("access token generation failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	h.setRefreshCookie(ctx, newRaw, expiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": access,
		"user":        userSummary(u),
	})
}

// Logout revokes the presented session, if any, and clears the cookie either
// way.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err == nil && raw != "" {
		if claims, err := h.tokens.VerifyRefreshToken(raw); err == nil {
			if err := h.sessions.RevokeByID(ctx.Request.Context(), claims.JTI); err != nil {
				h.log.Error("session revoke failed", "error", err)
			}
		}
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) issueSession(ctx *gin.Context, u user.User) bool {
	access, err := h.tokens.GenerateAccessToken(u.ID, u.Email, u.Role)

	if err != nil {
		h.log.Error("access token generation failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return false
	}

	refreshRaw, jti, expiresAt, err := h.tokens.GenerateRefreshToken(u.ID, u.Email, u.Role)

	if err != nil {
		h.log.Error("refresh token generation failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return false
	}

	err = h.sessions.Save(ctx.Request.Context(), postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.tokens.HashRefreshToken(refreshRaw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return false
	}

	h.setRefreshCookie(ctx, refreshRaw, expiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": access,
		"user":        userSummary(u),
	})

	return true
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	maxAge := int(time.Until(expiresAt).Seconds())
	ctx.SetCookie(refreshCookieName, raw, maxAge, "/auth", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.cookieSecure, true)
}
