package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/clockbill/clockbill/internal/http/middlewares"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/gin-gonic/gin"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest, ibanCipher, ibanIV, ibanTag string) (user.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type ProfileHandler struct {
	store    ProfileStore
	sessions SessionRevoker
	ibans    *security.IBANCipher
	log      *slog.Logger
}

func NewProfileHandler(store ProfileStore, sessions SessionRevoker, ibans *security.IBANCipher, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		store:    store,
		sessions: sessions,
		ibans:    ibans,
		log:      log,
	}
}

// profileResponse returns the full profile plus the decrypted IBAN. The
// caller is always the account owner, so handing back the plaintext here is
// fine; list endpoints only ever see the masked form.
func (h *ProfileHandler) profileResponse(u user.User) gin.H {
	iban := h.decryptIBAN(u)

	return gin.H{
		"user":       u,
		"iban":       iban,
		"ibanMasked": security.MaskIBAN(iban),
	}
}

func (h *ProfileHandler) decryptIBAN(u user.User) string {
	if u.IBANCipher == "" {
		return ""
	}

	iban, err := h.ibans.Decrypt(u.IBANCipher, u.IBANIV, u.IBANTag)

	if err != nil {
		h.log.Warn("iban decrypt failed", "user_id", u.ID, "error", err)
		return ""
	}

	return iban
}

func (h *ProfileHandler) Get(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	u, err := h.store.GetByID(ctx.Request.Context(), userID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, h.profileResponse(u))
}

// Update replaces the whole mutable profile. A non-empty IBAN is encrypted
// before it touches storage; an empty one clears the stored value.
func (h *ProfileHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	var req user.UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	var cipherHex, ivHex, tagHex string

	if req.IBAN != "" {
		var err error
		cipherHex, ivHex, tagHex, err = h.ibans.Encrypt(req.IBAN)

		if err != nil {
			h.log.Error("iban encrypt failed", "error", err)
			RespondInternal(ctx, "Something went wrong")
			return
		}
	}

	u, err := h.store.UpdateProfile(ctx.Request.Context(), userID, req, cipherHex, ivHex, tagHex)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, h.profileResponse(u))
}

// ChangePassword verifies the current password, writes the new hash and
// revokes every live session so stolen refresh tokens die with the old
// password.
func (h *ProfileHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	var req user.ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.store.GetByID(ctx.Request.Context(), userID)

	if err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	if security.CheckPassword(u.PasswordHash, req.CurrentPassword) != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_current_password", "Current password is incorrect", nil)
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		h.log.Error("password hashing failed", "error", err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	if err := h.store.UpdatePassword(ctx.Request.Context(), userID, hash); err != nil {
		respondStoreError(ctx, h.log, err)
		return
	}

	if err := h.sessions.RevokeAllForUser(ctx.Request.Context(), userID); err != nil {
		h.log.Error("session revoke failed", "user_id", userID, "error", err)
	}

	ctx.Status(http.StatusNoContent)
}
