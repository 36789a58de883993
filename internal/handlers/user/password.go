package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/utils"
)

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword remplace le mot de passe et réémet les jetons.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	u, err := h.users.FindByID(ctx, middleware.Actor(c).UserID)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if !u.IsActive {
		handlers.Detail(c, http.StatusBadRequest, "User is inactive.")
		return
	}

	ok, err := utils.VerifyPassword(req.OldPassword, u.PasswordHash)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if !ok {
		handlers.Detail(c, http.StatusBadRequest, invalidCredentials)
		return
	}
	if err := utils.ValidatePasswordStrength(req.NewPassword); err != nil {
		handlers.Field(c, "new_password", err.Error())
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if err := h.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	// Les anciens jetons sont remplacés par Create.
	tokens, err := h.sessions.Create(ctx, *u)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	h.logger.Info("🔑 Mot de passe modifié", zap.String("user_id", u.ID.String()))
	c.JSON(http.StatusOK, tokens)
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Forgot envoie un code de réinitialisation. La réponse ne dit pas si le
// compte existe.
func (h *AuthHandler) Forgot(c *gin.Context) {
	var req forgotRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	secret, err := h.issueOTP(c.Request.Context(), email, email, utils.PasswordResetEmail)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":      email,
		"otp_secret": secret,
	})
}

type forgotVerifyRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OTPCode string `json:"otp_code" binding:"required"`
}

// ForgotVerify échange un code valide contre un jeton de réinitialisation.
func (h *AuthHandler) ForgotVerify(c *gin.Context) {
	var req forgotVerifyRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	secret := c.Param("otp_secret")
	if secret == "" {
		otpMessage(c, http.StatusNotFound, "otp_secret may not be blank.")
		return
	}
	if !cache.ValidCode(req.OTPCode) {
		otpMessage(c, http.StatusBadRequest, "Invalid otp_code format.")
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.otp.Verify(ctx, email, req.OTPCode, secret); err != nil {
		if errors.Is(err, cache.ErrOTPInvalid) || errors.Is(err, cache.ErrOTPNotFound) {
			otpMessage(c, http.StatusBadRequest, "Incorrect otp_code.")
			return
		}
		handlers.Internal(c, h.logger, err)
		return
	}
	if err := h.otp.Clear(ctx, email); err != nil {
		h.logger.Warn("⚠️ Nettoyage OTP impossible", zap.Error(err))
	}

	token, err := h.resets.Issue(ctx, email)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Reset applique le nouveau mot de passe et consomme le jeton.
func (h *AuthHandler) Reset(c *gin.Context) {
	var req resetRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	email, err := h.resets.Lookup(ctx, req.Token)
	if errors.Is(err, cache.ErrResetTokenInvalid) {
		handlers.Detail(c, http.StatusBadRequest, "Invalid Token.")
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	u, err := h.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		handlers.Internal(c, h.logger, err)
		return
	}
	if u == nil || !u.IsVerified {
		handlers.Detail(c, http.StatusBadRequest, "Email not found.")
		return
	}
	if !u.IsActive {
		handlers.Detail(c, http.StatusBadRequest, "Active user with such email not found.")
		return
	}

	same, err := utils.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if same {
		handlers.Detail(c, http.StatusBadRequest, "The new password can not be the same as the old password.")
		return
	}
	if err := utils.ValidatePasswordStrength(req.Password); err != nil {
		handlers.Field(c, "password", err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if err := h.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	tokens, err := h.sessions.Create(ctx, *u)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if err := h.resets.Consume(ctx, req.Token); err != nil {
		h.logger.Warn("⚠️ Jeton de réinitialisation non consommé", zap.Error(err))
	}
	h.logger.Info("🔑 Mot de passe réinitialisé", zap.String("user_id", u.ID.String()))
	c.JSON(http.StatusOK, tokens)
}
