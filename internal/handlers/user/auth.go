// Package user contient les handlers côté compte : authentification, panier,
// commandes, wishlist et notifications.
package user

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/auth"
	"marketplace_back_end/internal/cache"
	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/utils"
)

var phonePattern = regexp.MustCompile(`^\+[0-9]{7,15}$`)

const invalidCredentials = "Invalid user credentials."

// UserStore est le stockage des comptes (repository.UserRepository).
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	VerifiedConflicts(ctx context.Context, email, phone string) (emailTaken, phoneTaken bool, err error)
	SaveUnverified(ctx context.Context, u *models.User) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
}

// SessionManager émet et révoque les jetons (auth.Sessions).
type SessionManager interface {
	Create(ctx context.Context, user models.User) (utils.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (utils.TokenPair, error)
	Revoke(ctx context.Context, userID uuid.UUID) error
}

type AuthHandler struct {
	users    UserStore
	otp      *cache.OTPService
	resets   *cache.ResetTokens
	sessions SessionManager
	mailer   utils.Mailer
	logger   *zap.Logger
}

func NewAuthHandler(users UserStore, otp *cache.OTPService, resets *cache.ResetTokens, sessions SessionManager, mailer utils.Mailer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		otp:      otp,
		resets:   resets,
		sessions: sessions,
		mailer:   mailer,
		logger:   logger,
	}
}

// ================== INSCRIPTION ==================

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	PhoneNumber     string `json:"phone_number" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	FirstName       string `json:"first_name" binding:"required,max=150"`
	LastName        string `json:"last_name" binding:"required,max=150"`
	Gender          string `json:"gender" binding:"omitempty,oneof=male female"`
	Role            string `json:"user_trade_role" binding:"required"`
}

// Register crée (ou remplace) l'inscription non vérifiée et envoie le code OTP.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	if !phonePattern.MatchString(req.PhoneNumber) {
		handlers.Field(c, "phone_number", "Invalid phone_number.")
		return
	}
	role := models.Role(req.Role)
	if role != models.RoleBuyer && role != models.RoleSeller {
		handlers.Field(c, "user_trade_role", "user_trade_role must be either 'seller' or 'buyer'.")
		return
	}
	if err := utils.ValidatePasswordStrength(req.Password); err != nil {
		handlers.Field(c, "password", err.Error())
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	emailTaken, phoneTaken, err := h.users.VerifiedConflicts(ctx, email, req.PhoneNumber)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if emailTaken {
		handlers.Detail(c, http.StatusConflict, "User with this email already exists!")
		return
	}
	if phoneTaken {
		handlers.Detail(c, http.StatusConflict, "User with this phone number already exists!")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	u := &models.User{
		Email:        email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Gender:       req.Gender,
		Role:         role,
	}
	if err := h.users.SaveUnverified(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			handlers.Detail(c, http.StatusConflict, "User with this email or phone number already exists!")
			return
		}
		handlers.Internal(c, h.logger, err)
		return
	}

	secret, err := h.issueOTP(ctx, req.PhoneNumber, email, utils.OTPEmail)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	h.logger.Info("✅ Inscription en attente de vérification", zap.String("user_id", u.ID.String()))
	c.JSON(http.StatusCreated, gin.H{
		"phone_number": req.PhoneNumber,
		"otp_secret":   secret,
	})
}

// issueOTP émet un code et l'envoie par e-mail. Si un code est déjà en
// attente, son secret est renvoyé sans nouvel envoi.
func (h *AuthHandler) issueOTP(ctx context.Context, identifier, to string, build func(string, time.Duration) utils.Email) (string, error) {
	code, secret, err := h.otp.Generate(ctx, identifier)
	if errors.Is(err, cache.ErrOTPOutstanding) {
		return h.otp.Secret(ctx, identifier)
	}
	if err != nil {
		return "", err
	}
	utils.SendAsync(h.mailer, h.logger, build(code, h.otp.Expiry()), to)
	return secret, nil
}

type verifyRequest struct {
	PhoneNumber *string `json:"phone_number"`
	OTPCode     *string `json:"otp_code"`
}

// Verify valide le code OTP de l'inscription et ouvre la session.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	secret := c.Param("otp_secret")
	if secret == "" {
		c.JSON(http.StatusNotFound, gin.H{"message": "otp_secret may not be blank."})
		return
	}
	if req.PhoneNumber == nil || *req.PhoneNumber == "" {
		otpMessage(c, http.StatusBadRequest, "phone_number is required.")
		return
	}
	if !phonePattern.MatchString(*req.PhoneNumber) {
		otpMessage(c, http.StatusBadRequest, "Invalid phone_number.")
		return
	}

	ctx := c.Request.Context()
	u, err := h.users.FindByPhone(ctx, *req.PhoneNumber)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		handlers.Internal(c, h.logger, err)
		return
	}
	if u == nil || u.IsVerified {
		otpMessage(c, http.StatusNotFound, "Unverified User not found.")
		return
	}

	switch {
	case req.OTPCode == nil:
		otpMessage(c, http.StatusBadRequest, "otp_code is required.")
		return
	case *req.OTPCode == "":
		otpMessage(c, http.StatusBadRequest, "otp_code can not be blank.")
		return
	case !cache.ValidCode(*req.OTPCode):
		otpMessage(c, http.StatusBadRequest, "Invalid otp_code format.")
		return
	}

	if err := h.otp.Verify(ctx, u.PhoneNumber, *req.OTPCode, secret); err != nil {
		if errors.Is(err, cache.ErrOTPInvalid) || errors.Is(err, cache.ErrOTPNotFound) {
			otpMessage(c, http.StatusBadRequest, "Incorrect otp_code.")
			return
		}
		handlers.Internal(c, h.logger, err)
		return
	}

	if err := h.users.MarkVerified(ctx, u.ID); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if err := h.otp.Clear(ctx, u.PhoneNumber); err != nil {
		h.logger.Warn("⚠️ Nettoyage OTP impossible", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
	u.IsVerified, u.IsActive = true, true

	tokens, err := h.sessions.Create(ctx, *u)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	utils.SendAsync(h.mailer, h.logger, utils.WelcomeEmail(u.FirstName), u.Email)

	h.logger.Info("✅ Compte vérifié", zap.String("user_id", u.ID.String()))
	c.JSON(http.StatusOK, tokens)
}

func otpMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// ================== SESSION ==================

type loginRequest struct {
	Login    string `json:"email_or_phone_number" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	login := strings.TrimSpace(req.Login)
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}

	ctx := c.Request.Context()
	u, err := h.users.FindByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.Detail(c, http.StatusBadRequest, invalidCredentials)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	ok, err := utils.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if !ok || !u.IsActive {
		h.logger.Info("🔒 Connexion refusée", zap.String("user_id", u.ID.String()))
		handlers.Detail(c, http.StatusBadRequest, invalidCredentials)
		return
	}

	tokens, err := h.sessions.Create(ctx, *u)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Refresh fait tourner le couple de jetons.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	tokens, err := h.sessions.Refresh(c.Request.Context(), req.Refresh)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": err.Error(), "code": "token_not_valid"})
	case errors.Is(err, auth.ErrInactiveUser):
		handlers.Detail(c, http.StatusBadRequest, err.Error())
	case err != nil:
		handlers.Internal(c, h.logger, err)
	default:
		c.JSON(http.StatusOK, tokens)
	}
}

// Logout vide les deux listes blanches de l'utilisateur.
func (h *AuthHandler) Logout(c *gin.Context) {
	actor := middleware.Actor(c)
	if err := h.sessions.Revoke(c.Request.Context(), actor.UserID); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ================== PROFIL ==================

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.users.FindByID(c.Request.Context(), middleware.Actor(c).UserID)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type profileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=150"`
	Gender    *string `json:"gender" binding:"omitempty,oneof=male female"`
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req profileRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), middleware.Actor(c).UserID, models.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	})
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
