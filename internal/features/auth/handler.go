package auth

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/email"
	"github.com/mo-amir99/course-market-go/pkg/response"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Handler processes authentication HTTP requests.
type Handler struct {
	db          *gorm.DB
	logger      *slog.Logger
	cfg         *config.Config
	emailClient *email.Client
	notifier    notification.Sender
}

// NewHandler constructs an auth handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, cfg *config.Config, emailClient *email.Client, notifier notification.Sender) *Handler {
	return &Handler{
		db:          db,
		logger:      logger,
		cfg:         cfg,
		emailClient: emailClient,
		notifier:    notifier,
	}
}

// Register creates a new user account.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		FullName string  `json:"fullName" binding:"required"`
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required"`
		Phone    *string `json:"phone"`
		UserType string  `json:"userType"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid registration payload", err)
		return
	}

	authResp, err := Register(h.db, RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		UserType: types.UserType(strings.ToLower(strings.TrimSpace(req.UserType))),
	}, h.tokenConfig())
	if err != nil {
		h.respondError(c, err, "registration failed")
		return
	}

	if h.notifier != nil {
		msg := notification.Message{
			Kind:     notification.KindWelcome,
			Title:    "Welcome to the marketplace",
			Body:     "Hi " + authResp.User.FullName + ", your account is ready.",
			Priority: types.PriorityLow,
		}
		if err := h.notifier.Notify(c.Request.Context(), authResp.User.ID, msg); err != nil {
			h.logger.Warn("failed to store welcome notification", "user_id", authResp.User.ID, "error", err)
		}
	}

	if h.emailClient != nil {
		go func(addr, name string) {
			if err := h.emailClient.SendWelcome(addr, name); err != nil {
				h.logger.Error("failed to send welcome email",
					slog.String("email", addr),
					slog.String("error", err.Error()))
			}
		}(authResp.User.Email, authResp.User.FullName)
	}

	response.Created(c, authResp, "Registration successful")
}

// Login authenticates a user and returns JWT tokens.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	authResp, err := Login(h.db, LoginInput{Email: req.Email, Password: req.Password}, h.tokenConfig())
	if err != nil {
		h.respondError(c, err, "login failed")
		return
	}

	response.Success(c, http.StatusOK, authResp, "Login successful", nil)
}

// Logout clears the caller's refresh token.
func (h *Handler) Logout(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	if err := Logout(h.db, requester.ID); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, true, "Logout successful", nil)
}

// RequestPasswordReset sends a password reset email.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid email", err)
		return
	}

	resetInfo, err := RequestPasswordReset(h.db, req.Email, h.tokenConfig())
	if err != nil {
		h.respondError(c, err, "failed to request password reset")
		return
	}

	if resetInfo != nil && h.emailClient != nil {
		go func() {
			if err := h.emailClient.SendPasswordReset(resetInfo.Email, resetInfo.Token, h.cfg.Email.FrontendURL); err != nil {
				h.logger.Error("failed to send password reset email",
					slog.String("email", resetInfo.Email),
					slog.String("error", err.Error()))
			}
		}()
		h.logger.Info("password reset requested", slog.String("email", req.Email))
	}

	response.Success(c, http.StatusOK, true, "If the email exists in our system, a password reset link has been sent.", nil)
}

// ResetPassword changes a user's password using a reset token.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid reset payload", err)
		return
	}

	if err := ResetPassword(h.db, req.Token, req.NewPassword, h.tokenConfig()); err != nil {
		h.respondError(c, err, "password reset failed")
		return
	}

	response.Success(c, http.StatusOK, true, "Password reset successful. Please login with your new password.", nil)
}

// RefreshToken rotates the token pair.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid refresh token payload", err)
		return
	}

	tokenPair, err := RefreshAccessToken(h.db, req.RefreshToken, h.tokenConfig())
	if err != nil {
		h.respondError(c, err, "token refresh failed")
		return
	}

	response.Success(c, http.StatusOK, tokenPair, "", nil)
}

func (h *Handler) tokenConfig() TokenConfig {
	return DefaultTokenConfig(h.cfg.JWTSecret, h.cfg.JWTRefreshSecret)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = "Invalid email or password"
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidTokenType),
		errors.Is(err, user.ErrInvalidPassword),
		errors.Is(err, user.ErrMissingFields):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, user.ErrEmailTaken):
		status = http.StatusConflict
		message = "Email already exists."
	case errors.Is(err, ErrInactiveAccount):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, ErrInvalidToken):
		status = http.StatusUnauthorized
		message = "Invalid or expired token"
	case errors.Is(err, user.ErrUserNotFound):
		status = http.StatusNotFound
		message = "User not found"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
