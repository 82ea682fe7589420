package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/utils/jwt"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const purposePasswordReset = "password-reset"

type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Phone    *string
	UserType types.UserType
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

type TokenConfig struct {
	JWTSecret           string
	JWTRefreshSecret    string
	AccessTokenExpiry   time.Duration
	RefreshTokenExpiry  time.Duration
	PasswordResetExpiry time.Duration
}

// DefaultTokenConfig returns the token lifetimes used by the HTTP layer.
func DefaultTokenConfig(secret, refreshSecret string) TokenConfig {
	return TokenConfig{
		JWTSecret:           secret,
		JWTRefreshSecret:    refreshSecret,
		AccessTokenExpiry:   15 * time.Minute,
		RefreshTokenExpiry:  7 * 24 * time.Hour,
		PasswordResetExpiry: time.Hour,
	}
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Register creates a student or lecturer account and signs it in.
func Register(db *gorm.DB, input RegisterInput, cfg TokenConfig) (*AuthResponse, error) {
	if strings.TrimSpace(input.FullName) == "" || input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	if !emailRegex.MatchString(input.Email) {
		return nil, ErrInvalidEmail
	}

	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	if input.UserType == "" {
		input.UserType = types.UserTypeStudent
	}
	if input.UserType != types.UserTypeStudent && input.UserType != types.UserTypeLecturer {
		return nil, ErrInvalidRole
	}

	newUser, err := user.Create(db, user.CreateInput{
		FullName: input.FullName,
		Email:    input.Email,
		Password: input.Password,
		Phone:    input.Phone,
		UserType: input.UserType,
	})
	if err != nil {
		return nil, err
	}

	return issueTokens(db, &newUser, cfg)
}

// Login authenticates a user and returns tokens.
func Login(db *gorm.DB, input LoginInput, cfg TokenConfig) (*AuthResponse, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	usr, err := user.GetByEmail(db, input.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !usr.ComparePassword(input.Password) {
		return nil, ErrInvalidCredentials
	}

	if !usr.Active {
		return nil, ErrInactiveAccount
	}

	return issueTokens(db, &usr, cfg)
}

func issueTokens(db *gorm.DB, usr *user.User, cfg TokenConfig) (*AuthResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(usr.ID, cfg.JWTSecret, cfg.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(usr.ID, cfg.JWTRefreshSecret, cfg.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	if err := user.SetRefreshToken(db, usr.ID, &refreshToken); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         usr,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout clears the stored refresh token so it can no longer be exchanged.
func Logout(db *gorm.DB, userID uuid.UUID) error {
	return user.SetRefreshToken(db, userID, nil)
}

// PasswordResetInfo contains data for sending password reset emails.
type PasswordResetInfo struct {
	Token    string
	Email    string
	FullName string
}

// RequestPasswordReset generates a reset token. A nil result means no such account.
func RequestPasswordReset(db *gorm.DB, email string, cfg TokenConfig) (*PasswordResetInfo, error) {
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	usr, err := user.GetByEmail(db, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	resetToken, err := jwt.GeneratePurposeToken(usr.ID, purposePasswordReset, cfg.JWTSecret, cfg.PasswordResetExpiry)
	if err != nil {
		return nil, err
	}

	return &PasswordResetInfo{
		Token:    resetToken,
		Email:    usr.Email,
		FullName: usr.FullName,
	}, nil
}

// ResetPassword updates a user's password using a reset token and revokes their sessions.
func ResetPassword(db *gorm.DB, token, newPassword string, cfg TokenConfig) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	claims, err := jwt.VerifyKind(token, cfg.JWTSecret, jwt.KindPurpose)
	if err != nil {
		if errors.Is(err, jwt.ErrWrongKind) {
			return ErrInvalidTokenType
		}
		return ErrInvalidToken
	}

	if claims.Purpose != purposePasswordReset {
		return ErrInvalidTokenType
	}

	if _, err := user.Update(db, claims.UserID, user.UpdateInput{Password: &newPassword}); err != nil {
		return err
	}

	return user.SetRefreshToken(db, claims.UserID, nil)
}

// RefreshAccessToken rotates the token pair using a stored refresh token.
func RefreshAccessToken(db *gorm.DB, refreshToken string, cfg TokenConfig) (*jwt.TokenPair, error) {
	claims, err := jwt.VerifyKind(refreshToken, cfg.JWTRefreshSecret, jwt.KindRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}

	usr, err := user.Get(db, claims.UserID)
	if err != nil {
		return nil, err
	}

	if usr.RefreshToken == nil || *usr.RefreshToken != refreshToken {
		return nil, ErrInvalidToken
	}

	if !usr.Active {
		return nil, ErrInactiveAccount
	}

	resp, err := issueTokens(db, &usr, cfg)
	if err != nil {
		return nil, err
	}

	return &jwt.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}
