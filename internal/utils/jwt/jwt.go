package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or malformed token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongKind    = errors.New("token kind not accepted here")
)

// Kind separates access, refresh and single-purpose tokens signed with the same secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindPurpose Kind = "purpose"
)

// Claims carried by every token the service issues.
type Claims struct {
	UserID  uuid.UUID `json:"id"`
	Kind    Kind      `json:"kind"`
	Purpose string    `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func sign(claims Claims, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GenerateAccessToken creates a short-lived JWT for API access.
func GenerateAccessToken(userID uuid.UUID, secret string, expiry time.Duration) (string, error) {
	return sign(Claims{UserID: userID, Kind: KindAccess}, secret, expiry)
}

// GenerateRefreshToken creates a long-lived JWT that can only be exchanged for a new pair.
func GenerateRefreshToken(userID uuid.UUID, secret string, expiry time.Duration) (string, error) {
	return sign(Claims{UserID: userID, Kind: KindRefresh}, secret, expiry)
}

// GeneratePurposeToken creates a token bound to one purpose, e.g. password reset.
func GeneratePurposeToken(userID uuid.UUID, purpose string, secret string, expiry time.Duration) (string, error) {
	return sign(Claims{UserID: userID, Kind: KindPurpose, Purpose: purpose}, secret, expiry)
}

// GeneratePair issues an access and refresh token for a user.
func GeneratePair(userID uuid.UUID, secret string, accessExpiry, refreshExpiry time.Duration) (TokenPair, error) {
	access, err := GenerateAccessToken(userID, secret, accessExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateRefreshToken(userID, secret, refreshExpiry)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyToken validates a JWT and extracts claims.
func VerifyToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyKind validates a JWT and requires it to be of the given kind.
func VerifyKind(tokenString, secret string, kind Kind) (*Claims, error) {
	claims, err := VerifyToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
