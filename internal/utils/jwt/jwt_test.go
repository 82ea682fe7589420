package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGeneratePairKinds(t *testing.T) {
	userID := uuid.New()
	pair, err := GeneratePair(userID, testSecret, time.Minute, time.Hour)
	require.NoError(t, err)

	access, err := VerifyKind(pair.AccessToken, testSecret, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, userID, access.UserID)

	_, err = VerifyKind(pair.RefreshToken, testSecret, KindAccess)
	assert.ErrorIs(t, err, ErrWrongKind)

	refresh, err := VerifyKind(pair.RefreshToken, testSecret, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, userID, refresh.UserID)
}

func TestVerifyTokenRejectsExpiredAndForeign(t *testing.T) {
	expired, err := GenerateAccessToken(uuid.New(), testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = VerifyToken(expired, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)

	token, err := GenerateAccessToken(uuid.New(), "other", time.Minute)
	require.NoError(t, err)
	_, err = VerifyToken(token, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPurposeToken(t *testing.T) {
	token, err := GeneratePurposeToken(uuid.New(), "password_reset", testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := VerifyKind(token, testSecret, KindPurpose)
	require.NoError(t, err)
	assert.Equal(t, "password_reset", claims.Purpose)
}
