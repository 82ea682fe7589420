package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errTimeout = errors.New("dial timeout")

func TestUpstreamKeepsCause(t *testing.T) {
	err := Upstream("Payment gateway is unavailable.", errTimeout)

	assert.ErrorIs(t, err, errTimeout)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode())
	assert.Equal(t, ErrUpstream, err.Code())
	assert.Equal(t, "Payment gateway is unavailable.", err.Message())
	assert.Equal(t, "Payment gateway is unavailable.: dial timeout", err.Error())
}

func TestAsFindsWrappedAppError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), New("Not here", http.StatusNotFound, ErrNotFound, nil))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "Not here", appErr.Error())
}
