package request

import (
	"errors"
	"math"
	"strings"
)

var (
	errNotString  = errors.New("value is not a string")
	errEmpty      = errors.New("string is empty")
	errNotInteger = errors.New("value is not a whole number")
	errNotNumber  = errors.New("value is not a number")
)

// ReadString returns a trimmed, non-empty string from a decoded JSON value.
func ReadString(value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", errNotString
	}
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", errEmpty
	}
	return trimmed, nil
}

// ReadInt converts a decoded JSON number to int. Fractional values are rejected.
func ReadInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, errNotInteger
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, errNotInteger
	}
}

// ReadFloat converts a decoded JSON number to float64.
func ReadFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errNotNumber
		}
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errNotNumber
	}
}
