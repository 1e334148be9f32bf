package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	cases := []struct {
		legacy string
		want   string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"ADMISSION_DENIED", ErrCodeAdmissionDenied},
		{"SOLD_OUT", ErrCodeSoldOut},
		{"ILLEGAL_TRANSITION", ErrCodeIllegalTransition},
		{"LOCK_CONTENTION", ErrCodeLockContention},
		{"SETTLEMENT_FAILURE", ErrCodeSettlementFailure},
		{"INVALID_RULES", ErrCodeInvalidRules},
		{"INVALID_STATUS", ErrCodeInvalidInput},
		{"INVALID_CONFIG", ErrCodeInvalidInput},
		{"INVALID_MEMBER", ErrCodeInvalidInput},
		{"INVALID_TEMPLATE", ErrCodeInvalidInput},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
	}

	for _, tc := range cases {
		t.Run(tc.legacy, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeErrorCode(tc.legacy))
		})
	}

	t.Run("already normalized codes pass through", func(t *testing.T) {
		assert.Equal(t, ErrCodeSoldOut, NormalizeErrorCode(ErrCodeSoldOut))
	})

	t.Run("unknown codes pass through", func(t *testing.T) {
		assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
	})
}

func TestGetHTTPStatus(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeAdmissionDenied, http.StatusUnprocessableEntity},
		{ErrCodeIllegalTransition, http.StatusUnprocessableEntity},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeSoldOut, http.StatusConflict},
		{ErrCodeLockContention, http.StatusConflict},
		{ErrCodeSettlementFailure, http.StatusInternalServerError},
		{ErrCodeInvalidRules, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.want, GetHTTPStatus(tc.code))
		})
	}

	t.Run("unknown codes default to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_NO_SUCH_CODE"))
	})
}
