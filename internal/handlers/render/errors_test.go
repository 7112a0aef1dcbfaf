package render

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

func TestRender_AppError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{apperrors.ErrAccountBanned, http.StatusForbidden},
		{apperrors.ErrForbidden, http.StatusForbidden},
		{apperrors.ErrWithdrawNotFound, http.StatusNotFound},
		{apperrors.ErrDepositNotFound, http.StatusNotFound},
		{apperrors.ErrWithdrawNotReservedByUser, http.StatusConflict},
		{apperrors.ErrDepositAlreadyProcessed, http.StatusConflict},
		{apperrors.ErrWithdrawNotAvailable, http.StatusConflict},
		{apperrors.ErrReservationExpired, http.StatusGone},
		{apperrors.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %q", apperrors.ErrInvalidDenomination, "AMOUNT_7"), http.StatusUnprocessableEntity},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()

			handled := AppError(rec, tc.err)

			require.True(t, handled)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		})
	}

	t.Run("insufficient balance carries amounts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("submit: %w", apperrors.NewInsufficientBalance(decimal.NewFromInt(20), decimal.NewFromInt(5)))

		handled := AppError(rec, err)

		require.True(t, handled)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.JSONEq(t, `{
			"error": "service_error",
			"message": "Insufficient balance",
			"fields": {"required": "20", "available": "5"}
		}`, rec.Body.String())
	})

	t.Run("unknown error not handled", func(t *testing.T) {
		rec := httptest.NewRecorder()

		handled := AppError(rec, errors.New("db error: connection reset"))

		require.False(t, handled)
		require.Zero(t, rec.Body.Len(), "nothing should be written")
	})
}
