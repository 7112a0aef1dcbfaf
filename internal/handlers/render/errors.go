package render

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

var appErrors = []struct {
	err     error
	code    int
	message string
}{
	{apperrors.ErrAccountBanned, http.StatusForbidden, "Account is banned"},
	{apperrors.ErrForbidden, http.StatusForbidden, "Operation is not allowed"},
	{apperrors.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
	{apperrors.ErrWithdrawNotFound, http.StatusNotFound, "Withdraw request not found"},
	{apperrors.ErrDepositNotFound, http.StatusNotFound, "Deposit not found"},
	{apperrors.ErrWithdrawNotAvailable, http.StatusConflict, "Withdraw request is not available"},
	{apperrors.ErrWithdrawOwnRequest, http.StatusConflict, "Can not reserve own withdraw request"},
	{apperrors.ErrWithdrawNotCancellable, http.StatusConflict, "Withdraw request can not be cancelled"},
	{apperrors.ErrWithdrawNotReservedByUser, http.StatusConflict, "Withdraw request is not reserved by you"},
	{apperrors.ErrDepositAlreadyProcessed, http.StatusConflict, "Deposit already processed"},
	{apperrors.ErrReservationExpired, http.StatusGone, "Reservation expired, withdraw request released"},
	{apperrors.ErrInvalidDenomination, http.StatusUnprocessableEntity, "Invalid denomination"},
	{apperrors.ErrInvalidPlatform, http.StatusUnprocessableEntity, "Invalid platform"},
	{apperrors.ErrInvalidAmount, http.StatusUnprocessableEntity, "Amount does not match denomination"},
}

// Render known application error with its own status code.
// Returns false if the error is unknown and nothing was written
func AppError(w http.ResponseWriter, err error) bool {
	var insufficient *apperrors.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		jsonWithStatus(w, ErrorResponse{
			Error:   ServiceErrorType,
			Message: "Insufficient balance",
			Fields: map[string]string{
				"required":  insufficient.Required.String(),
				"available": insufficient.Available.String(),
			},
		}, http.StatusPaymentRequired)
		return true
	}

	for _, e := range appErrors {
		if errors.Is(err, e.err) {
			ServiceError(w, e.message, e.code)
			return true
		}
	}

	return false
}
