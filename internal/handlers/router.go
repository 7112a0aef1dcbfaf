package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/peercash/internal/handlers/middleware"
	"github.com/nkiryanov/peercash/internal/logger"
	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/service/withdraw"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	resolver principalResolver,
	withdrawService withdrawService,
	depositService depositService,
	settlementService settlementService,
	metricsHandler http.Handler,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(resolver)
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, withAuth, middleware.AdminMiddleware)
	}

	api := http.NewServeMux()

	api.Handle("POST /withdrawals", withAuth(handleSubmitWithdraw(withdrawService, logger)))
	api.Handle("GET /withdrawals", withAuth(handleListUserWithdraws(withdrawService, logger)))
	api.Handle("GET /withdrawals/{id}", withAuth(handleGetWithdraw(withdrawService, logger)))
	api.Handle("POST /withdrawals/{id}/reserve", withAuth(handleReserveWithdraw(withdrawService, logger)))
	api.Handle("POST /withdrawals/{id}/cancel", withAuth(handleCancelWithdraw(withdrawService, logger)))
	api.Handle("POST /withdrawals/{id}/deposit", withAuth(handleConfirmDeposit(depositService, logger)))
	api.Handle("GET /deposits", withAuth(handleListUserDeposits(depositService, logger)))
	api.Handle("GET /deposits/{id}", withAuth(handleGetDeposit(depositService, logger)))

	api.Handle("GET /admin/withdrawals", withAdmin(handleListAllWithdraws(withdrawService, logger)))
	api.Handle("GET /admin/deposits", withAdmin(handleListInReview(depositService, logger)))
	api.Handle("POST /admin/deposits/{id}/approve", withAdmin(handleApproveDeposit(settlementService, logger)))
	api.Handle("POST /admin/deposits/{id}/reject", withAdmin(handleRejectDeposit(settlementService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", metricsHandler)

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type principalResolver interface {
	ParseAccess(ctx context.Context, access string) (models.Principal, error)
}

type withdrawService interface {
	Submit(ctx context.Context, p models.Principal, req withdraw.SubmitRequest) (models.WithdrawRequest, error)

	// Has to return apperrors.ErrWithdrawNotAvailable if request is not PENDING
	// and apperrors.ErrWithdrawOwnRequest if principal is the requester
	Reserve(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error)
	Cancel(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error)
	Get(ctx context.Context, p models.Principal, withdrawID uuid.UUID) (models.WithdrawRequest, error)
	ListUser(ctx context.Context, p models.Principal) ([]models.WithdrawRequest, error)
	ListAll(ctx context.Context, p models.Principal) ([]models.WithdrawRequest, error)
}

type depositService interface {
	// Has to return apperrors.ErrReservationExpired if reservation outlived its time box
	Confirm(ctx context.Context, p models.Principal, screenshotURL string, withdrawID uuid.UUID) (models.DepositTransaction, error)
	Get(ctx context.Context, p models.Principal, depositID uuid.UUID) (models.DepositTransaction, error)
	ListUser(ctx context.Context, p models.Principal, status *models.DepositStatus) ([]models.DepositTransaction, error)
	ListInReview(ctx context.Context, p models.Principal) ([]models.DepositTransaction, error)
}

type settlementService interface {
	// Both have to return apperrors.ErrDepositAlreadyProcessed if deposit is not IN_REVIEW
	Approve(ctx context.Context, admin models.Principal, depositID uuid.UUID) (models.DepositTransaction, error)
	Reject(ctx context.Context, admin models.Principal, depositID uuid.UUID, reason string) (models.DepositTransaction, error)
}
