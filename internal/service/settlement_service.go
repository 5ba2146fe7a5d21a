// Package service exposes the settlement calculator as a Connect service.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

const (
	// SettlementServiceName is the fully-qualified name of the settlement service.
	SettlementServiceName = "settleup.v1.SettlementService"

	// SettleProcedure settles a set of member balances.
	SettleProcedure = "/settleup.v1.SettlementService/Settle"

	// SettleExpensesProcedure aggregates expenses into balances and settles them.
	SettleExpensesProcedure = "/settleup.v1.SettlementService/SettleExpenses"
)

// maxBodyBytes caps request bodies before decoding.
const maxBodyBytes = 4 << 20

// SettlementObserver receives statistics about each settlement run.
type SettlementObserver interface {
	ObserveSettlement(members, transfers int)
	ObserveResidual(severity string)
}

// Options configures a SettlementService.
type Options struct {
	// CurrencyPlaces is the number of minor-unit digits (2 for cents).
	CurrencyPlaces int32

	// MaxMembers and MaxExpenses bound the size of a single request.
	MaxMembers  int
	MaxExpenses int

	// ResidualTolerance is the largest unsettled balance, in minor units,
	// treated as rounding dust instead of a data-integrity warning.
	ResidualTolerance money.Amount

	// Observer is optional.
	Observer SettlementObserver
}

// SettlementService implements the Connect SettlementService. It keeps no state between calls.
type SettlementService struct {
	opts Options
}

// NewSettlementService creates a new SettlementService with the given options.
func NewSettlementService(opts Options) *SettlementService {
	return &SettlementService{opts: opts}
}

// NewSettlementServiceHandler builds an HTTP handler for the service's procedures.
// It returns the path to mount the handler on.
func NewSettlementServiceHandler(svc *SettlementService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithReadMaxBytes(maxBodyBytes),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(SettleProcedure, connect.NewUnaryHandler(SettleProcedure, svc.Settle, opts...))
	mux.Handle(SettleExpensesProcedure, connect.NewUnaryHandler(SettleExpensesProcedure, svc.SettleExpenses, opts...))
	return "/" + SettlementServiceName + "/", mux
}

// NewSettlementClients creates typed clients for the service at baseURL.
func NewSettlementClients(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) (
	*connect.Client[models.SettleRequest, models.SettleResponse],
	*connect.Client[models.SettleExpensesRequest, models.SettleResponse],
) {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return connect.NewClient[models.SettleRequest, models.SettleResponse](httpClient, baseURL+SettleProcedure, opts...),
		connect.NewClient[models.SettleExpensesRequest, models.SettleResponse](httpClient, baseURL+SettleExpensesProcedure, opts...)
}

// Settle computes transfers for a set of member balances.
func (s *SettlementService) Settle(ctx context.Context, req *connect.Request[models.SettleRequest]) (*connect.Response[models.SettleResponse], error) {
	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "Settle request received",
		"request_id", requestID,
		"members_count", len(req.Msg.Members),
	)

	if len(req.Msg.Members) > s.opts.MaxMembers {
		return nil, connect.NewError(connect.CodeResourceExhausted,
			fmt.Errorf("%d members, limit is %d", len(req.Msg.Members), s.opts.MaxMembers))
	}

	balances, err := s.toBalances(req.Msg.Members)
	if err != nil {
		slog.WarnContext(ctx, "Settle rejected", "request_id", requestID, "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	plan := s.settle(ctx, balances)

	return connect.NewResponse(s.toResponse(plan, nil)), nil
}

// SettleExpenses aggregates expenses into balances and settles them.
func (s *SettlementService) SettleExpenses(ctx context.Context, req *connect.Request[models.SettleExpensesRequest]) (*connect.Response[models.SettleResponse], error) {
	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "SettleExpenses request received",
		"request_id", requestID,
		"expenses_count", len(req.Msg.Expenses),
	)

	if len(req.Msg.Expenses) > s.opts.MaxExpenses {
		return nil, connect.NewError(connect.CodeResourceExhausted,
			fmt.Errorf("%d expenses, limit is %d", len(req.Msg.Expenses), s.opts.MaxExpenses))
	}

	expenses, err := s.toExpenses(req.Msg.Expenses)
	if err != nil {
		slog.WarnContext(ctx, "SettleExpenses rejected", "request_id", requestID, "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	balances, err := calculator.Balances(expenses)
	if err != nil {
		slog.WarnContext(ctx, "SettleExpenses rejected", "request_id", requestID, "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if len(balances) > s.opts.MaxMembers {
		return nil, connect.NewError(connect.CodeResourceExhausted,
			fmt.Errorf("%d members, limit is %d", len(balances), s.opts.MaxMembers))
	}

	plan := s.settle(ctx, balances)

	return connect.NewResponse(s.toResponse(plan, balances)), nil
}

// settle runs the calculator and reports its outcome.
func (s *SettlementService) settle(ctx context.Context, balances []calculator.MemberBalance) calculator.Plan {
	plan := calculator.Settle(balances)
	requestID := middleware.GetRequestID(ctx)

	for _, res := range plan.Residuals {
		if res.Amount.Abs() <= s.opts.ResidualTolerance {
			slog.DebugContext(ctx, "Residual balance tolerated",
				"request_id", requestID,
				"member", res.Member.ID,
				"amount", res.Amount.Format(s.opts.CurrencyPlaces),
			)
			s.observeResidual("tolerated")
			continue
		}
		slog.WarnContext(ctx, "Unsettled balance exceeds tolerance",
			"request_id", requestID,
			"member", res.Member.ID,
			"amount", res.Amount.Format(s.opts.CurrencyPlaces),
			"tolerance", s.opts.ResidualTolerance.Format(s.opts.CurrencyPlaces),
		)
		s.observeResidual("warning")
	}

	if s.opts.Observer != nil {
		s.opts.Observer.ObserveSettlement(len(balances), len(plan.Transfers))
	}

	slog.InfoContext(ctx, "Settlement computed",
		"request_id", requestID,
		"members_count", len(balances),
		"transfers_count", len(plan.Transfers),
		"residuals_count", len(plan.Residuals),
	)
	return plan
}

func (s *SettlementService) observeResidual(severity string) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveResidual(severity)
	}
}
