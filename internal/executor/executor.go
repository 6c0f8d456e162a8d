// Package executor implements the Execution Executor of spec §4.6:
// unconditional cancel-all-then-submit-new reconciliation of one contract's
// live orders against a TargetQuote, with bounded cancel retry.
//
// Grounded on _examples/original_source/market_maker.py's TradingExecutor
// (handle_quote_update: cancel_existing_orders then submit_new_orders) and
// order_submission_gateio.py's batch submit/cancel plumbing. The two-step
// cancel-then-submit shape is carried over from
// _examples/0xtitan6-polymarket-mm/internal/strategy/maker.go's
// reconcileOrders, but spec §4.6 drops that function's tolerance-band order
// reuse: every live order for the contract is cancelled on every
// reconciliation, not just the ones that moved outside a price/size
// tolerance.
package executor

import (
	"context"
	"log/slog"
	"strconv"

	"marketmaker/internal/errs"
	"marketmaker/internal/order"
	"marketmaker/internal/orderlog"
	"marketmaker/pkg/types"
)

// venueSubmitter places and cancels orders against the venue. Implemented by
// internal/venue.Client.
type venueSubmitter interface {
	SubmitOrders(ctx context.Context, specs []types.OrderSpec) ([]types.RESTOrderResult, error)
	CancelOrders(ctx context.Context, venueIDs []string) ([]types.RESTCancelResult, error)
}

const maxCancelRetry = 3 // spec §4.6: cancel retry bound
const maxBatchSize = 20  // spec §4.1: venue's hard per-request batch limit; callers chunk

// Executor reconciles one contract's live orders against the latest
// TargetQuote.
type Executor struct {
	contract    string
	strategyTag string
	venue       venueSubmitter
	orders      *order.Manager
	orderlog    *orderlog.Logger
	log         *slog.Logger
}

// New creates an Executor for one contract.
func New(contract, strategyTag string, venue venueSubmitter, orders *order.Manager, ol *orderlog.Logger, log *slog.Logger) *Executor {
	return &Executor{
		contract:    contract,
		strategyTag: strategyTag,
		venue:       venue,
		orders:      orders,
		orderlog:    ol,
		log:         log.With("component", "executor", "contract", contract),
	}
}

// Reconcile cancels every live order for the contract, then submits the
// sides of q that carry nonzero size, per spec §4.6 steps 1-3. Cancel
// failures are retried up to maxCancelRetry times with immediate reissue;
// submit failures are not retried (spec §4.6 failure semantics) and are
// reported to the caller so the next quote cycle can try again.
func (e *Executor) Reconcile(ctx context.Context, q types.TargetQuote) error {
	live := e.orders.LiveOrders(e.contract, e.strategyTag)
	if len(live) > 0 {
		if err := e.cancelWithRetry(ctx, live); err != nil {
			return err
		}
	}

	var specs []types.OrderSpec
	if q.HasBid() {
		specs = append(specs, types.OrderSpec{Contract: e.contract, Price: q.BidPrice, Size: q.BidSize, StrategyTag: e.strategyTag})
	}
	if q.HasAsk() {
		specs = append(specs, types.OrderSpec{Contract: e.contract, Price: q.AskPrice, Size: q.AskSize.Neg(), StrategyTag: e.strategyTag})
	}
	if len(specs) == 0 {
		return nil
	}

	return e.submit(ctx, specs)
}

func (e *Executor) cancelWithRetry(ctx context.Context, live []*types.Order) error {
	venueIDs := make([]string, len(live))
	for i, o := range live {
		venueIDs[i] = o.VenueID
	}

	var lastErr error
	// One initial issue plus up to maxCancelRetry immediate reissues.
	for attempt := 0; attempt <= maxCancelRetry; attempt++ {
		var retry []string
		for _, chunk := range chunkStrings(venueIDs, maxBatchSize) {
			results, err := e.venue.CancelOrders(ctx, chunk)
			if err != nil {
				lastErr = errs.Wrap(errs.KindTransportError, err, "cancel orders").WithContract(e.contract)
				retry = append(retry, chunk...)
				continue
			}
			for _, r := range results {
				if !r.Succeeded {
					retry = append(retry, r.ID)
					continue
				}
				if _, err := e.orders.Cancel(r.ID); err != nil {
					e.log.Warn("cancel ack for unknown order", "venue_id", r.ID, "error", err)
					continue
				}
				e.orderlog.LogTransition(r.ID, e.contract, types.StatusCancelled, e.strategyTag)
			}
		}
		if len(retry) == 0 {
			return nil
		}
		venueIDs = retry
		lastErr = errs.New(errs.KindVenueRejectCancel, "venue rejected cancel").WithContract(e.contract)
	}
	return lastErr
}

// chunkStrings splits ids into groups of at most size, per spec §4.1's batch
// constraint.
func chunkStrings(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}

func (e *Executor) submit(ctx context.Context, specs []types.OrderSpec) error {
	pending := make([]*types.Order, len(specs))
	for i, spec := range specs {
		o, err := e.orders.Create(spec)
		if err != nil {
			return err
		}
		pending[i] = o
	}

	results, err := e.venue.SubmitOrders(ctx, specs)
	if err != nil {
		// spec §4.6: submit transport failure is not retried within this
		// cycle; the next quote cycle will compute a fresh TargetQuote.
		for _, o := range pending {
			_, _ = e.orders.Reject(o.InternalID)
		}
		return errs.Wrap(errs.KindTransportError, err, "submit orders").WithContract(e.contract)
	}

	for i, r := range results {
		if i >= len(pending) {
			break
		}
		o := pending[i]
		if !r.Succeeded {
			_, _ = e.orders.Reject(o.InternalID)
			e.log.Warn("order rejected by venue", "label", r.Label, "message", r.Message)
			e.orderlog.LogTransition(o.InternalID, e.contract, types.StatusRejected, e.strategyTag)
			continue
		}
		venueID := o.InternalID
		if r.ID != 0 {
			venueID = strconv.FormatInt(r.ID, 10)
		}
		if _, err := e.orders.Ack(o.InternalID, venueID, o.CreatedAtLocal); err != nil {
			e.log.Warn("ack of unknown pending order", "internal_id", o.InternalID, "error", err)
			continue
		}
		e.orderlog.LogTransition(venueID, e.contract, types.StatusLive, e.strategyTag)
	}
	return nil
}
