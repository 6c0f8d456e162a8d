// Package engine is the central supervisor of the market-making engine: it
// wires every subsystem together and owns the lifecycle of every goroutine,
// per spec §5's concurrency model.
//
// Grounded on _examples/0xtitan6-polymarket-mm/internal/engine/engine.go's
// Engine (context+WaitGroup supervisor, per-market slot, WS event dispatch
// loops, New/Start/Stop lifecycle), generalized from one slot per Polymarket
// market to one slot per configured perpetual-futures contract, and from
// that engine's scanner-driven market set to spec §1's configured contract
// set.
package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketmaker/internal/book"
	"marketmaker/internal/config"
	"marketmaker/internal/errs"
	"marketmaker/internal/executor"
	"marketmaker/internal/inventory"
	"marketmaker/internal/order"
	"marketmaker/internal/orderlog"
	"marketmaker/internal/quote"
	"marketmaker/internal/venue"
	"marketmaker/pkg/types"
)

// contractSlot is one actively-quoted contract: its quote generator and
// executor, plus the channel and cancel func driving its reconcile loop.
type contractSlot struct {
	generator *quote.Generator
	executor  *executor.Executor
	quoteCh   chan types.TargetQuote // size-1, overwritten — spec §5 backpressure
	cancel    context.CancelFunc
}

// Engine orchestrates every component: venue connectivity, the per-contract
// book/quote/executor pipeline, and order-state dispatch.
type Engine struct {
	cfg       config.Config
	client    *venue.Client
	mktFeed   *venue.WSFeed
	usrFeed   *venue.WSFeed
	bookMgr   *book.Manager
	inventory *inventory.Tracker
	orders    *order.Manager
	orderlog  *orderlog.Logger
	log       *slog.Logger

	slotsMu sync.RWMutex
	slots   map[string]*contractSlot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every subsystem from cfg. It does not contact the venue; call
// Start to bootstrap books, seed inventory, and begin quoting.
func New(cfg config.Config, log *slog.Logger) (*Engine, error) {
	auth := venue.NewAuth(venue.Credentials{APIKey: cfg.Venue.APIKey, APISecret: cfg.Venue.APISecret})
	client := venue.NewClient(venue.Config{
		RESTBaseURL: cfg.Venue.RESTBaseURL,
		WSURL:       cfg.Venue.WSURL,
		Credentials: venue.Credentials{APIKey: cfg.Venue.APIKey, APISecret: cfg.Venue.APISecret},
		DryRun:      cfg.DryRun,
	}, log)

	contracts := make([]string, 0, len(cfg.Contracts))
	for symbol := range cfg.Contracts {
		contracts = append(contracts, symbol)
	}

	var ol *orderlog.Logger
	if cfg.OrderLog.Enabled {
		var err error
		ol, err = orderlog.Open(cfg.OrderLog.Path)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfigError, err, "open order log")
		}
	}

	e := &Engine{
		cfg:       cfg,
		client:    client,
		mktFeed:   venue.NewMarketFeed(cfg.Venue.WSURL, contracts, log),
		usrFeed:   venue.NewUserFeed(cfg.Venue.WSURL, auth, contracts, log),
		inventory: inventory.NewTracker(client),
		orders:    order.NewManager(),
		orderlog:  ol,
		log:       log.With("component", "engine"),
		slots:     make(map[string]*contractSlot),
	}
	// onUpdate is invoked synchronously from the book's ingestion task, per
	// spec §5's on_orderbook_update callback — it recomputes and pushes this
	// contract's target quote without blocking the caller.
	e.bookMgr = book.NewManager(log, client, cfg.Book.Depth, cfg.Book.MaxDeltaBuffer, e.recomputeQuote)

	return e, nil
}

// bootstrapSettleDelay is the pause between subscribing to a contract's
// incremental stream and requesting its REST snapshot, per spec §4.2 step 2
// ("a small settle delay, on the order of one cadence interval") — it gives
// the WS subscription time to start buffering before the snapshot id is
// chosen, so the drain in Bootstrap has deltas to reconcile against rather
// than racing the very first frames.
const bootstrapSettleDelay = 250 * time.Millisecond

// Start seeds the Inventory Tracker from REST, then launches the WS feeds and
// event dispatchers — so every contract's book begins buffering deltas from
// its very first inbound frame, per spec §4.2 step 1 — then bootstraps each
// contract's book and wires its quote/executor slot. Returns once startup bootstrap
// completes; the launched goroutines keep running until ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.inventory.Seed(e.ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.mktFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.log.Error("market feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.usrFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.log.Error("user feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchBookDeltas()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchTrades()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchOrderEvents()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchUserReconnects()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchBalances()
	}()

	select {
	case <-time.After(bootstrapSettleDelay):
	case <-e.ctx.Done():
		return e.ctx.Err()
	}

	for symbol, cc := range e.cfg.Contracts {
		policy, err := e.cfg.ContractPolicy(symbol)
		if err != nil {
			return errs.Wrap(errs.KindConfigError, err, "load contract policy").WithContract(symbol)
		}
		if err := e.bookMgr.Bootstrap(e.ctx, symbol); err != nil {
			return err
		}
		e.startSlot(symbol, policy, cc.StrategyTag)
		// Bootstrap's own onUpdate fired before this slot existed; recompute
		// once now so the first quote isn't lost waiting on the next delta.
		e.recomputeQuote(symbol)
	}

	return nil
}

// startSlot wires one contract's book -> quote.Generator -> executor
// pipeline and launches its reconcile goroutine. Quote recomputation itself
// is not a loop: it runs synchronously off book.Manager's onUpdate callback
// and the trade dispatcher, per spec §5's event-driven control flow.
func (e *Engine) startSlot(symbol string, policy types.ContractPolicy, strategyTag string) {
	b := e.bookMgr.Book(symbol)
	slotCtx, cancel := context.WithCancel(e.ctx)

	slot := &contractSlot{
		generator: quote.New(symbol, policy, b, e.inventory, e.log),
		executor:  executor.New(symbol, strategyTag, e.client, e.orders, e.orderlog, e.log),
		quoteCh:   make(chan types.TargetQuote, 1),
		cancel:    cancel,
	}

	e.slotsMu.Lock()
	e.slots[symbol] = slot
	e.slotsMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runReconcileLoop(slotCtx, symbol, slot)
	}()
}

// recomputeQuote recomputes contract's target quote and, if the requote
// threshold gate emits one, pushes it into the contract's bounded,
// overwrite-on-full channel. Called synchronously from book.Manager's
// onUpdate callback (on_orderbook_update) and from dispatchTrades
// (on_position_update) — spec §5 requires both to be non-blocking, which the
// overwrite-on-full channel send guarantees.
func (e *Engine) recomputeQuote(contract string) {
	e.slotsMu.RLock()
	slot, ok := e.slots[contract]
	e.slotsMu.RUnlock()
	if !ok {
		return
	}

	q, emitted := slot.generator.Update()
	if !emitted {
		return
	}
	select {
	case slot.quoteCh <- q:
	default:
		select {
		case <-slot.quoteCh:
		default:
		}
		slot.quoteCh <- q
	}
}

// runReconcileLoop drains the contract's quote channel and reconciles it
// against live orders via the Execution Executor.
func (e *Engine) runReconcileLoop(ctx context.Context, symbol string, slot *contractSlot) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-slot.quoteCh:
			if err := slot.executor.Reconcile(ctx, q); err != nil {
				e.log.Warn("reconcile failed", "contract", symbol, "error", err)
			}
		}
	}
}

func (e *Engine) dispatchBookDeltas() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case frame, ok := <-e.mktFeed.BookUpdates():
			if !ok {
				return
			}
			update, err := decodeBookFrame(frame)
			if err != nil {
				e.log.Error("decode book frame", "error", err)
				continue
			}
			if err := e.bookMgr.OnDelta(e.ctx, update); err != nil {
				e.log.Error("apply book delta", "contract", frame.Contract, "error", err)
			}
		}
	}
}

func (e *Engine) dispatchTrades() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case trade, ok := <-e.usrFeed.Trades():
			if !ok {
				return
			}
			e.inventory.ApplyTrade(trade.Contract, decimal.NewFromInt(trade.Size))
			e.recomputeQuote(trade.Contract)
		}
	}
}

// dispatchUserReconnects re-seeds the Inventory Tracker from REST on every
// user-feed (re)connect, per spec §4.3: a disconnect may have dropped trade
// events, so the tracker cannot trust what it accumulated since the last
// seed and must replace it atomically instead.
func (e *Engine) dispatchUserReconnects() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case _, ok := <-e.usrFeed.Reconnects():
			if !ok {
				return
			}
			if err := e.inventory.Reseed(e.ctx); err != nil {
				e.log.Error("inventory reseed after reconnect failed", "error", err)
			}
		}
	}
}

// dispatchBalances logs futures.balances pushes. This engine holds no
// durable balance ledger of its own — the Inventory Tracker's REST-seeded
// position is authoritative for sizing (spec §4.3) — so a balance update is
// purely observational: it surfaces account-level PnL/fee/funding changes in
// the structured log stream for operators, from the futures.balances
// subscription listed in SPEC_FULL.md §5.1.
func (e *Engine) dispatchBalances() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case bal, ok := <-e.usrFeed.Balances():
			if !ok {
				return
			}
			e.log.Info("balance update",
				"contract", bal.Contract,
				"balance", bal.Balance,
				"change", bal.Change,
				"type", bal.Type,
				"text", bal.Text,
			)
		}
	}
}

// dispatchOrderEvents handles futures.autoorders frames: a finished event
// with zero size left is a fill, otherwise it is an exchange-side cancel
// (e.g. IOC/post-only reject, liquidation, or an operator action outside
// this engine). Both transitions no-op on orders this engine never tracked
// (another process's resting orders on the account).
func (e *Engine) dispatchOrderEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt, ok := <-e.usrFeed.OrderEvents():
			if !ok {
				return
			}
			if evt.Status != "finished" {
				continue
			}
			venueID := strconv.FormatInt(evt.ID, 10)
			if evt.Left == 0 {
				if _, err := e.orders.MarkFilled(venueID); err != nil {
					e.log.Debug("fill event for untracked order", "venue_id", venueID)
				}
				continue
			}
			if _, err := e.orders.Cancel(venueID); err != nil {
				e.log.Debug("cancel event for untracked order", "venue_id", venueID)
			}
		}
	}
}

// Stop cancels every goroutine, cancels all live orders on the venue as a
// safety net (this engine keeps no durable ledger and does not attempt
// restart recovery, so resting orders must be pulled explicitly before
// exit), and waits for shutdown to complete.
func (e *Engine) Stop() {
	e.log.Info("shutting down")
	e.cancel()

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCancel()

	e.slotsMu.RLock()
	symbols := make([]string, 0, len(e.slots))
	for symbol := range e.slots {
		symbols = append(symbols, symbol)
	}
	e.slotsMu.RUnlock()

	for _, symbol := range symbols {
		live := e.orders.LiveOrders(symbol, "")
		if len(live) == 0 {
			continue
		}
		venueIDs := make([]string, len(live))
		for i, o := range live {
			venueIDs[i] = o.VenueID
		}
		if _, err := e.client.CancelOrders(cancelCtx, venueIDs); err != nil {
			e.log.Error("failed to cancel orders on shutdown", "contract", symbol, "error", err)
		}
	}

	e.wg.Wait()
	if e.orderlog != nil {
		_ = e.orderlog.Close()
	}
}

func decodeBookFrame(frame types.WSBookUpdateFrame) (types.BookUpdate, error) {
	bids, err := decodeRESTLevels(frame.Bids)
	if err != nil {
		return types.BookUpdate{}, err
	}
	asks, err := decodeRESTLevels(frame.Asks)
	if err != nil {
		return types.BookUpdate{}, err
	}
	return types.BookUpdate{
		Contract:        frame.Contract,
		FirstUpdateID:   frame.FirstID,
		LastUpdateID:    frame.LastID,
		Bids:            bids,
		Asks:            asks,
		ReceivedAtLocal: time.Now(),
	}, nil
}

func decodeRESTLevels(raw []types.RESTPriceLevel) ([]types.PriceLevel, error) {
	out := make([]types.PriceLevel, len(raw))
	for i, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, err
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, err
		}
		out[i] = types.PriceLevel{Price: price, Size: size}
	}
	return out, nil
}
