// Package inventory implements the Inventory Tracker of spec §4.3: a
// per-contract signed position, seeded from a REST snapshot and kept current
// from the venue's user-trade stream, with a Reseed path for reconnects.
//
// Grounded on _examples/original_source/inventory_manager_gateio.py's
// InventoryManagerGateio (positions list, initialize_positions,
// update_position/get_position, handle_user_trade), restructured to the
// mutex-protected-struct shape of
// _examples/0xtitan6-polymarket-mm/internal/strategy/inventory.go instead of
// a linearly-scanned list of tuples.
package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketmaker/internal/errs"
)

// positionFetcher fetches current signed positions for all contracts.
// Implemented by internal/venue.Client.
type positionFetcher interface {
	FetchPositions(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Tracker owns signed net position per contract.
type Tracker struct {
	mu       sync.RWMutex
	fetcher  positionFetcher
	seededAt time.Time
	position map[string]decimal.Decimal
}

// NewTracker creates an empty Tracker.
func NewTracker(fetcher positionFetcher) *Tracker {
	return &Tracker{fetcher: fetcher, position: make(map[string]decimal.Decimal)}
}

// Seed fetches current positions from the venue and replaces all state. Call
// once at startup before quoting begins.
func (t *Tracker) Seed(ctx context.Context) error {
	positions, err := t.fetcher.FetchPositions(ctx)
	if err != nil {
		return errs.Wrap(errs.KindTransportError, err, "seed positions")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = positions
	t.seededAt = time.Now()
	return nil
}

// Reseed re-fetches REST positions and atomically replaces state: trades
// applied before the replacement are overwritten by the fetched snapshot.
// Trade events still queued for ApplyTrade when the reseed completes are
// applied on top of the new state; they are not filtered against SeededAt,
// so a queued trade that the snapshot already reflects is counted again.
func (t *Tracker) Reseed(ctx context.Context) error {
	return t.Seed(ctx)
}

// ApplyTrade adjusts a contract's position by a signed fill size. Positive
// delta is a buy fill, negative is a sell fill.
func (t *Tracker) ApplyTrade(contract string, delta decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position[contract] = t.position[contract].Add(delta)
}

// Position returns the current signed position for a contract; zero if
// unseen.
func (t *Tracker) Position(contract string) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position[contract]
}

// Snapshot returns a copy of every tracked contract's current position.
func (t *Tracker) Snapshot() map[string]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(t.position))
	for k, v := range t.position {
		out[k] = v
	}
	return out
}

// SeededAt returns when the tracker last completed a Seed/Reseed.
func (t *Tracker) SeededAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seededAt
}
