// Package book implements the Local Order Book of spec §4.2: a per-contract
// mirror of the venue's order book, maintained by applying a REST snapshot
// followed by a stream of incremental deltas, each keyed by an (U, u)
// update-id range.
//
// Grounded on _examples/original_source/baseorderbook.py — the remove,
// insert, sort, truncate merge algorithm is a direct translation of
// Orderbook.update_bids/update_asks from numpy array operations to sorted
// Go slices.
package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"marketmaker/pkg/types"
)

// Book is one contract's local order book mirror. Safe for concurrent use;
// reads and the single writer goroutine (owned by Manager) serialize through
// mu.
type Book struct {
	mu sync.RWMutex

	contract     string
	depth        int // retained levels per side after truncation
	bids         []types.PriceLevel // sorted descending by price
	asks         []types.PriceLevel // sorted ascending by price
	lastUpdateID int64
}

// New creates an empty book for contract, retaining up to depth levels per
// side.
func New(contract string, depth int) *Book {
	return &Book{contract: contract, depth: depth}
}

// Contract returns the contract this book mirrors.
func (b *Book) Contract() string { return b.contract }

// LastUpdateID returns the update id the book currently reflects.
func (b *Book) LastUpdateID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateID
}

// LoadSnapshot installs a REST snapshot, replacing all prior state. Per
// spec §4.2, this is how the book becomes Initialized.
func (b *Book) LoadSnapshot(lastUpdateID int64, bids, asks []types.PriceLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = sortTruncate(bids, true, b.depth)
	b.asks = sortTruncate(asks, false, b.depth)
	b.lastUpdateID = lastUpdateID
}

// ApplyDelta merges one incremental update into the book. The caller (book.Manager)
// is responsible for enforcing the (U, u) applicability contract before
// calling this — ApplyDelta unconditionally merges and advances
// lastUpdateID to u.
func (b *Book) ApplyDelta(bids, asks []types.PriceLevel, lastUpdateID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = mergeLevels(b.bids, bids, true, b.depth)
	b.asks = mergeLevels(b.asks, asks, false, b.depth)
	b.lastUpdateID = lastUpdateID
}

// BestBidAsk returns the top of book. ok is false if either side is empty.
func (b *Book) BestBidAsk() (bid, ask types.PriceLevel, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return types.PriceLevel{}, types.PriceLevel{}, false
	}
	return b.bids[0], b.asks[0], true
}

// Levels returns a copy of the top n levels of each side, for use by
// internal/feature.
func (b *Book) Levels(n int) (bids, asks []types.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bids = append(bids, b.bids[:min(n, len(b.bids))]...)
	asks = append(asks, b.asks[:min(n, len(b.asks))]...)
	return bids, asks
}

// mergeLevels applies delta updates (where a zero size means "remove this
// price") onto current, re-sorts, and truncates to depth. Grounded on
// baseorderbook.py's update_bids/update_asks: remove rows whose price
// matches an update, vstack the update rows with nonzero size, sort, and
// truncate.
func mergeLevels(current, delta []types.PriceLevel, descending bool, depth int) []types.PriceLevel {
	byPrice := make(map[string]types.PriceLevel, len(current)+len(delta))
	for _, lvl := range current {
		byPrice[lvl.Price.String()] = lvl
	}
	for _, lvl := range delta {
		key := lvl.Price.String()
		if lvl.Size.IsZero() {
			delete(byPrice, key)
			continue
		}
		byPrice[key] = lvl
	}

	merged := make([]types.PriceLevel, 0, len(byPrice))
	for _, lvl := range byPrice {
		merged = append(merged, lvl)
	}
	return sortTruncate(merged, descending, depth)
}

func sortTruncate(levels []types.PriceLevel, descending bool, depth int) []types.PriceLevel {
	out := make([]types.PriceLevel, len(levels))
	copy(out, levels)
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].Price.Cmp(out[j].Price)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	if depth > 0 && len(out) > depth {
		out = out[:depth]
	}
	return out
}

// Mid returns the reference mid price per the contract's configured
// MidPriceMode. Grounded on
// _examples/original_source/features_gateio.py's best_bid_ask and
// volume_weighted_mid_price, which this generalizes into one entry point
// selected by policy (see DESIGN.md Open Question 1).
func (b *Book) Mid(mode types.MidPriceMode, vwmpDepth int) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	if mode == types.MidVWMP {
		return vwmp(b.bids, b.asks, vwmpDepth)
	}
	two := decimal.NewFromInt(2)
	return b.bids[0].Price.Add(b.asks[0].Price).Div(two), true
}

func vwmp(bids, asks []types.PriceLevel, depth int) (decimal.Decimal, bool) {
	bidPrice, bidVol, ok := weightedSide(bids, depth)
	if !ok {
		return decimal.Zero, false
	}
	askPrice, askVol, ok := weightedSide(asks, depth)
	if !ok {
		return decimal.Zero, false
	}
	if bidVol.IsZero() || askVol.IsZero() {
		return decimal.Zero, false
	}
	two := decimal.NewFromInt(2)
	return bidPrice.Add(askPrice).Div(two), true
}

func weightedSide(levels []types.PriceLevel, depth int) (price, totalVol decimal.Decimal, ok bool) {
	n := min(depth, len(levels))
	if n == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	var weighted decimal.Decimal
	for _, lvl := range levels[:n] {
		weighted = weighted.Add(lvl.Price.Mul(lvl.Size))
		totalVol = totalVol.Add(lvl.Size)
	}
	if totalVol.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	return weighted.Div(totalVol), totalVol, true
}
