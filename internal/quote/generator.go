// Package quote implements the Quote Generator of spec §4.4: book + policy +
// inventory -> a two-sided TargetQuote, gated by a per-side requote
// threshold so the executor doesn't thrash on noise-level mid movement.
//
// Grounded on _examples/original_source/quote_gen_gateio.py's
// generate_quotes, restructured into the pure-function shape of
// _examples/0xtitan6-polymarket-mm/internal/strategy/maker.go's
// computeQuotes (no direct venue I/O; returns a value the caller decides
// what to do with).
package quote

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketmaker/internal/book"
	"marketmaker/internal/feature"
	"marketmaker/internal/inventory"
	"marketmaker/internal/policy"
	"marketmaker/pkg/types"
)

// Generator computes TargetQuotes for one contract and gates emission by the
// configured requote thresholds.
type Generator struct {
	contract  string
	policy    types.ContractPolicy
	features  *feature.Computer
	inventory *inventory.Tracker
	log       *slog.Logger

	mu          sync.Mutex
	lastBid     decimal.Decimal
	lastBidSize decimal.Decimal
	lastAsk     decimal.Decimal
	lastAskSize decimal.Decimal
	hasPrior    bool
}

// New creates a Generator for one contract.
func New(contract string, p types.ContractPolicy, b *book.Book, inv *inventory.Tracker, log *slog.Logger) *Generator {
	return &Generator{
		contract:  contract,
		policy:    p,
		features:  feature.New(b),
		inventory: inv,
		log:       log.With("component", "quote_generator", "contract", contract),
	}
}

// Update recomputes the target quote from current book/inventory state.
// emitted is false when the book has no two-sided market yet, or when
// neither side moved past its requote threshold since the last emission.
func (g *Generator) Update() (q types.TargetQuote, emitted bool) {
	mid, ok := g.features.Mid(g.policy)
	if !ok {
		return types.TargetQuote{}, false
	}
	bestBid, bestAsk, ok := g.features.BestBidAsk()
	if !ok {
		return types.TargetQuote{}, false
	}

	position := g.inventory.Position(g.contract)

	bidPrice := policy.ClampBid(policy.BidPrice(g.policy, mid), bestBid.Price, g.policy.PriceStep)
	askPrice := policy.ClampAsk(policy.AskPrice(g.policy, mid), bestAsk.Price, g.policy.PriceStep)
	bidSize := policy.LongSize(g.policy, position)
	askSize := policy.ShortSize(g.policy, position)

	if !policy.ClampNonCrossing(bidPrice, askPrice) {
		bidSize = decimal.Zero
		askSize = decimal.Zero
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	bidMoved := !g.hasPrior || policy.ExceedsThreshold(g.lastBid, bidPrice, g.policy.LongAdjustmentThresholdBps)
	askMoved := !g.hasPrior || policy.ExceedsThreshold(g.lastAsk, askPrice, g.policy.ShortAdjustmentThresholdBps)
	if !bidMoved && !askMoved {
		return types.TargetQuote{}, false
	}

	// spec §4.4: "The gate is evaluated per side independently; only the
	// side(s) crossing threshold are replaced in the 'current' record" — a
	// side that didn't cross its threshold keeps its frozen baseline (price
	// and size) rather than silently resetting to the latest computed value,
	// so its own cumulative drift is preserved across an emission triggered
	// by the other side.
	if bidMoved {
		g.lastBid = bidPrice
		g.lastBidSize = bidSize
	}
	if askMoved {
		g.lastAsk = askPrice
		g.lastAskSize = askSize
	}
	g.hasPrior = true

	if imb, ok := g.features.Imbalance(g.policy.ImbalanceDepth); ok {
		g.log.Debug("book imbalance", "imbalance", imb.StringFixed(4), "bid_moved", bidMoved, "ask_moved", askMoved)
	}

	return types.TargetQuote{
		Contract:    g.contract,
		BidPrice:    g.lastBid,
		BidSize:     g.lastBidSize,
		AskPrice:    g.lastAsk,
		AskSize:     g.lastAskSize,
		GeneratedAt: time.Now(),
	}, true
}
