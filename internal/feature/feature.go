// Package feature computes derived signals over a book.Book: the reference
// mid price and order book imbalance.
//
// Grounded on _examples/original_source/features_gateio.py's Features class
// (best_bid_ask, volume_weighted_mid_price, order_book_imbalance), ported
// from numpy array slicing to decimal.Decimal arithmetic over
// []types.PriceLevel.
package feature

import (
	"github.com/shopspring/decimal"

	"marketmaker/internal/book"
	"marketmaker/pkg/types"
)

// Computer derives features from a contract's local order book.
type Computer struct {
	b *book.Book
}

// New creates a Computer bound to a single contract's book.
func New(b *book.Book) *Computer {
	return &Computer{b: b}
}

// Mid returns the reference mid price per the given policy's MidPriceMode.
func (c *Computer) Mid(policy types.ContractPolicy) (decimal.Decimal, bool) {
	return c.b.Mid(policy.MidPriceMode, policy.VWMPDepth)
}

// BestBidAsk returns the book's current top of book, used by the Quote
// Generator's non-crossing clamp (spec §4.4 step 3).
func (c *Computer) BestBidAsk() (bid, ask types.PriceLevel, ok bool) {
	return c.b.BestBidAsk()
}

// Imbalance returns (bidVolume - askVolume) / (bidVolume + askVolume) over
// the top depth levels of each side, in [-1, 1]. Restores a feature named in
// spec §2's component table but not otherwise specified there — see
// SPEC_FULL.md §10. Logged by internal/quote.Generator as a diagnostic signal
// each time it emits a TargetQuote; recomputations gated out by the requote
// threshold do not log it.
func (c *Computer) Imbalance(depth int) (decimal.Decimal, bool) {
	bids, asks := c.b.Levels(depth)
	if len(bids) == 0 || len(asks) == 0 {
		return decimal.Zero, false
	}

	var bidVol, askVol decimal.Decimal
	for _, lvl := range bids {
		bidVol = bidVol.Add(lvl.Size)
	}
	for _, lvl := range asks {
		askVol = askVol.Add(lvl.Size)
	}

	total := bidVol.Add(askVol)
	if total.IsZero() {
		return decimal.Zero, false
	}
	return bidVol.Sub(askVol).Div(total), true
}
