package quote

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"marketmaker/internal/book"
	"marketmaker/internal/inventory"
	"marketmaker/pkg/types"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type noopFetcher struct{}

func (noopFetcher) FetchPositions(ctx context.Context) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lvl(price, size string) types.PriceLevel {
	return types.PriceLevel{Price: dec(price), Size: dec(size)}
}

func testPolicy() types.ContractPolicy {
	return types.ContractPolicy{
		Contract:                    "BTC_USDT",
		MaxLong:                     dec("10"),
		MaxShort:                    dec("10"),
		DefaultLongSize:             dec("1"),
		DefaultShortSize:            dec("1"),
		PositiveQuoteDistanceBps:    10,
		NegativeQuoteDistanceBps:    10,
		LongAdjustmentThresholdBps:  5,
		ShortAdjustmentThresholdBps: 5,
		PriceStep:                   dec("0.01"),
		PriceRoundingPrecision:      2,
		QuoteStepSize:               dec("0.001"),
		EnableLongQuotes:            true,
		EnableShortQuotes:           true,
		MidPriceMode:                types.MidArithmetic,
	}
}

func TestUpdateNoBookNotEmitted(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", testPolicy(), b, inv, testLog)

	if _, emitted := g.Update(); emitted {
		t.Error("Update should not emit with an empty book")
	}
}

func TestUpdateFirstCallEmits(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", testPolicy(), b, inv, testLog)

	q, emitted := g.Update()
	if !emitted {
		t.Fatal("Update should emit on the first call regardless of threshold")
	}
	if !q.HasBid() || !q.HasAsk() {
		t.Error("expected a two-sided quote from a balanced book")
	}
	if q.BidPrice.GreaterThanOrEqual(q.AskPrice) {
		t.Errorf("bid %v should be below ask %v", q.BidPrice, q.AskPrice)
	}
}

func TestUpdateSuppressedBelowThreshold(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", testPolicy(), b, inv, testLog)

	if _, emitted := g.Update(); !emitted {
		t.Fatal("first Update should emit")
	}

	// A sub-bps move in the underlying book should not trigger a requote.
	b.ApplyDelta([]types.PriceLevel{lvl("1000.001", "1")}, nil, 2)
	if _, emitted := g.Update(); emitted {
		t.Error("Update should be suppressed for a move below the requote threshold")
	}
}

func TestUpdateEmitsAfterThresholdMove(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", testPolicy(), b, inv, testLog)

	if _, emitted := g.Update(); !emitted {
		t.Fatal("first Update should emit")
	}

	// A move well past the 5bps threshold should requote.
	b.ApplyDelta([]types.PriceLevel{lvl("1010", "1")}, []types.PriceLevel{lvl("1011", "1")}, 2)
	if _, emitted := g.Update(); !emitted {
		t.Error("Update should emit after a move past the requote threshold")
	}
}

// zeroBidDistancePolicy forces the bid side to always hit ClampBid's clamp
// (raw bid == mid, and mid is always >= bestBid), so bidPrice becomes a pure
// function of the book's current best bid, independent of how far the ask
// side or mid moves. This lets the two tests below move the ask side by a
// large amount every tick while moving the bid side by a controlled, much
// smaller amount, to isolate the per-side gate's behavior.
func zeroBidDistancePolicy() types.ContractPolicy {
	p := testPolicy()
	p.PositiveQuoteDistanceBps = 0
	return p
}

func TestUpdateMixedSideOnlyReplacesMovedSideBaseline(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", zeroBidDistancePolicy(), b, inv, testLog)

	first, emitted := g.Update()
	if !emitted {
		t.Fatal("first Update should emit")
	}

	// Move the ask side by a huge amount (certain to cross its threshold) and
	// the bid side's underlying book by a small amount that, on its own,
	// stays under the bid threshold. The old best ask is removed so 2001
	// becomes the new top of the ask side.
	b.ApplyDelta([]types.PriceLevel{lvl("1000.15", "1")}, []types.PriceLevel{lvl("1001", "0"), lvl("2001", "1")}, 2)

	second, emitted := g.Update()
	if !emitted {
		t.Fatal("Update should emit — the ask side crossed its threshold")
	}
	if second.AskPrice.Equal(first.AskPrice) {
		// sanity: the ask side must actually have moved from the first quote.
		t.Fatalf("ask price should have changed from %v, got %v", first.AskPrice, second.AskPrice)
	}
	if !second.BidPrice.Equal(first.BidPrice) {
		t.Errorf("bid side did not cross its threshold — expected frozen bid price %v, got %v (spec §4.4: only the side crossing threshold is replaced)", first.BidPrice, second.BidPrice)
	}
}

func TestUpdateUnmovedSideAccumulatesDriftAcrossEmits(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	g := New("BTC_USDT", zeroBidDistancePolicy(), b, inv, testLog)

	first, emitted := g.Update()
	if !emitted {
		t.Fatal("first Update should emit")
	}

	// Four ticks: the bid side's underlying best-bid creeps up by 0.15 each
	// time (individually under the 5bps threshold measured against the
	// frozen baseline), while the ask side jumps by 1000 every tick so every
	// Update call emits. If a side's baseline silently reset to the latest
	// computed price on every emit (the bug), the bid side would compare
	// each tick against the *previous tick's* price rather than its frozen
	// baseline, and its 0.15 per-tick drift would never accumulate past
	// threshold. With the fix, the baseline stays pinned at the first
	// emitted bid price until the cumulative drift from it crosses
	// threshold.
	bidPrices := []string{"1000.15", "1000.30", "1000.45", "1000.60"}
	askPrices := []string{"2001", "3001", "4001", "5001"}
	lastUpdateID := int64(2)
	prevAsk := "1001"
	var lastBidMoved bool
	for i := range bidPrices {
		// Remove the previous best ask so each tick's ask becomes the new top.
		b.ApplyDelta([]types.PriceLevel{lvl(bidPrices[i], "1")}, []types.PriceLevel{lvl(prevAsk, "0"), lvl(askPrices[i], "1")}, lastUpdateID)
		prevAsk = askPrices[i]
		lastUpdateID++

		q, emitted := g.Update()
		if !emitted {
			t.Fatalf("tick %d: Update should emit — the ask side always crosses its threshold", i)
		}
		lastBidMoved = !q.BidPrice.Equal(first.BidPrice)
		if i < 3 && lastBidMoved {
			t.Fatalf("tick %d: bid price moved to %v before its cumulative drift from the frozen baseline %v crossed threshold", i, q.BidPrice, first.BidPrice)
		}
	}
	if !lastBidMoved {
		t.Error("bid side should have requoted once its cumulative drift from the frozen baseline crossed threshold")
	}
}

func TestUpdateZeroesSizesWhenPositionMaxedOut(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1, []types.PriceLevel{lvl("1000", "1")}, []types.PriceLevel{lvl("1001", "1")})
	inv := inventory.NewTracker(noopFetcher{})
	inv.ApplyTrade("BTC_USDT", dec("10")) // at MaxLong already

	g := New("BTC_USDT", testPolicy(), b, inv, testLog)
	q, emitted := g.Update()
	if !emitted {
		t.Fatal("Update should still emit the first time even with zero bid size")
	}
	if q.HasBid() {
		t.Errorf("expected zero bid size at MaxLong position, got size=%v", q.BidSize)
	}
	if !q.HasAsk() {
		t.Error("expected a nonzero ask — short exposure is unaffected by a long position")
	}
}
