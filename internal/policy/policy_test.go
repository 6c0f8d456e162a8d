package policy

import (
	"testing"

	"github.com/shopspring/decimal"

	"marketmaker/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
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
		PriceStep:                   dec("0.1"),
		PriceRoundingPrecision:      1,
		QuoteStepSize:               dec("0.01"),
		EnableLongQuotes:            true,
		EnableShortQuotes:           true,
		MidPriceMode:                types.MidArithmetic,
	}
}

func TestLongSizeFullAtZeroPosition(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	size := LongSize(p, decimal.Zero)
	if !size.Equal(dec("1")) {
		t.Errorf("LongSize at zero position = %v, want 1 (DefaultLongSize)", size)
	}
}

func TestLongSizeTapersMonotonically(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	prev := LongSize(p, decimal.Zero)
	for _, pos := range []string{"2", "4", "6", "8"} {
		cur := LongSize(p, dec(pos))
		if cur.GreaterThan(prev) {
			t.Fatalf("LongSize(%s) = %v > previous %v; expected monotone non-increasing taper", pos, cur, prev)
		}
		prev = cur
	}
}

func TestLongSizeZeroAtOrBeyondMax(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	if size := LongSize(p, dec("10")); !size.IsZero() {
		t.Errorf("LongSize at MaxLong = %v, want 0", size)
	}
	if size := LongSize(p, dec("15")); !size.IsZero() {
		t.Errorf("LongSize beyond MaxLong = %v, want 0", size)
	}
}

func TestLongSizeDisabled(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	p.EnableLongQuotes = false
	if size := LongSize(p, decimal.Zero); !size.IsZero() {
		t.Errorf("LongSize with EnableLongQuotes=false = %v, want 0", size)
	}
}

func TestShortSizeMirrorsLongSizeShape(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	// Symmetric policy: ShortSize at -x should equal LongSize at x.
	for _, pos := range []string{"0", "2", "5", "9"} {
		long := LongSize(p, dec(pos))
		short := ShortSize(p, dec(pos).Neg())
		if !long.Equal(short) {
			t.Errorf("ShortSize(-%s) = %v, want %v (LongSize(%s))", pos, short, long, pos)
		}
	}
}

func TestShortSizeFullWhenLong(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	// A long position is not short exposure; ShortSize should stay at the
	// unclamped default rather than go negative.
	size := ShortSize(p, dec("5"))
	if !size.Equal(dec("1")) {
		t.Errorf("ShortSize while long = %v, want 1 (DefaultShortSize, unclamped)", size)
	}
}

func TestBidAskPriceDistanceFromMid(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	mid := dec("1000")

	bid := BidPrice(p, mid)
	ask := AskPrice(p, mid)

	if !bid.LessThan(mid) {
		t.Errorf("bid price %v should be below mid %v", bid, mid)
	}
	if !ask.GreaterThan(mid) {
		t.Errorf("ask price %v should be above mid %v", ask, mid)
	}
}

func TestClampNonCrossing(t *testing.T) {
	t.Parallel()
	if !ClampNonCrossing(dec("99"), dec("101")) {
		t.Error("ClampNonCrossing(99, 101) should be true (non-crossing)")
	}
	if ClampNonCrossing(dec("101"), dec("99")) {
		t.Error("ClampNonCrossing(101, 99) should be false (crossing)")
	}
	if ClampNonCrossing(dec("100"), dec("100")) {
		t.Error("ClampNonCrossing(100, 100) should be false (touching counts as crossing)")
	}
}

func TestClampBidPullsBackBehindBestBid(t *testing.T) {
	t.Parallel()
	step := dec("0.01")
	clamped := ClampBid(dec("100.00"), dec("100.00"), step)
	if !clamped.Equal(dec("99.99")) {
		t.Errorf("ClampBid(100.00, bestBid=100.00) = %v, want 99.99 (one step behind)", clamped)
	}
}

func TestClampBidLeavesNonCrossingBidUnchanged(t *testing.T) {
	t.Parallel()
	clamped := ClampBid(dec("99.50"), dec("100.00"), dec("0.01"))
	if !clamped.Equal(dec("99.50")) {
		t.Errorf("ClampBid(99.50, bestBid=100.00) = %v, want unchanged 99.50", clamped)
	}
}

func TestClampAskPullsBackAheadOfBestAsk(t *testing.T) {
	t.Parallel()
	clamped := ClampAsk(dec("100.00"), dec("100.00"), dec("0.01"))
	if !clamped.Equal(dec("100.01")) {
		t.Errorf("ClampAsk(100.00, bestAsk=100.00) = %v, want 100.01 (one step ahead)", clamped)
	}
}

func TestClampAskLeavesNonCrossingAskUnchanged(t *testing.T) {
	t.Parallel()
	clamped := ClampAsk(dec("100.50"), dec("100.00"), dec("0.01"))
	if !clamped.Equal(dec("100.50")) {
		t.Errorf("ClampAsk(100.50, bestAsk=100.00) = %v, want unchanged 100.50", clamped)
	}
}

func TestRoundPriceFloorsToStep(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	rounded := RoundPrice(p, dec("100.37"))
	if !rounded.Equal(dec("100.3")) {
		t.Errorf("RoundPrice(100.37) = %v, want 100.3 (floored to 0.1 step)", rounded)
	}
}

func TestRoundSizeFloorsToStep(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	rounded := RoundSize(p, dec("0.567"))
	if !rounded.Equal(dec("0.56")) {
		t.Errorf("RoundSize(0.567) = %v, want 0.56 (floored to 0.01 step)", rounded)
	}
}

func TestExceedsThreshold(t *testing.T) {
	t.Parallel()
	// 1000 -> 1000.4 is 4bps of the old price, below a 5bps threshold.
	if ExceedsThreshold(dec("1000"), dec("1000.4"), 5) {
		t.Error("4bps move should not exceed a 5bps threshold")
	}
	// 1000 -> 1000.6 is 6bps of the old price, above a 5bps threshold.
	if !ExceedsThreshold(dec("1000"), dec("1000.6"), 5) {
		t.Error("6bps move should exceed a 5bps threshold")
	}
}

func TestExceedsThresholdZeroOldPriceAlwaysTrue(t *testing.T) {
	t.Parallel()
	if !ExceedsThreshold(decimal.Zero, dec("0"), 5) {
		t.Error("ExceedsThreshold with zero old price should always report true")
	}
}
