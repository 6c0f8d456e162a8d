package feature

import (
	"testing"

	"github.com/shopspring/decimal"

	"marketmaker/internal/book"
	"marketmaker/pkg/types"
)

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

func TestImbalanceEmptyBookNotOK(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	c := New(b)

	if _, ok := c.Imbalance(5); ok {
		t.Error("Imbalance should not be computable with no book loaded")
	}
}

func TestImbalanceBalancedBookIsZero(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1,
		[]types.PriceLevel{lvl("1000", "5")},
		[]types.PriceLevel{lvl("1001", "5")},
	)
	c := New(b)

	imb, ok := c.Imbalance(5)
	if !ok {
		t.Fatal("expected Imbalance to be computable")
	}
	if !imb.IsZero() {
		t.Errorf("expected zero imbalance for equal bid/ask volume, got %v", imb)
	}
}

func TestImbalanceSkewedTowardBids(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1,
		[]types.PriceLevel{lvl("1000", "9")},
		[]types.PriceLevel{lvl("1001", "1")},
	)
	c := New(b)

	imb, ok := c.Imbalance(5)
	if !ok {
		t.Fatal("expected Imbalance to be computable")
	}
	if !imb.IsPositive() {
		t.Errorf("expected positive imbalance when bid volume dominates, got %v", imb)
	}
	want := dec("0.8") // (9-1)/(9+1)
	if !imb.Equal(want) {
		t.Errorf("imbalance = %v, want %v", imb, want)
	}
}

func TestImbalanceSkewedTowardAsks(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1,
		[]types.PriceLevel{lvl("1000", "1")},
		[]types.PriceLevel{lvl("1001", "9")},
	)
	c := New(b)

	imb, ok := c.Imbalance(5)
	if !ok {
		t.Fatal("expected Imbalance to be computable")
	}
	if !imb.IsNegative() {
		t.Errorf("expected negative imbalance when ask volume dominates, got %v", imb)
	}
}

func TestImbalanceDepthLimitsLevelsConsidered(t *testing.T) {
	t.Parallel()
	b := book.New("BTC_USDT", 20)
	b.LoadSnapshot(1,
		[]types.PriceLevel{lvl("1000", "1"), lvl("999", "100")},
		[]types.PriceLevel{lvl("1001", "1")},
	)
	c := New(b)

	// depth=1 should only see the best bid level (size 1), not the deep
	// second level (size 100) — imbalance should be ~0, not bid-skewed.
	imb, ok := c.Imbalance(1)
	if !ok {
		t.Fatal("expected Imbalance to be computable")
	}
	if !imb.IsZero() {
		t.Errorf("depth=1 imbalance should ignore the deeper bid level, got %v", imb)
	}
}
