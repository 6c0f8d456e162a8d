package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSideOpposite(t *testing.T) {
	t.Parallel()
	if Buy.Opposite() != Sell {
		t.Errorf("Buy.Opposite() = %v, want Sell", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("Sell.Opposite() = %v, want Buy", Sell.Opposite())
	}
}

func TestOrderSideFromSize(t *testing.T) {
	t.Parallel()
	bid := Order{Size: decimal.NewFromInt(1)}
	if bid.Side() != Buy {
		t.Errorf("Order with positive size: Side() = %v, want Buy", bid.Side())
	}
	ask := Order{Size: decimal.NewFromInt(-1)}
	if ask.Side() != Sell {
		t.Errorf("Order with negative size: Side() = %v, want Sell", ask.Side())
	}
}

func TestTargetQuoteHasBidHasAsk(t *testing.T) {
	t.Parallel()
	q := TargetQuote{BidSize: decimal.NewFromInt(1), AskSize: decimal.Zero}
	if !q.HasBid() {
		t.Error("HasBid() should be true for a positive BidSize")
	}
	if q.HasAsk() {
		t.Error("HasAsk() should be false for a zero AskSize")
	}
}
