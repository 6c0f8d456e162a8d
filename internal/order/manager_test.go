package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketmaker/pkg/types"
)

func testSpec() types.OrderSpec {
	return types.OrderSpec{Contract: "BTC_USDT", Price: decimal.NewFromInt(1000), Size: decimal.NewFromInt(1), StrategyTag: "smm"}
}

func TestCreateThenAckMovesToLive(t *testing.T) {
	t.Parallel()
	m := NewManager()

	o, err := m.Create(testSpec())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.Status != types.StatusPending {
		t.Errorf("status after Create = %v, want pending", o.Status)
	}

	acked, err := m.Ack(o.InternalID, "venue-1", time.Now())
	if err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if acked.Status != types.StatusLive {
		t.Errorf("status after Ack = %v, want live", acked.Status)
	}

	if _, ok := m.Get("venue-1"); !ok {
		t.Error("Get should find the order by venue id after Ack")
	}
	if live := m.LiveOrders("BTC_USDT", ""); len(live) != 1 {
		t.Errorf("LiveOrders returned %d orders, want 1", len(live))
	}
}

func TestAckUnknownOrderFails(t *testing.T) {
	t.Parallel()
	m := NewManager()
	if _, err := m.Ack("does-not-exist", "venue-1", time.Now()); err == nil {
		t.Error("Ack of an unknown pending order should fail")
	}
}

func TestRejectRemovesFromPending(t *testing.T) {
	t.Parallel()
	m := NewManager()
	o, _ := m.Create(testSpec())

	rejected, err := m.Reject(o.InternalID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != types.StatusRejected {
		t.Errorf("status after Reject = %v, want rejected", rejected.Status)
	}
	if _, err := m.Reject(o.InternalID); err == nil {
		t.Error("double Reject of the same order should fail")
	}
}

func TestCancelMovesLiveToCancelled(t *testing.T) {
	t.Parallel()
	m := NewManager()
	o, _ := m.Create(testSpec())
	m.Ack(o.InternalID, "venue-1", time.Now())

	cancelled, err := m.Cancel("venue-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != types.StatusCancelled {
		t.Errorf("status after Cancel = %v, want cancelled", cancelled.Status)
	}
	if _, ok := m.Get("venue-1"); ok {
		t.Error("Get should not find a cancelled order by venue id")
	}
	if live := m.LiveOrders("BTC_USDT", ""); len(live) != 0 {
		t.Errorf("LiveOrders after Cancel returned %d, want 0", len(live))
	}
}

func TestMarkFilledMovesLiveToFilled(t *testing.T) {
	t.Parallel()
	m := NewManager()
	o, _ := m.Create(testSpec())
	m.Ack(o.InternalID, "venue-1", time.Now())

	filled, err := m.MarkFilled("venue-1")
	if err != nil {
		t.Fatalf("MarkFilled: %v", err)
	}
	if filled.Status != types.StatusFilled {
		t.Errorf("status after MarkFilled = %v, want filled", filled.Status)
	}
	if live := m.LiveOrders("BTC_USDT", ""); len(live) != 0 {
		t.Errorf("LiveOrders after MarkFilled returned %d, want 0", len(live))
	}
}

func TestLiveOrdersFiltersByContractAndStrategyTag(t *testing.T) {
	t.Parallel()
	m := NewManager()

	specA := types.OrderSpec{Contract: "BTC_USDT", Price: decimal.NewFromInt(1000), Size: decimal.NewFromInt(1), StrategyTag: "tag-a"}
	specB := types.OrderSpec{Contract: "ETH_USDT", Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1), StrategyTag: "tag-b"}

	oa, _ := m.Create(specA)
	ob, _ := m.Create(specB)
	m.Ack(oa.InternalID, "venue-a", time.Now())
	m.Ack(ob.InternalID, "venue-b", time.Now())

	if got := m.LiveOrders("BTC_USDT", ""); len(got) != 1 || got[0].Contract != "BTC_USDT" {
		t.Errorf("LiveOrders(BTC_USDT, \"\") = %v, want only the BTC_USDT order", got)
	}
	if got := m.LiveOrders("", "tag-b"); len(got) != 1 || got[0].StrategyTag != "tag-b" {
		t.Errorf("LiveOrders(\"\", tag-b) = %v, want only the tag-b order", got)
	}
	if got := m.LiveOrders("BTC_USDT", "tag-b"); len(got) != 0 {
		t.Errorf("LiveOrders(BTC_USDT, tag-b) = %v, want none (disjoint filters)", got)
	}
}
