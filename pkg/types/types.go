// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — contract policy,
// order book levels, positions, target quotes, orders, and the venue's wire
// formats. It has no dependency on any internal package, so it can be
// imported by any layer.
package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus is the internal lifecycle state of an Order, per spec §3.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusLive      OrderStatus = "live"
	StatusCancelled OrderStatus = "cancelled"
	StatusFilled    OrderStatus = "filled"
	StatusRejected  OrderStatus = "rejected"
)

// MidPriceMode selects how the Feature Computer derives the reference mid
// price for a contract. Left as a per-contract policy choice rather than a
// single repo-wide formula — see DESIGN.md Open Question 1.
type MidPriceMode string

const (
	MidArithmetic MidPriceMode = "arithmetic" // (bestBid + bestAsk) / 2
	MidVWMP       MidPriceMode = "vwmp"       // volume-weighted mid price over VWMPDepth levels
)

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single resting price/size pair on one side of the book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookUpdate is a single incremental delta frame from the venue's order-book
// WebSocket channel, carrying the (U, u) update-id range contract described
// in spec §3/§4.2: a delta is applicable to a book at last_update_id=L only
// when U <= L+1 <= u.
type BookUpdate struct {
	Contract        string
	FirstUpdateID   int64 // U
	LastUpdateID    int64 // u
	Bids            []PriceLevel
	Asks            []PriceLevel
	ReceivedAtLocal time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Inventory
// ————————————————————————————————————————————————————————————————————————

// Position is the signed net inventory in one contract. Positive is long,
// negative is short.
type Position struct {
	Contract  string
	Size      decimal.Decimal
	UpdatedAt time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Contract policy
// ————————————————————————————————————————————————————————————————————————

// ContractPolicy is the immutable-during-run configuration for one contract,
// per spec §3. Every bound and distance is fixed-point.
type ContractPolicy struct {
	Contract string

	MaxLong  decimal.Decimal // hard long inventory bound
	MaxShort decimal.Decimal // hard short inventory bound (magnitude, positive)

	DefaultLongSize  decimal.Decimal // quoted bid size at zero inventory
	DefaultShortSize decimal.Decimal // quoted ask size at zero inventory

	PositiveQuoteDistanceBps int64 // bid distance below mid, in basis points
	NegativeQuoteDistanceBps int64 // ask distance above mid, in basis points

	LongAdjustmentThresholdBps  int64 // minimum bid price move to requote, in bps of the previous bid
	ShortAdjustmentThresholdBps int64 // minimum ask price move to requote, in bps of the previous ask

	PriceStep              decimal.Decimal // minimum price increment
	PriceRoundingPrecision int32           // decimal places to round prices to
	QuoteStepSize          decimal.Decimal // minimum/step size for quoted sizes

	EnableLongQuotes  bool
	EnableShortQuotes bool

	MidPriceMode MidPriceMode
	VWMPDepth    int // depth used when MidPriceMode == MidVWMP

	ImbalanceDepth int // depth used for the order-book imbalance signal
}

// ————————————————————————————————————————————————————————————————————————
// Quotes
// ————————————————————————————————————————————————————————————————————————

// TargetQuote is the two-sided quote the Quote Generator wants live for one
// contract. A zero Size on a side means that side should be pulled.
type TargetQuote struct {
	Contract    string
	BidPrice    decimal.Decimal
	BidSize     decimal.Decimal
	AskPrice    decimal.Decimal
	AskSize     decimal.Decimal
	GeneratedAt time.Time
}

// HasBid reports whether the quote wants a resting bid.
func (q TargetQuote) HasBid() bool { return q.BidSize.IsPositive() }

// HasAsk reports whether the quote wants a resting ask.
func (q TargetQuote) HasAsk() bool { return q.AskSize.IsPositive() }

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the Order Manager's record of one order across its lifecycle,
// per spec §3. Size is signed: positive for a bid, negative for an ask.
type Order struct {
	InternalID       string // allocated locally, never changes
	VenueID          string // assigned by the venue on acknowledgement, empty until Live
	Contract         string
	Price            decimal.Decimal
	Size             decimal.Decimal
	StrategyTag      string // opaque, threaded end-to-end; see spec §9
	Status           OrderStatus
	CreatedAtLocal   time.Time
	CreatedAtVenue   time.Time
	LastUpdatedLocal time.Time
}

// Side derives the order's side from the sign of Size.
func (o Order) Side() Side {
	if o.Size.IsNegative() {
		return Sell
	}
	return Buy
}

// OrderSpec is a request to submit one new order, before an internal id has
// been allocated.
type OrderSpec struct {
	Contract    string
	Price       decimal.Decimal
	Size        decimal.Decimal // signed
	StrategyTag string
}

// ————————————————————————————————————————————————————————————————————————
// Venue wire formats — REST
// ————————————————————————————————————————————————————————————————————————

// RESTPriceLevel is the venue's wire representation of a single book level:
// strings, to preserve precision across JSON transport.
type RESTPriceLevel struct {
	Price string `json:"p"`
	Size  string `json:"s"`
}

// RESTOrderBookResponse is the response body of
// GET /futures/usdt/order_book?with_id=true.
type RESTOrderBookResponse struct {
	ID      int64            `json:"id"` // snapshot's last_update_id
	Current float64          `json:"current"`
	Update  float64          `json:"update"`
	Asks    []RESTPriceLevel `json:"asks"`
	Bids    []RESTPriceLevel `json:"bids"`
}

// RESTPositionEntry is one element of GET /futures/usdt/positions.
type RESTPositionEntry struct {
	Contract string `json:"contract"`
	Size     int64  `json:"size"` // signed, in contracts
}

// RESTOrderRequest is one element of the batch body for
// POST /futures/usdt/batch_orders.
type RESTOrderRequest struct {
	Contract string `json:"contract"`
	Size     int64  `json:"size"` // signed: positive buy, negative sell
	Price    string `json:"price"`
	TIF      string `json:"tif"`  // "gtc"
	Side     string `json:"side"` // "buy" or "sell", redundant with Size's sign per post_gateio.py's create_order_payload
	Type     string `json:"type"` // "limit"
	Text     string `json:"text"`
	Iceberg  int64  `json:"iceberg"`
	STPAct   string `json:"stp_act"`
}

// RESTOrderResult is one element of the batch response for
// POST /futures/usdt/batch_orders. Succeeded is parsed strictly as a JSON
// boolean — see DESIGN.md Open Question 3.
type RESTOrderResult struct {
	Succeeded bool   `json:"succeeded"`
	ID        int64  `json:"id"`
	Contract  string `json:"contract"`
	Label     string `json:"label"` // venue error code when !Succeeded
	Message   string `json:"message"`
}

// RESTCancelResult is one element of the batch cancel response.
type RESTCancelResult struct {
	Succeeded bool   `json:"succeeded"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	Message   string `json:"message"`
}

// ————————————————————————————————————————————————————————————————————————
// Venue wire formats — WebSocket
// ————————————————————————————————————————————————————————————————————————

// WSSubscribeRequest is the subscribe envelope sent on connect, per spec §6.
type WSSubscribeRequest struct {
	Time    int64         `json:"time"`
	Channel string        `json:"channel"`
	Event   string        `json:"event"` // "subscribe"
	Payload []string      `json:"payload"`
	Auth    *WSAuthHeader `json:"auth,omitempty"`
}

// WSAuthHeader authenticates a private WS channel subscription.
type WSAuthHeader struct {
	Method string `json:"method"` // "api_key"
	Key    string `json:"KEY"`
	Sign   string `json:"SIGN"`
}

// WSEnvelope is the outer shape every inbound WS frame shares; Channel and
// Event are peeked before the frame is fully decoded, and Result is
// re-unmarshalled into the channel-specific payload type.
type WSEnvelope struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Error   *WSError        `json:"error,omitempty"`
	Result  json.RawMessage `json:"result"`
}

// WSError is the venue's inline error shape on a failed subscribe ack.
type WSError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WSBookUpdateFrame is the payload of a futures.order_book_update event,
// carrying the same (U, u) contract as RESTOrderBookResponse's id field.
type WSBookUpdateFrame struct {
	Contract string           `json:"s"`
	FirstID  int64            `json:"U"`
	LastID   int64            `json:"u"`
	Bids     []RESTPriceLevel `json:"b"`
	Asks     []RESTPriceLevel `json:"a"`
}

// WSUserTradeFrame is one element of a futures.usertrades update.
type WSUserTradeFrame struct {
	ID       int64  `json:"id"`
	Contract string `json:"contract"`
	OrderID  string `json:"order_id"`
	Size     int64  `json:"size"` // signed
	Price    string `json:"price"`
	Time     int64  `json:"create_time"`
	Text     string `json:"text"`
}

// WSUserOrderFrame is one element of a futures.autoorders update.
type WSUserOrderFrame struct {
	ID        int64  `json:"id"`
	Contract  string `json:"contract"`
	Size      int64  `json:"size"`
	Left      int64  `json:"left"`
	Price     string `json:"price"`
	Status    string `json:"status"` // "open", "finished"
	FinishAs  string `json:"finish_as"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"create_time"`
}

// WSBalanceFrame is one element of a futures.balances update, pushed on every
// change to a user's futures account balance (fills, funding, transfers).
type WSBalanceFrame struct {
	Balance  string `json:"balance"`
	Change   string `json:"change"`
	Contract string `json:"contract,omitempty"` // empty for cross-margin account-level changes
	Text     string `json:"text"`
	Type     string `json:"type"` // "dnw", "pnl", "fee", "refr", "fund", ...
	Time     int64  `json:"time"`
	TimeMs   int64  `json:"time_ms"`
	User     string `json:"user"`
}
