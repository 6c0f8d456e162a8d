// Package venue implements the REST and WebSocket clients of spec §4.1/§6:
// a generic perpetual-futures venue API (Gate.io-shaped endpoints and auth),
// reached from the engine through FetchOrderBook/FetchPositions/
// SubmitOrders/CancelOrders and the market/user WebSocket feeds.
//
// Grounded on _examples/0xtitan6-polymarket-mm/internal/exchange/client.go's
// structure (resty client, rate-limited, retried, dry-run-aware) with the
// endpoint paths and request/response shapes replaced per
// _examples/original_source/endpoints_gateio.py, get_gateio.py, and
// post_gateio.py.
package venue

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"marketmaker/internal/errs"
	"marketmaker/pkg/types"
)

const maxBatchSize = 20 // spec §4.1: batch order/cancel size is a hard venue contract

// Config is the subset of internal/config.Config the venue client needs.
type Config struct {
	RESTBaseURL string
	WSURL       string
	Credentials Credentials
	DryRun      bool
}

// Client is the REST client for the configured venue.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	dryRun bool
	log    *slog.Logger
}

// NewClient creates a rate-limited, retried REST client.
func NewClient(cfg Config, log *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Order submission is never retried: reissuing a batch_orders
			// POST could place the same quotes twice.
			if r != nil && r.Request != nil && r.Request.Method == http.MethodPost && strings.HasSuffix(r.Request.URL, "/batch_orders") {
				return false
			}
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   http,
		auth:   NewAuth(cfg.Credentials),
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		log:    log.With("component", "venue_client"),
	}
}

// FetchOrderBook implements book.snapshotFetcher: GET
// /futures/usdt/order_book?contract=<C>&limit=<D>&with_id=true.
func (c *Client) FetchOrderBook(ctx context.Context, contract string, depth int) (int64, []types.PriceLevel, []types.PriceLevel, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return 0, nil, nil, err
	}

	var result types.RESTOrderBookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("contract", contract).
		SetQueryParam("limit", strconv.Itoa(depth)).
		SetQueryParam("with_id", "true").
		SetResult(&result).
		Get("/api/v4/futures/usdt/order_book")
	if err != nil {
		return 0, nil, nil, errs.Wrap(errs.KindTransportError, err, "get order book").WithContract(contract)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, nil, nil, errs.New(errs.KindTransportError, "get order book: status "+resp.Status()).WithContract(contract)
	}

	bids, err := decodeLevels(result.Bids)
	if err != nil {
		return 0, nil, nil, errs.Wrap(errs.KindProtocolError, err, "decode bids").WithContract(contract)
	}
	asks, err := decodeLevels(result.Asks)
	if err != nil {
		return 0, nil, nil, errs.Wrap(errs.KindProtocolError, err, "decode asks").WithContract(contract)
	}
	return result.ID, bids, asks, nil
}

// FetchPositions implements inventory.positionFetcher: GET
// /futures/usdt/positions.
func (c *Client) FetchPositions(ctx context.Context) (map[string]decimal.Decimal, error) {
	headers := c.auth.RESTHeaders(http.MethodGet, "/api/v4/futures/usdt/positions", "", "")

	var entries []types.RESTPositionEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&entries).
		Get("/api/v4/futures/usdt/positions")
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, err, "get positions")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errs.New(errs.KindTransportError, "get positions: status "+resp.Status())
	}

	out := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		out[e.Contract] = decimal.NewFromInt(e.Size)
	}
	return out, nil
}

// SubmitOrders places up to maxBatchSize orders in a single batch request,
// per spec §4.1/§6's POST /futures/usdt/batch_orders.
func (c *Client) SubmitOrders(ctx context.Context, specs []types.OrderSpec) ([]types.RESTOrderResult, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	if len(specs) > maxBatchSize {
		return nil, errs.New(errs.KindPolicyViolation, "batch exceeds venue order limit")
	}
	if c.dryRun {
		return dryRunOrderResults(specs), nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	reqs := make([]types.RESTOrderRequest, len(specs))
	for i, s := range specs {
		side := types.Buy
		if s.Size.Sign() < 0 {
			side = types.Sell
		}
		reqs[i] = types.RESTOrderRequest{
			Contract: s.Contract,
			Size:     s.Size.IntPart(),
			Price:    s.Price.String(),
			TIF:      "gtc",
			Side:     string(side),
			Type:     "limit",
			Text:     s.StrategyTag,
			STPAct:   "-",
		}
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, errs.Wrap(errs.KindProtocolError, err, "marshal order batch")
	}
	headers := c.auth.RESTHeaders(http.MethodPost, "/api/v4/futures/usdt/batch_orders", "", string(body))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		Post("/api/v4/futures/usdt/batch_orders")
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, err, "submit orders")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errs.New(errs.KindVenueRejectOrder, "submit orders: status "+resp.Status())
	}
	var results []types.RESTOrderResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, errs.Wrap(errs.KindProtocolError, err, "decode order results")
	}
	return results, nil
}

// CancelOrders cancels up to maxBatchSize orders in a single batch request,
// per POST /futures/usdt/batch_cancel_orders.
func (c *Client) CancelOrders(ctx context.Context, venueIDs []string) ([]types.RESTCancelResult, error) {
	if len(venueIDs) == 0 {
		return nil, nil
	}
	if c.dryRun {
		return dryRunCancelResults(venueIDs), nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	// spec §6: the cancel-batch body is a bare JSON array of order-id
	// strings, not an object wrapping the array.
	body, err := json.Marshal(venueIDs)
	if err != nil {
		return nil, errs.Wrap(errs.KindProtocolError, err, "marshal cancel batch")
	}
	headers := c.auth.RESTHeaders(http.MethodPost, "/api/v4/futures/usdt/batch_cancel_orders", "", string(body))

	var results []types.RESTCancelResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&results).
		Post("/api/v4/futures/usdt/batch_cancel_orders")
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, err, "cancel orders")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errs.New(errs.KindVenueRejectCancel, "cancel orders: status "+resp.Status())
	}
	return results, nil
}

func decodeLevels(raw []types.RESTPriceLevel) ([]types.PriceLevel, error) {
	out := make([]types.PriceLevel, len(raw))
	for i, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, err
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, err
		}
		out[i] = types.PriceLevel{Price: price, Size: size}
	}
	return out, nil
}

func dryRunOrderResults(specs []types.OrderSpec) []types.RESTOrderResult {
	out := make([]types.RESTOrderResult, len(specs))
	for i, s := range specs {
		out[i] = types.RESTOrderResult{Succeeded: true, ID: int64(i + 1), Contract: s.Contract}
	}
	return out
}

func dryRunCancelResults(venueIDs []string) []types.RESTCancelResult {
	out := make([]types.RESTCancelResult, len(venueIDs))
	for i, id := range venueIDs {
		out[i] = types.RESTCancelResult{Succeeded: true, ID: id}
	}
	return out
}
