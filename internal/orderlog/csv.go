// Package orderlog implements the minimal CSV order logger named as an
// out-of-scope external collaborator in spec §1. Its internals aren't
// otherwise specified; this satisfies the named interface.
//
// Grounded on _examples/original_source/order_logger.py's OrderLogger: same
// fieldnames, same append-only file with a header written once.
package orderlog

import (
	"encoding/csv"
	"os"
	"sync"
	"time"

	"marketmaker/pkg/types"
)

var header = []string{"timestamp", "order_id", "contract", "price", "size", "side", "status", "strategy"}

// Logger appends one row per order lifecycle transition to a CSV file.
type Logger struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer func() error
}

// Open creates (or appends to) the CSV file at path, writing the header row
// if the file is new.
func Open(path string) (*Logger, error) {
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	l := &Logger{w: w, closer: f.Close}
	if needsHeader {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.Flush()
	}
	return l, nil
}

// LogTransition appends one row recording an order's lifecycle status. A nil
// Logger (order logging disabled in config) is a no-op, so callers don't need
// to guard every call site.
func (l *Logger) LogTransition(orderID, contract string, status types.OrderStatus, strategyTag string) {
	if l == nil {
		return
	}
	l.logRow(orderID, contract, "", "", "", status, strategyTag)
}

// LogOrder appends a full row for an order, per order_logger.py's
// log_order. A nil Logger is a no-op.
func (l *Logger) LogOrder(o *types.Order) {
	if l == nil {
		return
	}
	l.logRow(orderIDOf(o), o.Contract, o.Price.String(), o.Size.String(), string(o.Side()), o.Status, o.StrategyTag)
}

func orderIDOf(o *types.Order) string {
	if o.VenueID != "" {
		return o.VenueID
	}
	return o.InternalID
}

func (l *Logger) logRow(orderID, contract, price, size, side string, status types.OrderStatus, strategyTag string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		time.Now().UTC().Format(time.RFC3339Nano),
		orderID,
		contract,
		price,
		size,
		side,
		string(status),
		strategyTag,
	}
	_ = l.w.Write(row)
	l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.closer()
}
