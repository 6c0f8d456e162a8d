// Package order implements the Order Manager of spec §4.5: the engine's
// single source of truth for order lifecycle, held in four disjoint
// collections: pending, cancelled and filled keyed by internal id, live keyed
// by venue id.
//
// Grounded on _examples/original_source/oms_gateio.py's OrderManagerGateio
// (same four buckets, same create/update-with-exchange-details/
// cancel/get-live-orders shape), restructured per spec §9: the Python
// source's loosely-typed "text" dict key becomes the opaque
// types.Order.StrategyTag field threaded through every state instead of a
// dict lookup.
package order

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"marketmaker/internal/errs"
	"marketmaker/pkg/types"
)

// Manager owns every order this engine has created, across its lifecycle.
type Manager struct {
	mu        sync.RWMutex
	pending   map[string]*types.Order // keyed by InternalID
	live      map[string]*types.Order // keyed by VenueID
	cancelled map[string]*types.Order // keyed by InternalID
	filled    map[string]*types.Order // keyed by InternalID

	internalByVenue map[string]string // VenueID -> InternalID, for live orders
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		pending:         make(map[string]*types.Order),
		live:            make(map[string]*types.Order),
		cancelled:       make(map[string]*types.Order),
		filled:          make(map[string]*types.Order),
		internalByVenue: make(map[string]string),
	}
}

// Create allocates an internal id for spec and records it Pending. Grounded
// on oms_gateio.py's create_order, which assigns a uuid4 internal_id before
// the order is submitted to the venue.
func (m *Manager) Create(spec types.OrderSpec) (*types.Order, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariantBreach, err, "allocate internal order id")
	}

	o := &types.Order{
		InternalID:     id.String(),
		Contract:       spec.Contract,
		Price:          spec.Price,
		Size:           spec.Size,
		StrategyTag:    spec.StrategyTag,
		Status:         types.StatusPending,
		CreatedAtLocal: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[o.InternalID] = o
	return o, nil
}

// Ack transitions a Pending order to Live once the venue has acknowledged
// it, recording the venue-assigned id and creation time.
func (m *Manager) Ack(internalID, venueID string, venueCreatedAt time.Time) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.pending[internalID]
	if !ok {
		return nil, errs.New(errs.KindInvariantBreach, "ack of unknown pending order").WithContract(internalID)
	}
	delete(m.pending, internalID)

	o.VenueID = venueID
	o.CreatedAtVenue = venueCreatedAt
	o.Status = types.StatusLive
	o.LastUpdatedLocal = time.Now()

	m.live[venueID] = o
	m.internalByVenue[venueID] = internalID
	return o, nil
}

// Reject transitions a Pending order to Rejected, per spec §7's
// VenueRejectOrder handling: drop from the active set and return the record
// to the caller. The Manager does not retain rejected orders.
func (m *Manager) Reject(internalID string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.pending[internalID]
	if !ok {
		return nil, errs.New(errs.KindInvariantBreach, "reject of unknown pending order").WithContract(internalID)
	}
	delete(m.pending, internalID)
	o.Status = types.StatusRejected
	o.LastUpdatedLocal = time.Now()
	return o, nil
}

// Cancel transitions a Live order to Cancelled.
func (m *Manager) Cancel(venueID string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.live[venueID]
	if !ok {
		return nil, errs.New(errs.KindInvariantBreach, "cancel of unknown live order").WithContract(venueID)
	}
	delete(m.live, venueID)
	delete(m.internalByVenue, venueID)

	o.Status = types.StatusCancelled
	o.LastUpdatedLocal = time.Now()
	m.cancelled[o.InternalID] = o
	return o, nil
}

// MarkFilled transitions a Live order to Filled.
func (m *Manager) MarkFilled(venueID string) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.live[venueID]
	if !ok {
		return nil, errs.New(errs.KindInvariantBreach, "fill of unknown live order").WithContract(venueID)
	}
	delete(m.live, venueID)
	delete(m.internalByVenue, venueID)

	o.Status = types.StatusFilled
	o.LastUpdatedLocal = time.Now()
	m.filled[o.InternalID] = o
	return o, nil
}

// Get returns the live order for a venue id, if any.
func (m *Manager) Get(venueID string) (*types.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.live[venueID]
	return o, ok
}

// LiveOrders returns every live order, optionally filtered by contract
// and/or strategy tag. Grounded on oms_gateio.py's
// get_live_orders(text=None, contract=None).
func (m *Manager) LiveOrders(contract, strategyTag string) []*types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Order, 0, len(m.live))
	for _, o := range m.live {
		if contract != "" && o.Contract != contract {
			continue
		}
		if strategyTag != "" && o.StrategyTag != strategyTag {
			continue
		}
		out = append(out, o)
	}
	return out
}
