// Package memorystore is an in-process storage adapter. It backs tests and
// single-node deployments that do not need durability; the per-size mutex
// map provides the same exclusive lock scope a database row lock would.
package memorystore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orderledger/internal/domain"
	"orderledger/internal/storage"
)

// Store holds all in-memory state. The typed views returned by Stock,
// Orders, and Transitions share it.
type Store struct {
	mu          sync.RWMutex
	stock       map[string]domain.StockRecord
	movements   []domain.StockMovement
	orders      map[string]domain.Order
	transitions map[string]domain.PendingTransition

	sizeLocks sync.Map // sizeID -> *sync.Mutex
}

func New() *Store {
	return &Store{
		stock:       make(map[string]domain.StockRecord),
		orders:      make(map[string]domain.Order),
		transitions: make(map[string]domain.PendingTransition),
	}
}

func (s *Store) Stock() storage.StockStore            { return (*stockStore)(s) }
func (s *Store) Orders() storage.OrderStore           { return (*orderStore)(s) }
func (s *Store) Transitions() storage.TransitionStore { return (*transitionStore)(s) }

func (s *Store) lockFor(sizeID string) *sync.Mutex {
	l, _ := s.sizeLocks.LoadOrStore(sizeID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Movements returns the full movement log in append order. Test helper.
func (s *Store) Movements() []domain.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockMovement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Transition returns a transition by id. Test helper.
func (s *Store) Transition(id string) (domain.PendingTransition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transitions[id]
	return t, ok
}

type stockStore Store

var _ storage.StockStore = (*stockStore)(nil)

func (s *stockStore) Get(_ context.Context, sizeID string) (*domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stock[sizeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *stockStore) Create(_ context.Context, rec *domain.StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stock[rec.SizeID]; ok {
		return &domain.InvariantError{Msg: "stock record already exists for size " + rec.SizeID}
	}
	rec.UpdatedAt = time.Now()
	s.stock[rec.SizeID] = *rec
	return nil
}

func (s *stockStore) Update(ctx context.Context, sizeID string, fn storage.StockMutator) error {
	lock := (*Store)(s).lockFor(sizeID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ctx, sizeID)
	if err != nil {
		return err
	}

	movement, err := fn(rec)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[sizeID] = *rec
	if movement != nil {
		s.movements = append(s.movements, *movement)
	}
	return nil
}

func (s *stockStore) All(_ context.Context) ([]domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockRecord, 0, len(s.stock))
	for _, rec := range s.stock {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SizeID < out[j].SizeID })
	return out, nil
}

func (s *stockStore) MovementsByReferencePrefix(_ context.Context, prefix string) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockMovement
	for _, m := range s.movements {
		if strings.HasPrefix(m.ReferenceNumber, prefix) {
			out = append(out, m)
		}
	}
	return out, nil
}

type orderStore Store

var _ storage.OrderStore = (*orderStore)(nil)

func (s *orderStore) Get(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return &o, nil
}

func (s *orderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	s.orders[order.ID] = *order
	return nil
}

func (s *orderStore) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return nil
}

func (s *orderStore) UpdatePaymentStatus(_ context.Context, orderID string, status domain.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return nil
}

type transitionStore Store

var _ storage.TransitionStore = (*transitionStore)(nil)

func (s *transitionStore) Create(_ context.Context, t *domain.PendingTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.transitions {
		if !existing.IsExecuted && existing.OrderID == t.OrderID && existing.TransitionType == t.TransitionType {
			return storage.ErrDuplicateTransition
		}
	}
	t.CreatedAt = time.Now()
	s.transitions[t.ID] = *t
	return nil
}

func (s *transitionStore) ExistsPending(_ context.Context, orderID string, tt domain.TransitionType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transitions {
		if !t.IsExecuted && t.OrderID == orderID && t.TransitionType == tt {
			return true, nil
		}
	}
	return false, nil
}

func (s *transitionStore) Due(_ context.Context, now time.Time) ([]domain.PendingTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PendingTransition
	for _, t := range s.transitions {
		if !t.IsExecuted && !t.ScheduledAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *transitionStore) PendingByOrderAndType(_ context.Context, orderID string, tt domain.TransitionType) ([]domain.PendingTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PendingTransition
	for _, t := range s.transitions {
		if !t.IsExecuted && t.OrderID == orderID && t.TransitionType == tt {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *transitionStore) MarkExecuted(_ context.Context, id string, executedAt time.Time, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transitions[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsExecuted = true
	t.ExecutedAt = &executedAt
	t.ExecutionResult = result
	s.transitions[id] = t
	return nil
}
