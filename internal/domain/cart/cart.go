package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/kirana/internal/domain/product"
)

// Line is one cart entry: a product snapshot and a quantity of at least 1.
type Line struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns price * quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an immutable copy of the cart lines in display order.
type Snapshot struct {
	Lines []Line
}

// Total sums the line subtotals.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Observer is notified with the full cart snapshot after every mutation.
type Observer interface {
	CartChanged(ctx context.Context, snap Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, snap Snapshot)

// CartChanged calls f(ctx, snap).
func (f ObserverFunc) CartChanged(ctx context.Context, snap Snapshot) {
	f(ctx, snap)
}

// Store is the cart state machine. It owns the mapping from product id to
// line; all other components read derived values or call its operations.
//
// Each mutation is applied atomically under the store mutex, then observers
// are notified synchronously with the resulting snapshot, in mutation order.
// The mutex is not held during notification, so observers may read the
// store. Observers must not mutate it.
type Store struct {
	mu        sync.Mutex
	items     map[string]Line
	order     []string
	observers []Observer

	// Notifications are served in ticket order.
	turnMu sync.Mutex
	turn   *sync.Cond
	issued uint64
	served uint64
}

// NewStore creates a store holding the given lines. Lines with a
// non-positive quantity are dropped and duplicate ids are merged.
func NewStore(lines []Line, observers ...Observer) *Store {
	s := &Store{
		items:     make(map[string]Line, len(lines)),
		observers: observers,
	}
	s.turn = sync.NewCond(&s.turnMu)
	for _, l := range lines {
		if l.Quantity < 1 || l.Product.ID == "" {
			continue
		}
		if existing, ok := s.items[l.Product.ID]; ok {
			existing.Quantity += l.Quantity
			s.items[l.Product.ID] = existing
			continue
		}
		s.items[l.Product.ID] = l
		s.order = append(s.order, l.Product.ID)
	}
	return s
}

// Observe registers an observer for subsequent mutations.
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddToCart increments the line for p, inserting it at quantity 1 when absent.
func (s *Store) AddToCart(ctx context.Context, p product.Product) {
	s.mutate(ctx, func() bool {
		s.increment(p)
		return true
	})
}

// IncreaseQuantity behaves exactly like AddToCart.
func (s *Store) IncreaseQuantity(ctx context.Context, p product.Product) {
	s.AddToCart(ctx, p)
}

// RemoveFromCart deletes the line for id. Unknown ids are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, id string) {
	s.mutate(ctx, func() bool {
		s.remove(id)
		return true
	})
}

// DecreaseQuantity decrements the line for id, removing it when the quantity
// reaches zero. Unknown ids are a no-op.
func (s *Store) DecreaseQuantity(ctx context.Context, id string) {
	s.mutate(ctx, func() bool {
		l, ok := s.items[id]
		if !ok {
			return true
		}
		l.Quantity = max(0, l.Quantity-1)
		if l.Quantity == 0 {
			s.remove(id)
			return true
		}
		s.items[id] = l
		return true
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) {
	s.mutate(ctx, func() bool {
		s.clearLocked()
		return true
	})
}

// Checkout calls fn with the current cart and empties the cart when fn
// succeeds, all under one hold of the store mutex: no mutation can land
// between what fn sees and the clear. A failed fn leaves the cart as is and
// notifies no observer.
func (s *Store) Checkout(ctx context.Context, fn func(Snapshot) error) error {
	var err error
	s.mutate(ctx, func() bool {
		if err = fn(s.snapshotLocked()); err != nil {
			return false
		}
		s.clearLocked()
		return true
	})
	return err
}

// Reconcile replaces every line's product snapshot with the matching product
// from a freshly fetched catalog and drops lines whose product is no longer
// listed. Quantities are left untouched. It returns the ids of dropped lines.
func (s *Store) Reconcile(ctx context.Context, catalog []product.Product) (dropped []string) {
	fresh := make(map[string]product.Product, len(catalog))
	for _, p := range catalog {
		fresh[p.ID] = p
	}
	s.mutate(ctx, func() bool {
		for _, id := range append([]string(nil), s.order...) {
			p, ok := fresh[id]
			if !ok || !p.Available() {
				s.remove(id)
				dropped = append(dropped, id)
				continue
			}
			l := s.items[id]
			l.Product = p
			s.items[id] = l
		}
		return true
	})
	return dropped
}

// LineFor returns the line for id, if present.
func (s *Store) LineFor(id string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.items[id]
	return l, ok
}

// LineCount returns the number of distinct product lines.
func (s *Store) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Units returns the total number of units across all lines.
func (s *Store) Units() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.items {
		n += l.Quantity
	}
	return n
}

// TotalPrice recomputes the sum of price * quantity over all lines.
func (s *Store) TotalPrice() decimal.Decimal {
	return s.Snapshot().Total()
}

// Lines returns the lines in insertion order.
func (s *Store) Lines() []Line {
	return s.Snapshot().Lines
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	lines := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		lines = append(lines, s.items[id])
	}
	return Snapshot{Lines: lines}
}

// mutate applies fn under the store mutex. When fn reports a change, the
// resulting snapshot is delivered to the observers after the mutex is
// released, in the order the mutations were applied. Observers get a
// context without the caller's cancellation.
func (s *Store) mutate(ctx context.Context, fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	observers := append([]Observer(nil), s.observers...)
	ticket := s.issued
	s.issued++
	s.mu.Unlock()

	s.turnMu.Lock()
	for s.served != ticket {
		s.turn.Wait()
	}
	s.turnMu.Unlock()
	defer func() {
		s.turnMu.Lock()
		s.served++
		s.turn.Broadcast()
		s.turnMu.Unlock()
	}()

	ctx = context.WithoutCancel(ctx)
	for _, o := range observers {
		o.CartChanged(ctx, snap)
	}
}

func (s *Store) clearLocked() {
	clear(s.items)
	s.order = s.order[:0]
}

func (s *Store) increment(p product.Product) {
	if l, ok := s.items[p.ID]; ok {
		l.Quantity++
		s.items[p.ID] = l
		return
	}
	s.items[p.ID] = Line{Product: p, Quantity: 1}
	s.order = append(s.order, p.ID)
}

func (s *Store) remove(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
