package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/orders"
)

// Store is an in-process orders.Store. Transactions are serialised and work
// on a copy of the data that replaces the live state only on commit.
type Store struct {
	mu     sync.Mutex
	data   *state
	nextID int64
}

type state struct {
	products map[string]orders.Product
	orders   map[string]orders.Order
}

func New() *Store {
	return &Store{data: &state{
		products: make(map[string]orders.Product),
		orders:   make(map[string]orders.Order),
	}}
}

// PutProduct inserts or replaces a product. It stands in for the catalog.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.data.products[p.ID] = p
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	t := &tx{st: work, nextID: &s.nextID}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tx panic: %v", p)
		}
	}()
	if err := fn(t); err != nil {
		return err // rollback: work is dropped
	}
	s.data = work
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data.orders[id]
	if !ok {
		return orders.Order{}, apperr.OrderNotFound(id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, f orders.ListFilter) ([]orders.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []orders.Order
	for _, o := range s.data.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	out := make([]orders.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, cloneOrder(o))
	}
	return out, total, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[id]
	if !ok {
		return orders.Product{}, apperr.ProductNotFound(id)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Product, 0, len(s.data.products))
	for _, p := range s.data.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type tx struct {
	st     *state
	nextID *int64
}

func (t *tx) Available(_ context.Context, id string) (int, error) {
	p, ok := t.st.products[id]
	if !ok {
		return 0, apperr.ProductNotFound(id)
	}
	return p.Quantity, nil
}

func (t *tx) DecrementIfAvailable(_ context.Context, id string, qty int) (bool, error) {
	p, ok := t.st.products[id]
	if !ok || p.Quantity < qty {
		return false, nil
	}
	p.Quantity -= qty
	p.UpdatedAt = time.Now().UTC()
	t.st.products[id] = p
	return true, nil
}

func (t *tx) Increment(_ context.Context, id string, qty int) (bool, error) {
	p, ok := t.st.products[id]
	if !ok {
		return false, nil
	}
	p.Quantity += qty
	p.UpdatedAt = time.Now().UTC()
	t.st.products[id] = p
	return true, nil
}

func (t *tx) GetProducts(_ context.Context, ids []string) (map[string]orders.Product, error) {
	out := make(map[string]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, exists := t.st.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	for i := range o.Items {
		*t.nextID++
		o.Items[i].ID = *t.nextID
		o.Items[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, apperr.OrderNotFound(id)
	}
	return cloneOrder(o), nil
}

func (t *tx) SaveOrderState(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return apperr.OrderNotFound(o.ID)
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.UpdatedAt = o.UpdatedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]orders.Product, len(s.products)),
		orders:   make(map[string]orders.Order, len(s.orders)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v // items are never mutated after insert
	}
	return c
}

func cloneOrder(o orders.Order) orders.Order {
	c := o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	return c
}

var _ orders.Store = (*Store)(nil)
