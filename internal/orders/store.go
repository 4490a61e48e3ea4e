package orders

import (
	"context"

	"github.com/ariefcatur/go-order-core/internal/inventory"
)

// Store is the persistence capability the core depends on. WithTx runs fn in
// one unit of work: commit when fn returns nil, rollback on error or panic.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Tx is the transaction-scoped handle passed through the call chain.
type Tx interface {
	inventory.Stock

	// GetProducts returns the products found; missing ids are simply absent.
	GetProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// InsertOrder persists o and its items, filling generated ids and timestamps.
	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder reads the order with its items and holds it until the tx ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	// SaveOrderState writes status, payment_status and updated_at of o.
	SaveOrderState(ctx context.Context, o Order) error
}

type ListFilter struct {
	Page          int
	PageSize      int
	Status        Status
	PaymentStatus PaymentStatus
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f ListFilter) Offset() int { return (f.Page - 1) * f.PageSize }

type Page struct {
	Items      []Order `json:"items"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}
