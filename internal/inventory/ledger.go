package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ariefcatur/go-order-core/internal/apperr"
)

// Stock is the transaction-scoped view of product quantities. Implementations
// must run inside the caller's unit of work.
type Stock interface {
	// Available returns apperr.ErrProductNotFound for unknown products.
	Available(ctx context.Context, productID string) (int, error)
	// DecrementIfAvailable subtracts qty only when quantity >= qty, in one
	// indivisible step. ok=false means nothing changed (or no such product).
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (ok bool, err error)
	// Increment returns ok=false when the product does not exist.
	Increment(ctx context.Context, productID string, qty int) (ok bool, err error)
}

// MaxQuantity is the largest quantity a single product row or order line can
// hold (INTEGER column).
const MaxQuantity = math.MaxInt32

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Shortage struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type Ledger struct{}

func (l Ledger) CheckAvailability(ctx context.Context, s Stock, productID string, qty int) (bool, error) {
	n, err := s.Available(ctx, productID)
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}
	return n >= qty, nil
}

func (l Ledger) Deduct(ctx context.Context, s Stock, productID string, qty int) error {
	if qty <= 0 || qty > MaxQuantity {
		return apperr.Validation("invalid qty for product %s", productID)
	}
	ok, err := s.DecrementIfAvailable(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("deduct %s: %w", productID, err)
	}
	if ok {
		return nil
	}
	// nothing changed: tell missing product apart from short stock
	n, err := s.Available(ctx, productID)
	if err != nil {
		return err
	}
	return apperr.New(apperr.CodeInsufficientStock, "insufficient stock for product %s", productID).
		WithDetails([]Shortage{{ProductID: productID, Required: qty, Available: n}})
}

func (l Ledger) Restore(ctx context.Context, s Stock, productID string, qty int) error {
	if qty <= 0 || qty > MaxQuantity {
		return apperr.Validation("invalid qty for product %s", productID)
	}
	ok, err := s.Increment(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("restore %s: %w", productID, err)
	}
	if !ok {
		return apperr.ProductNotFound(productID)
	}
	return nil
}

// ReserveAll deducts stock for every line or reports why it could not. A
// non-nil error means the caller must roll back: some lines may already have
// been decremented inside the unit of work.
func (l Ledger) ReserveAll(ctx context.Context, s Stock, lines []Line) error {
	agg, err := Aggregate(lines)
	if err != nil {
		return err
	}
	var shortages []Shortage
	for _, it := range agg {
		ok, err := s.DecrementIfAvailable(ctx, it.ProductID, it.Qty)
		if err != nil {
			return fmt.Errorf("reserve %s: %w", it.ProductID, err)
		}
		if ok {
			continue
		}
		n, err := s.Available(ctx, it.ProductID)
		if err != nil {
			return err
		}
		shortages = append(shortages, Shortage{ProductID: it.ProductID, Required: it.Qty, Available: n})
	}
	if len(shortages) > 0 {
		return apperr.New(apperr.CodeInsufficientStock, "insufficient stock for %d product(s)", len(shortages)).
			WithDetails(shortages)
	}
	return nil
}

func (l Ledger) ReleaseAll(ctx context.Context, s Stock, lines []Line) error {
	agg, err := Aggregate(lines)
	if err != nil {
		return err
	}
	for _, it := range agg {
		if err := l.Restore(ctx, s, it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Aggregate merges lines of the same product and orders them by product id,
// so every transaction touches product rows in the same order. A line with a
// non-positive quantity, or a per-product sum above MaxQuantity, is rejected.
func Aggregate(lines []Line) ([]Line, error) {
	byID := make(map[string]int, len(lines))
	for _, it := range lines {
		if it.Qty <= 0 || it.Qty > MaxQuantity {
			return nil, apperr.Validation("invalid qty %d for product %s", it.Qty, it.ProductID)
		}
		// cek sebelum dijumlah supaya tidak overflow
		if byID[it.ProductID] > MaxQuantity-it.Qty {
			return nil, apperr.Validation("total qty for product %s exceeds %d", it.ProductID, MaxQuantity)
		}
		byID[it.ProductID] += it.Qty
	}
	out := make([]Line, 0, len(byID))
	for id, qty := range byID {
		out = append(out, Line{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
