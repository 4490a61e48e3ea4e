package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// WithTx commits when fn returns nil. Any other exit, panics included, rolls
// back through the deferred Rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, s.DB, id, false)
}

func (s *Store) ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, int, error) {
	where, args := listWhere(f)

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []orders.Order{}, 0, nil
	}

	args = append(args, f.PageSize, f.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (orders.Order, error) { return scanOrder(r) })
	if err != nil {
		return nil, 0, err
	}
	if err := attachItems(ctx, s.DB, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, apperr.ProductNotFound(id)
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (orders.Product, error) { return scanProduct(r) })
}

type pgTx struct{ q querier }

func (t *pgTx) Available(ctx context.Context, id string) (int, error) {
	var qty int
	err := t.q.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1`, id).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.ProductNotFound(id)
	}
	return qty, err
}

// DecrementIfAvailable cek + kurangi stok dalam satu statement; 0 row = stok kurang.
func (t *pgTx) DecrementIfAvailable(ctx context.Context, id string, qty int) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) Increment(ctx context.Context, id string, qty int) (bool, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) GetProducts(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	rows, err := t.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	ps, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (orders.Product, error) { return scanProduct(r) })
	if err != nil {
		return nil, err
	}
	out := make(map[string]orders.Product, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, customer_id, total_price, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.CustomerID, o.TotalPrice, string(o.Status), string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := t.q.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			o.ID, it.ProductID, it.Quantity, it.PriceAtPurchase).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, t.q, id, true)
}

func (t *pgTx) SaveOrderState(ctx context.Context, o orders.Order) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = $4
		WHERE id = $1`, o.ID, string(o.Status), string(o.PaymentStatus), o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.OrderNotFound(o.ID)
	}
	return nil
}

const (
	orderColumns   = `id, customer_id, total_price, status, payment_status, created_at, updated_at`
	productColumns = `id, name, description, price, quantity, created_at, updated_at`
)

func getOrder(ctx context.Context, q querier, id string, lock bool) (orders.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, apperr.OrderNotFound(id)
	}
	if err != nil {
		return orders.Order{}, err
	}
	list := []orders.Order{o}
	if err := attachItems(ctx, q, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

// attachItems loads the items of all given orders with one query.
func attachItems(ctx context.Context, q querier, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		idx[o.ID] = i
		list[i].Items = []orders.OrderItem{}
	}
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return err
		}
		i := idx[it.OrderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var status, payment string
	err := row.Scan(&o.ID, &o.CustomerID, &o.TotalPrice, &status, &payment, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	o.PaymentStatus = orders.PaymentStatus(payment)
	return o, err
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// listWhere builds the WHERE clause and positional args of a filter.
func listWhere(f orders.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.PaymentStatus != "" {
		args = append(args, string(f.PaymentStatus))
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var _ orders.Store = (*Store)(nil)
