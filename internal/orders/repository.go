package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/internal/models/order"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repository is the order store.
type Repository interface {
	// ListOrders returns a page of orders. A zero limit lists every order.
	ListOrders(ctx context.Context, sort order.Sort, limit, offset int) ([]*order.Order, error)
	CountOrders(ctx context.Context) (int, error)
	// ListOrdersByDateRange returns orders placed in [start, end).
	ListOrdersByDateRange(ctx context.Context, start, end time.Time) ([]*order.Order, error)
	CreateOrder(ctx context.Context, o *order.Order) (order.ID, error)
	DeleteOrder(ctx context.Context, id order.ID) error
	// SumTotal returns the sum of totals of orders placed in [start, end).
	SumTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

const selectOrders = `SELECT o.id, o.client_id, o.date_order, o.total,
	c.last_name || ' ' || c.first_name
	FROM orders o JOIN clients c ON c.id = o.client_id`

func orderBy(sort order.Sort) string {
	if sort == order.ByID {
		return " ORDER BY o.id"
	}
	return " ORDER BY o.date_order DESC, o.id"
}

func (r *Repo) ListOrders(ctx context.Context, sort order.Sort, limit, offset int) ([]*order.Order, error) {
	query := selectOrders + orderBy(sort) + " LIMIT NULLIF($1::bigint, 0) OFFSET $2"

	return r.list(ctx, query, limit, offset)
}

func (r *Repo) ListOrdersByDateRange(ctx context.Context, start, end time.Time) ([]*order.Order, error) {
	const query = selectOrders + " WHERE o.date_order >= $1 AND o.date_order < $2 ORDER BY o.date_order, o.id"

	return r.list(ctx, query, start, end)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("list orders: close rows: %s", err)
		}
	}()

	orders := make([]*order.Order, 0)

	for rows.Next() {
		o := new(order.Order)
		err = rows.Scan(
			&o.ID,
			&o.ClientID,
			&o.DateOrder,
			&o.Total,
			&o.ClientName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		orders = append(orders, o)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return orders, nil
}

func (r *Repo) CountOrders(ctx context.Context) (int, error) {
	const query = "SELECT COUNT(*) FROM orders"

	var count int

	if err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}

	return count, nil
}

func (r *Repo) CreateOrder(ctx context.Context, o *order.Order) (order.ID, error) {
	const query = "INSERT INTO orders (client_id, date_order, total) VALUES ($1, $2, $3) RETURNING id"

	var id order.ID

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, o.ClientID, o.DateOrder, o.Total).
		Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				return 0, fmt.Errorf("client %d: %w", o.ClientID, errs.ErrNotFound)
			case pgerrcode.CheckViolation, pgerrcode.NumericValueOutOfRange:
				return 0, fmt.Errorf("%w: total %s", errs.ErrInvalidRequest, o.Total)
			}
		}
		return 0, fmt.Errorf("create order: %w", err)
	}

	return id, nil
}

func (r *Repo) DeleteOrder(ctx context.Context, id order.ID) error {
	const query = "DELETE FROM orders WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
	}

	return nil
}

func (r *Repo) SumTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	const query = "SELECT COALESCE(SUM(total), 0) FROM orders WHERE date_order >= $1 AND date_order < $2"

	var total decimal.Decimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, start, end).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum totals: %w", err)
	}

	return total, nil
}
