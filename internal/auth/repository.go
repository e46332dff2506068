package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the client directory.
type Repository interface {
	GetClientByID(ctx context.Context, id client.ID) (*client.Client, error)
	GetClientByUsername(ctx context.Context, username string) (*client.Client, error)
	IsMemberOfGroup(ctx context.Context, id client.ID, group string) (bool, error)
	// ListMembersOfGroup returns group members sorted by last and first name.
	ListMembersOfGroup(ctx context.Context, group string) ([]*client.Client, error)
	CreateClient(ctx context.Context, c *client.Client) (client.ID, error)
	// AddToGroup creates the group if it does not exist yet.
	AddToGroup(ctx context.Context, id client.ID, group string) error
	ListClients(ctx context.Context) ([]*client.Client, error)
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

const clientColumns = `c.id, c.username, c.password, c.first_name, c.last_name,
	c.is_active, c.is_staff, c.created_at, c.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*client.Client, error) {
	c := new(client.Client)

	err := row.Scan(
		&c.ID,
		&c.Username,
		&c.Password,
		&c.FirstName,
		&c.LastName,
		&c.IsActive,
		&c.IsStaff,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *Repo) GetClientByID(ctx context.Context, id client.ID) (*client.Client, error) {
	const query = "SELECT " + clientColumns + " FROM clients c WHERE c.id = $1"

	c, err := scanClient(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}

	return c, nil
}

func (r *Repo) GetClientByUsername(ctx context.Context, username string) (*client.Client, error) {
	const query = "SELECT " + clientColumns + " FROM clients c WHERE c.username = $1"

	c, err := scanClient(r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client %q: %w", username, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get client %q: %w", username, err)
	}

	return c, nil
}

func (r *Repo) IsMemberOfGroup(ctx context.Context, id client.ID, group string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM client_groups cg
		JOIN groups g ON g.id = cg.group_id
		WHERE cg.client_id = $1 AND g.name = $2
	)`

	var ok bool

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, id, group).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check group %q of client %d: %w", group, id, err)
	}

	return ok, nil
}

func (r *Repo) ListMembersOfGroup(ctx context.Context, group string) ([]*client.Client, error) {
	const query = "SELECT " + clientColumns + ` FROM clients c
		JOIN client_groups cg ON cg.client_id = c.id
		JOIN groups g ON g.id = cg.group_id
		WHERE g.name = $1
		ORDER BY c.last_name, c.first_name, c.id`

	return r.list(ctx, query, group)
}

func (r *Repo) ListClients(ctx context.Context) ([]*client.Client, error) {
	const query = "SELECT " + clientColumns + " FROM clients c ORDER BY c.id"

	return r.list(ctx, query)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]*client.Client, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("list clients: close rows: %s", err)
		}
	}()

	clients := make([]*client.Client, 0)

	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	return clients, nil
}

func (r *Repo) CreateClient(ctx context.Context, c *client.Client) (client.ID, error) {
	const query = `INSERT INTO clients
		(username, password, first_name, last_name, is_active, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	var id client.ID

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query,
		c.Username, c.Password, c.FirstName, c.LastName, c.IsActive, c.IsStaff,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("username %q: %w", c.Username, errs.ErrDataConflict)
		}
		return 0, fmt.Errorf("create client: %w", err)
	}

	return id, nil
}

func (r *Repo) AddToGroup(ctx context.Context, id client.ID, group string) error {
	const upsertGroup = `INSERT INTO groups (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	const addMember = "INSERT INTO client_groups (client_id, group_id) VALUES ($1, $2)"

	db := r.getter.DefaultTrOrDB(ctx, r.db)

	var groupID int64
	if err := db.QueryRowContext(ctx, upsertGroup, group).Scan(&groupID); err != nil {
		return fmt.Errorf("upsert group %q: %w", group, err)
	}

	if _, err := db.ExecContext(ctx, addMember, id, groupID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("client %d already in %q: %w", id, group, errs.ErrDataConflict)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("client %d: %w", id, errs.ErrNotFound)
			}
		}
		return fmt.Errorf("add client %d to %q: %w", id, group, err)
	}

	return nil
}
