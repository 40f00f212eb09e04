package nodestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/nestedset"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const nodeColumns = "id, parent_id, tree_id, lft, rgt, level, name, created_at, updated_at"

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		id BIGSERIAL PRIMARY KEY,
		parent_id BIGINT,
		tree_id BIGINT NOT NULL,
		lft BIGINT NOT NULL,
		rgt BIGINT NOT NULL,
		level BIGINT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_parent_id ON nodes (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_tree_lft ON nodes (tree_id, lft)`,
}

// PgStore talks to postgres through a pgx pool. Every transaction runs at
// SERIALIZABLE isolation.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ nestedset.Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func ConnectPg(ctx context.Context, url string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPgStore(pool), nil
}

func (s *PgStore) Close() {
	s.pool.Close()
}

// Migrate creates the nodes table. The layout matches what gorm
// AutoMigrate produces for models.Node, so both stores can share a
// database.
func (s *PgStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

func (s *PgStore) InTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return translateErr(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return translateErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func scanNode(row pgx.CollectableRow) (models.Node, error) {
	var (
		n      models.Node
		parent *int64
	)
	if err := row.Scan(&n.ID, &parent, &n.TreeID, &n.Left, &n.Right, &n.Level, &n.Name, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return n, err
	}
	if parent != nil {
		n.ParentID = models.ID(*parent)
	}
	return n, nil
}

func (t *pgTx) Select(ctx context.Context, q models.Query) ([]models.Node, error) {
	c := newCompiler(true)
	var sb strings.Builder
	sb.WriteString("SELECT " + nodeColumns + " FROM nodes")
	if len(q.Where) > 0 {
		clause, err := c.where(q.Where)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE " + clause)
	}
	if len(q.OrderBy) > 0 {
		order, err := orderClause(q.OrderBy)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" ORDER BY " + order)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := t.tx.Query(ctx, sb.String(), c.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanNode)
}

func (t *pgTx) UpdateWhere(ctx context.Context, where models.Where, set ...models.Assignment) (int64, error) {
	if len(where) == 0 {
		return 0, ErrGlobalWrite
	}

	c := newCompiler(true)
	sets := make([]string, 0, len(set)+1)
	for _, a := range set {
		expr, err := c.expr(a)
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", a.Field, expr))
	}
	sets = append(sets, "updated_at = now()")

	clause, err := c.where(where)
	if err != nil {
		return 0, err
	}

	tag, err := t.tx.Exec(ctx, fmt.Sprintf("UPDATE nodes SET %s WHERE %s", strings.Join(sets, ", "), clause), c.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteWhere(ctx context.Context, where models.Where) (int64, error) {
	if len(where) == 0 {
		return 0, ErrGlobalWrite
	}
	c := newCompiler(true)
	clause, err := c.where(where)
	if err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, "DELETE FROM nodes WHERE "+clause, c.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Create(ctx context.Context, n *models.Node) error {
	var parent *int64
	if n.ParentID != nil {
		p := int64(*n.ParentID)
		parent = &p
	}

	if n.ID == 0 {
		return t.tx.QueryRow(ctx,
			`INSERT INTO nodes (parent_id, tree_id, lft, rgt, level, name)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			parent, n.TreeID, n.Left, n.Right, n.Level, n.Name,
		).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	}

	if err := t.tx.QueryRow(ctx,
		`INSERT INTO nodes (id, parent_id, tree_id, lft, rgt, level, name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		int64(n.ID), parent, n.TreeID, n.Left, n.Right, n.Level, n.Name,
	).Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		return err
	}

	// keep the id sequence ahead of caller-chosen ids so later generated
	// ids cannot collide with them
	if _, err := t.tx.Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('nodes', 'id'), (SELECT MAX(id) FROM nodes))`,
	); err != nil {
		return fmt.Errorf("advancing node id sequence: %w", err)
	}
	return nil
}
