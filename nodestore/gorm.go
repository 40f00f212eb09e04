package nodestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/nestedset"
	"gorm.io/gorm"
)

// GormStore keeps nodes in a gorm database. On postgres transactions run
// at SERIALIZABLE isolation; sqlite transactions are serializable already.
type GormStore struct {
	db           *gorm.DB
	serializable bool
}

var _ nestedset.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		serializable: db.Dialector.Name() == "postgres",
	}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&models.Node{})
}

func (s *GormStore) InTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	var opts []*sql.TxOptions
	if s.serializable {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	tx := s.db.WithContext(ctx).Begin(opts...)
	if tx.Error != nil {
		return translateErr(fmt.Errorf("begin: %w", tx.Error))
	}

	if err := fn(ctx, &gormTx{db: tx}); err != nil {
		tx.Rollback()
		return translateErr(err)
	}

	if err := tx.Commit().Error; err != nil {
		return translateErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) scoped(ctx context.Context, where models.Where) (*gorm.DB, error) {
	db := t.db.WithContext(ctx).Model(&models.Node{})
	if len(where) == 0 {
		return db, nil
	}
	c := newCompiler(false)
	clause, err := c.where(where)
	if err != nil {
		return nil, err
	}
	return db.Where(clause, c.args...), nil
}

func (t *gormTx) Select(ctx context.Context, q models.Query) ([]models.Node, error) {
	db, err := t.scoped(ctx, q.Where)
	if err != nil {
		return nil, err
	}
	if len(q.OrderBy) > 0 {
		order, err := orderClause(q.OrderBy)
		if err != nil {
			return nil, err
		}
		db = db.Order(order)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var out []models.Node
	if err := db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (t *gormTx) UpdateWhere(ctx context.Context, where models.Where, set ...models.Assignment) (int64, error) {
	if len(where) == 0 {
		return 0, ErrGlobalWrite
	}
	db, err := t.scoped(ctx, where)
	if err != nil {
		return 0, err
	}

	updates := make(map[string]any, len(set))
	for _, a := range set {
		c := newCompiler(false)
		expr, err := c.expr(a)
		if err != nil {
			return 0, err
		}
		updates[string(a.Field)] = gorm.Expr(expr, c.args...)
	}

	res := db.Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (t *gormTx) DeleteWhere(ctx context.Context, where models.Where) (int64, error) {
	if len(where) == 0 {
		return 0, ErrGlobalWrite
	}
	db, err := t.scoped(ctx, where)
	if err != nil {
		return 0, err
	}
	res := db.Delete(&models.Node{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (t *gormTx) Create(ctx context.Context, n *models.Node) error {
	explicit := n.ID != 0
	if err := t.db.WithContext(ctx).Create(n).Error; err != nil {
		return err
	}
	// sqlite allocates past the largest rowid on its own; postgres needs
	// its sequence moved past caller-chosen ids
	if explicit && t.db.Dialector.Name() == "postgres" {
		err := t.db.WithContext(ctx).
			Exec("SELECT setval(pg_get_serial_sequence('nodes', 'id'), (SELECT MAX(id) FROM nodes))").Error
		if err != nil {
			return fmt.Errorf("advancing node id sequence: %w", err)
		}
	}
	return nil
}
