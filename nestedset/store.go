package nestedset

import (
	"context"

	"github.com/bluesky-social/mptt/models"
)

// Store is the row storage the engine runs against. InTx must run fn in a
// single transaction, committing when fn returns nil and rolling back
// otherwise. Serialization failures should be reported as
// ErrConcurrencyConflict.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row operations available inside a transaction.
// UpdateWhere must evaluate every assignment against the row as it was
// before the statement, the way a single SQL UPDATE does.
type Tx interface {
	Select(ctx context.Context, q models.Query) ([]models.Node, error)
	UpdateWhere(ctx context.Context, where models.Where, set ...models.Assignment) (int64, error)
	DeleteWhere(ctx context.Context, where models.Where) (int64, error)
	Create(ctx context.Context, n *models.Node) error
}
