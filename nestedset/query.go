package nestedset

import (
	"context"

	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/treeview"
)

func (e *Engine) Get(ctx context.Context, id models.NodeID) (*models.Node, error) {
	var out *models.Node
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = getNode(ctx, tx, id)
		return err
	})
	return out, err
}

// about loads a node and runs the query build derives from it, in one
// transaction.
func (e *Engine) about(ctx context.Context, id models.NodeID, build func(n *models.Node) models.Query) ([]models.Node, error) {
	var out []models.Node
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err := getNode(ctx, tx, id)
		if err != nil {
			return err
		}
		out, err = tx.Select(ctx, build(n))
		return err
	})
	return out, err
}

func (e *Engine) ChildrenOf(ctx context.Context, id models.NodeID) ([]models.Node, error) {
	return e.about(ctx, id, treeview.ChildrenQuery)
}

func (e *Engine) SiblingsOf(ctx context.Context, id models.NodeID, includeSelf bool) ([]models.Node, error) {
	return e.about(ctx, id, func(n *models.Node) models.Query {
		return treeview.SiblingsQuery(n, includeSelf)
	})
}

// LeftSiblingInLevel returns the nearest node to the left of id on the same
// level of the same tree, or nil.
func (e *Engine) LeftSiblingInLevel(ctx context.Context, id models.NodeID) (*models.Node, error) {
	rows, err := e.about(ctx, id, treeview.LeftSiblingInLevelQuery)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// PathToRoot returns id and its ancestors, root first unless rootLast.
func (e *Engine) PathToRoot(ctx context.Context, id models.NodeID, rootLast bool) ([]models.Node, error) {
	return e.about(ctx, id, func(n *models.Node) models.Query {
		return treeview.PathQuery(n, rootLast)
	})
}

func (e *Engine) Ancestors(ctx context.Context, id models.NodeID, inclusive bool) ([]models.Node, error) {
	return e.about(ctx, id, func(n *models.Node) models.Query {
		return treeview.AncestorsQuery(n, inclusive)
	})
}

// Descendants returns the subtree under id in preorder.
func (e *Engine) Descendants(ctx context.Context, id models.NodeID, inclusive bool) ([]models.Node, error) {
	return e.about(ctx, id, func(n *models.Node) models.Query {
		q := treeview.DescendantsQuery(n, inclusive)
		q.OrderBy = []models.Order{models.Asc(models.FieldLeft)}
		return q
	})
}

// Forest reconstructs the given trees, or all of them, with one query.
func (e *Engine) Forest(ctx context.Context, treeIDs []int64, opts ...treeview.Option) ([]*treeview.Node, error) {
	var rows []models.Node
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rows, err = tx.Select(ctx, treeview.ForestQuery(treeIDs...))
		return err
	})
	if err != nil {
		return nil, err
	}
	return treeview.Build(rows, opts...), nil
}

// DrilldownTree reconstructs the subtree rooted at id.
func (e *Engine) DrilldownTree(ctx context.Context, id models.NodeID, opts ...treeview.Option) ([]*treeview.Node, error) {
	rows, err := e.about(ctx, id, func(n *models.Node) models.Query {
		return treeview.DescendantsQuery(n, true)
	})
	if err != nil {
		return nil, err
	}
	return treeview.Build(rows, opts...), nil
}

// Check validates every tree, or the listed ones, and reports all broken
// invariants wrapped in ErrIntegrityViolation.
func (e *Engine) Check(ctx context.Context, treeIDs ...int64) error {
	return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return e.checkTrees(ctx, tx, treeIDs...)
	})
}
