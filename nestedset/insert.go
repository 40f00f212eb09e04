package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"go.opentelemetry.io/otel/attribute"
)

// Insert creates n as the last child of n.ParentID, or as the root of a
// new last tree when ParentID is nil. The engine assigns the coordinates,
// stores them on n and returns them.
func (e *Engine) Insert(ctx context.Context, n *models.Node) (models.Coords, error) {
	var out models.Coords
	err := e.observe(ctx, "insert", func(ctx context.Context) error {
		sc := forestScope()
		if n.ParentID != nil {
			peeked, err := e.peek(ctx, *n.ParentID)
			if err != nil {
				return err
			}
			sc = treeScope(peeked[*n.ParentID].TreeID)
		}

		release := e.acquire(sc)
		defer release()

		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			c, err := e.insert(ctx, tx, sc, n)
			if err != nil {
				return err
			}
			out = c
			return e.verify(ctx, tx, c.TreeID)
		})
	}, parentAttr(n.ParentID))
	return out, err
}

func (e *Engine) insert(ctx context.Context, tx Tx, sc scope, n *models.Node) (models.Coords, error) {
	if n.ParentID == nil {
		last, err := maxTreeID(ctx, tx)
		if err != nil {
			return models.Coords{}, err
		}
		c := models.Coords{TreeID: last + 1, Left: 1, Right: 2, Level: e.cfg.BaseLevel}
		n.SetCoords(c)
		if err := tx.Create(ctx, n); err != nil {
			return models.Coords{}, fmt.Errorf("creating root: %w", err)
		}
		return c, nil
	}

	parent, err := getNode(ctx, tx, *n.ParentID)
	if err != nil {
		return models.Coords{}, err
	}
	if err := sc.check(parent.TreeID); err != nil {
		return models.Coords{}, err
	}

	c, shift := interval.Insert(parent.Coords())
	if err := e.apply(ctx, tx, "insert", shift); err != nil {
		return models.Coords{}, err
	}
	n.SetCoords(c)
	if err := tx.Create(ctx, n); err != nil {
		return models.Coords{}, fmt.Errorf("creating node under %d: %w", parent.ID, err)
	}
	return c, nil
}

// InsertTree creates whole draft trees in one transaction. Under a parent
// the drafts become its last children, in order; with a nil parent each
// draft becomes a new tree at the end of the forest. Draft nodes get their
// ids, parents and coordinates filled in.
func (e *Engine) InsertTree(ctx context.Context, parentID *models.NodeID, drafts ...*models.DraftTree) error {
	return e.observe(ctx, "insert_tree", func(ctx context.Context) error {
		sc := forestScope()
		if parentID != nil {
			peeked, err := e.peek(ctx, *parentID)
			if err != nil {
				return err
			}
			sc = treeScope(peeked[*parentID].TreeID)
		}

		release := e.acquire(sc)
		defer release()

		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			if parentID == nil {
				last, err := maxTreeID(ctx, tx)
				if err != nil {
					return err
				}
				trees := make([]int64, 0, len(drafts))
				for i, d := range drafts {
					tree := last + 1 + int64(i)
					if err := createDraft(ctx, tx, d, nil, tree, 1, e.cfg.BaseLevel); err != nil {
						return err
					}
					trees = append(trees, tree)
				}
				return e.verify(ctx, tx, trees...)
			}

			parent, err := getNode(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			if err := sc.check(parent.TreeID); err != nil {
				return err
			}

			var total int64
			for _, d := range drafts {
				total += 2 * d.Count()
			}
			if err := e.apply(ctx, tx, "insert_tree", interval.OpenGap(parent.TreeID, parent.Right, total)); err != nil {
				return err
			}

			cursor := parent.Right
			for _, d := range drafts {
				if err := createDraft(ctx, tx, d, &parent.ID, parent.TreeID, cursor, parent.Level+1); err != nil {
					return err
				}
				cursor += 2 * d.Count()
			}
			return e.verify(ctx, tx, parent.TreeID)
		})
	}, parentAttr(parentID), attribute.Int("drafts", len(drafts)))
}

func createDraft(ctx context.Context, tx Tx, d *models.DraftTree, parent *models.NodeID, tree, left, level int64) error {
	n := d.Node
	n.ParentID = nil
	if parent != nil {
		id := *parent
		n.ParentID = &id
	}
	n.SetCoords(models.Coords{
		TreeID: tree,
		Left:   left,
		Right:  left + 2*d.Count() - 1,
		Level:  level,
	})
	if err := tx.Create(ctx, n); err != nil {
		return fmt.Errorf("creating draft node: %w", err)
	}

	cursor := left + 1
	for _, c := range d.Children {
		if err := createDraft(ctx, tx, c, &n.ID, tree, cursor, level+1); err != nil {
			return err
		}
		cursor += 2 * c.Count()
	}
	return nil
}

func parentAttr(p *models.NodeID) attribute.KeyValue {
	if p == nil {
		return attribute.Int64("parent", 0)
	}
	return attribute.Int64("parent", int64(*p))
}
