package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"go.opentelemetry.io/otel/attribute"
)

// Delete removes a node together with its whole subtree and closes the gap
// it leaves. Deleting a root removes its tree.
func (e *Engine) Delete(ctx context.Context, id models.NodeID) error {
	return e.observe(ctx, "delete", func(ctx context.Context) error {
		peeked, err := e.peek(ctx, id)
		if err != nil {
			return err
		}
		sc := treeScope(peeked[id].TreeID)

		release := e.acquire(sc)
		defer release()

		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			n, err := getNode(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := sc.check(n.TreeID); err != nil {
				return err
			}

			where, plan := interval.Delete(n.Coords(), n.IsRoot())
			removed, err := tx.DeleteWhere(ctx, where)
			if err != nil {
				return fmt.Errorf("deleting subtree of %d: %w", id, err)
			}
			if removed != n.Size() {
				return fmt.Errorf("%w: deleted %d rows under node %d, expected %d", ErrIntegrityViolation, removed, id, n.Size())
			}
			if err := e.apply(ctx, tx, "delete", plan...); err != nil {
				return err
			}
			if n.IsRoot() {
				return nil
			}
			return e.verify(ctx, tx, n.TreeID)
		})
	}, attribute.Int64("node", int64(id)))
}
