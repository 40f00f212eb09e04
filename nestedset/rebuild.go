package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/mptt/models"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Rebuild recomputes lft, rgt and level for one tree from parent_id links
// alone. Children keep their current relative order: by lft, then by id
// for rows whose lft ties (such as rows with zeroed coordinates).
func (e *Engine) Rebuild(ctx context.Context, treeID int64) error {
	return e.observe(ctx, "rebuild", func(ctx context.Context) error {
		release := e.acquire(treeScope(treeID))
		defer release()

		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			rows, err := tx.Select(ctx, models.Query{
				Where:   models.Where{models.Eq(models.FieldTreeID, treeID)},
				OrderBy: []models.Order{models.Asc(models.FieldLeft), models.Asc(models.FieldID)},
			})
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("%w: tree %d", ErrNodeNotFound, treeID)
			}

			coords, err := layout(rows, e.cfg.BaseLevel)
			if err != nil {
				return fmt.Errorf("%w: tree %d: %w", ErrIntegrityViolation, treeID, err)
			}

			changed := 0
			for i := range rows {
				if rows[i].Coords() == coords[i] {
					continue
				}
				if _, err := tx.UpdateWhere(ctx,
					models.Where{models.Eq(models.FieldID, rows[i].ID)},
					models.Set(models.FieldLeft, coords[i].Left),
					models.Set(models.FieldRight, coords[i].Right),
					models.Set(models.FieldLevel, coords[i].Level),
				); err != nil {
					return fmt.Errorf("renumbering node %d: %w", rows[i].ID, err)
				}
				changed++
			}
			rowsShifted.WithLabelValues("rebuild").Add(float64(changed))
			treesRebuilt.Inc()
			e.logger.Info("rebuilt tree", "tree", treeID, "nodes", len(rows), "changed", changed)
			return nil
		})
	}, attribute.Int64("tree", treeID))
}

// RebuildAll rebuilds every tree that has a root. Trees are independent so
// several are rebuilt at once, each in its own transaction.
func (e *Engine) RebuildAll(ctx context.Context) error {
	var roots []models.Node
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		roots, err = tx.Select(ctx, models.Query{
			Where:   models.Where{models.IsNull(models.FieldParentID)},
			OrderBy: []models.Order{models.Asc(models.FieldTreeID)},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("listing trees: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RebuildParallelism)
	seen := make(map[int64]bool, len(roots))
	for _, r := range roots {
		if seen[r.TreeID] {
			// Rebuild reports the duplicate root
			continue
		}
		seen[r.TreeID] = true
		tree := r.TreeID
		g.Go(func() error {
			return e.Rebuild(ctx, tree)
		})
	}
	return g.Wait()
}

// layout assigns nested-set coordinates to rows, which must all belong to
// one tree and be sorted in the desired sibling order. The result is
// index-aligned with rows.
//
// Subtree sizes are computed bottom-up first so that every interval is
// known before it is handed out top-down.
func layout(rows []models.Node, baseLevel int64) ([]models.Coords, error) {
	index := make(map[models.NodeID]int, len(rows))
	for i := range rows {
		index[rows[i].ID] = i
	}

	root := -1
	children := make([][]int, len(rows))
	for i := range rows {
		if rows[i].ParentID == nil {
			if root >= 0 {
				return nil, fmt.Errorf("multiple roots: %d and %d", rows[root].ID, rows[i].ID)
			}
			root = i
			continue
		}
		p, ok := index[*rows[i].ParentID]
		if !ok {
			return nil, fmt.Errorf("node %d has parent %d outside the tree", rows[i].ID, *rows[i].ParentID)
		}
		children[p] = append(children[p], i)
	}
	if root < 0 {
		return nil, fmt.Errorf("no root")
	}

	// preorder walk with an explicit stack; children are pushed in reverse
	// so they pop in order
	order := make([]int, 0, len(rows))
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, i)
		for j := len(children[i]) - 1; j >= 0; j-- {
			stack = append(stack, children[i][j])
		}
	}
	if len(order) != len(rows) {
		return nil, fmt.Errorf("%d of %d nodes unreachable from root %d", len(rows)-len(order), len(rows), rows[root].ID)
	}

	size := make([]int64, len(rows))
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		size[i] = 1
		for _, c := range children[i] {
			size[i] += size[c]
		}
	}

	out := make([]models.Coords, len(rows))
	treeID := rows[root].TreeID
	out[root] = models.Coords{TreeID: treeID, Left: 1, Right: 2 * size[root], Level: baseLevel}
	for _, i := range order {
		cursor := out[i].Left + 1
		for _, c := range children[i] {
			out[c] = models.Coords{
				TreeID: treeID,
				Left:   cursor,
				Right:  cursor + 2*size[c] - 1,
				Level:  out[i].Level + 1,
			}
			cursor = out[c].Right + 1
		}
	}
	return out, nil
}
