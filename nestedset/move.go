package nestedset

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"go.opentelemetry.io/otel/attribute"
)

type Position int

const (
	// PositionInside places the node as the last child of the anchor.
	PositionInside Position = iota
	// PositionFirstChild places the node as the first child of the anchor.
	PositionFirstChild
	// PositionBefore places the node as the previous sibling of the anchor.
	// When the anchor is a root the node becomes the tree just before it.
	PositionBefore
	// PositionAfter places the node as the next sibling of the anchor, or
	// the tree just after it when the anchor is a root.
	PositionAfter
	// PositionRoot makes the node the root of a new last tree.
	PositionRoot
)

var positionNames = map[Position]string{
	PositionInside:     "inside",
	PositionFirstChild: "first-child",
	PositionBefore:     "before",
	PositionAfter:      "after",
	PositionRoot:       "root",
}

func (p Position) String() string {
	if s, ok := positionNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

func ParsePosition(s string) (Position, error) {
	for p, name := range positionNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown position %q", s)
}

// Destination is where Move puts a node, relative to Anchor. Anchor is
// ignored for PositionRoot.
type Destination struct {
	Position Position
	Anchor   models.NodeID
}

// Inside makes the node the last child of parent.
func Inside(parent models.NodeID) Destination {
	return Destination{Position: PositionInside, Anchor: parent}
}

// FirstChildOf makes the node the first child of parent.
func FirstChildOf(parent models.NodeID) Destination {
	return Destination{Position: PositionFirstChild, Anchor: parent}
}

// Before places the node just ahead of sibling.
func Before(sibling models.NodeID) Destination {
	return Destination{Position: PositionBefore, Anchor: sibling}
}

// After places the node just behind sibling.
func After(sibling models.NodeID) Destination {
	return Destination{Position: PositionAfter, Anchor: sibling}
}

// ToRoot makes the node the root of a new last tree.
func ToRoot() Destination {
	return Destination{Position: PositionRoot}
}

func (d Destination) String() string {
	if d.Position == PositionRoot {
		return "root"
	}
	return fmt.Sprintf("%s %d", d.Position, d.Anchor)
}

func (d Destination) rootLevel(anchor *models.Node) bool {
	switch d.Position {
	case PositionRoot:
		return true
	case PositionBefore, PositionAfter:
		return anchor.IsRoot()
	}
	return false
}

// Move relocates a node and its subtree. Moving a node relative to itself
// or to one of its descendants fails with ErrInvalidMove before anything
// is written. A destination equal to the current position is a no-op.
func (e *Engine) Move(ctx context.Context, id models.NodeID, dest Destination) error {
	return e.observe(ctx, "move", func(ctx context.Context) error {
		if dest.Position != PositionRoot && dest.Anchor == id {
			return fmt.Errorf("%w: node %d relative to itself", ErrInvalidMove, id)
		}

		ids := []models.NodeID{id}
		if dest.Position != PositionRoot {
			ids = append(ids, dest.Anchor)
		}
		peeked, err := e.peek(ctx, ids...)
		if err != nil {
			return err
		}

		sc := forestScope()
		if dest.Position != PositionRoot {
			m, anchor := peeked[id], peeked[dest.Anchor]
			if m.TreeID == anchor.TreeID && !dest.rootLevel(&anchor) {
				sc = treeScope(m.TreeID)
			}
		}

		release := e.acquire(sc)
		defer release()

		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			return e.move(ctx, tx, sc, id, dest)
		})
	}, attribute.Int64("node", int64(id)), attribute.String("dest", dest.String()))
}

func (e *Engine) move(ctx context.Context, tx Tx, sc scope, id models.NodeID, dest Destination) error {
	m, err := getNode(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := sc.check(m.TreeID); err != nil {
		return err
	}

	var anchor *models.Node
	if dest.Position != PositionRoot {
		anchor, err = getNode(ctx, tx, dest.Anchor)
		if err != nil {
			return err
		}
		if isSelfOrDescendant(m, anchor) {
			return fmt.Errorf("%w: node %d %s its own subtree", ErrInvalidMove, id, dest)
		}
		if err := sc.check(anchor.TreeID); err != nil {
			return err
		}
	}

	if dest.rootLevel(anchor) {
		return e.moveToRoot(ctx, tx, m, anchor, dest.Position)
	}

	p, parent := e.placement(anchor, dest.Position)
	if interval.InPlace(m.Coords(), p) {
		noopMoves.Inc()
		e.logger.Debug("move is a no-op", "node", id, "dest", dest.String())
		return nil
	}

	var plan []interval.Shift
	if p.TreeID == m.TreeID {
		plan = interval.MoveWithinTree(m.Coords(), p)
	} else {
		plan = interval.MoveAcrossTrees(m.Coords(), p, !m.IsRoot())
	}
	if err := e.apply(ctx, tx, "move", plan...); err != nil {
		return err
	}
	if err := setParent(ctx, tx, id, parent); err != nil {
		return err
	}

	if p.TreeID == m.TreeID || m.IsRoot() {
		return e.verify(ctx, tx, p.TreeID)
	}
	return e.verify(ctx, tx, p.TreeID, m.TreeID)
}

// isSelfOrDescendant reports whether anchor is m or one of its descendants.
func isSelfOrDescendant(m, anchor *models.Node) bool {
	return m.Coords().Contains(anchor.Coords(), true)
}

// placement resolves a non-root destination to a gap in the anchor's tree
// and the node's new parent.
func (e *Engine) placement(anchor *models.Node, pos Position) (interval.Placement, *models.NodeID) {
	p := interval.Placement{TreeID: anchor.TreeID}
	switch pos {
	case PositionInside:
		p.Gap, p.Level = anchor.Right, anchor.Level+1
		return p, &anchor.ID
	case PositionFirstChild:
		p.Gap, p.Level = anchor.Left+1, anchor.Level+1
		return p, &anchor.ID
	case PositionBefore:
		p.Gap, p.Level = anchor.Left, anchor.Level
	default:
		p.Gap, p.Level = anchor.Right+1, anchor.Level
	}
	return p, anchor.ParentID
}

// moveToRoot turns m into a whole tree placed in forest order: before or
// after the anchor's tree, or after every tree for PositionRoot.
func (e *Engine) moveToRoot(ctx context.Context, tx Tx, m, anchor *models.Node, pos Position) error {
	var target int64
	shiftFrom := int64(-1)

	switch pos {
	case PositionRoot:
		last, err := maxTreeID(ctx, tx)
		if err != nil {
			return err
		}
		if m.IsRoot() && m.TreeID == last {
			noopMoves.Inc()
			return nil
		}
		target = last + 1

	case PositionBefore:
		if m.IsRoot() && m.TreeID < anchor.TreeID {
			between, err := rootsBetween(ctx, tx, m.TreeID, anchor.TreeID)
			if err != nil {
				return err
			}
			if !between {
				noopMoves.Inc()
				return nil
			}
		}
		target = anchor.TreeID
		shiftFrom = anchor.TreeID
		if anchor.TreeID > 1 {
			taken, err := treeExists(ctx, tx, anchor.TreeID-1)
			if err != nil {
				return err
			}
			if !taken {
				target, shiftFrom = anchor.TreeID-1, -1
			}
		}

	case PositionAfter:
		if m.IsRoot() && m.TreeID > anchor.TreeID {
			between, err := rootsBetween(ctx, tx, anchor.TreeID, m.TreeID)
			if err != nil {
				return err
			}
			if !between {
				noopMoves.Inc()
				return nil
			}
		}
		target = anchor.TreeID + 1
		taken, err := treeExists(ctx, tx, target)
		if err != nil {
			return err
		}
		if taken {
			shiftFrom = target
		}
	}

	src := m.Coords()
	if shiftFrom >= 0 {
		if err := e.apply(ctx, tx, "move", interval.ShiftTrees(shiftFrom, 1)); err != nil {
			return err
		}
		if src.TreeID >= shiftFrom {
			src.TreeID++
		}
	}

	if m.IsRoot() {
		if err := e.apply(ctx, tx, "move", interval.Retag(src.TreeID, target)); err != nil {
			return err
		}
		return e.verify(ctx, tx, target)
	}

	if err := e.apply(ctx, tx, "move", interval.Detach(src, target, e.cfg.BaseLevel)...); err != nil {
		return err
	}
	if err := setParent(ctx, tx, m.ID, nil); err != nil {
		return err
	}
	return e.verify(ctx, tx, target, src.TreeID)
}

// rootsBetween reports whether any tree id lies strictly between lo and hi.
func rootsBetween(ctx context.Context, tx Tx, lo, hi int64) (bool, error) {
	rows, err := tx.Select(ctx, models.Query{
		Where: models.Where{
			models.Gt(models.FieldTreeID, lo),
			models.Lt(models.FieldTreeID, hi),
		},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
