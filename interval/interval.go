// Package interval computes the bulk range shifts that keep nested-set
// coordinates consistent. Nothing here touches storage: every function
// returns a Shift describing which rows to update and how, and the caller
// runs it inside its transaction.
package interval

import (
	"fmt"

	"github.com/bluesky-social/mptt/models"
)

// Shift is one bulk UPDATE: the assignments apply to every row matching
// Where.
type Shift struct {
	Where models.Where
	Set   []models.Assignment
}

func (s Shift) String() string {
	return fmt.Sprintf("where %s set %v", s.Where, s.Set)
}

// Apply runs the shift against in-memory rows and reports how many
// matched.
func (s Shift) Apply(rows []models.Node) int {
	n := 0
	for i := range rows {
		if !s.Where.Match(&rows[i]) {
			continue
		}
		models.Apply(&rows[i], s.Set...)
		n++
	}
	return n
}

// Width is the span a subtree occupies, always twice its node count.
func Width(left, right int64) int64 {
	return right - left + 1
}

// OpenGap makes room for size positions starting at at: every row whose
// bound is at or beyond at moves right by size. Rows entirely before at
// keep their coordinates and enclosing rows only grow on the right.
//
// Inserting a last child of parent P is OpenGap(P.TreeID, P.Right, 2).
func OpenGap(treeID, at, size int64) Shift {
	return Shift{
		Where: models.Where{
			models.Eq(models.FieldTreeID, treeID),
			models.Ge(models.FieldRight, at),
		},
		Set: []models.Assignment{
			models.Add(models.FieldLeft, size).If(models.Ge(models.FieldLeft, at)),
			models.Add(models.FieldRight, size),
		},
	}
}

// CloseGap removes the span [left,right] from a tree's numbering, pulling
// later rows back by its width. Rows inside the span must already be gone
// from the tree or parked at negative coordinates.
func CloseGap(treeID, left, right int64) Shift {
	delta := Width(left, right)
	return Shift{
		Where: models.Where{
			models.Eq(models.FieldTreeID, treeID),
			models.Gt(models.FieldRight, right),
		},
		Set: []models.Assignment{
			models.Add(models.FieldLeft, -delta).If(models.Gt(models.FieldLeft, left)),
			models.Add(models.FieldRight, -delta),
		},
	}
}

// Subtree selects the rows of the subtree occupying [left,right].
func Subtree(treeID, left, right int64) models.Where {
	return models.Where{
		models.Eq(models.FieldTreeID, treeID),
		models.Ge(models.FieldLeft, left),
		models.Le(models.FieldRight, right),
	}
}

// Restamp translates a subtree by offset, moves it levelDelta levels and
// retags it with destTree.
func Restamp(treeID, left, right, offset, levelDelta, destTree int64) Shift {
	set := []models.Assignment{
		models.Add(models.FieldLeft, offset),
		models.Add(models.FieldRight, offset),
	}
	if levelDelta != 0 {
		set = append(set, models.Add(models.FieldLevel, levelDelta))
	}
	if destTree != treeID {
		set = append(set, models.Set(models.FieldTreeID, destTree))
	}
	return Shift{
		Where: Subtree(treeID, left, right),
		Set:   set,
	}
}

// Park negates the coordinates of a subtree so that shifts applied to the
// rest of its tree leave it alone.
func Park(treeID, left, right int64) Shift {
	return Shift{
		Where: Subtree(treeID, left, right),
		Set: []models.Assignment{
			models.Reflect(models.FieldLeft, 0),
			models.Reflect(models.FieldRight, 0),
		},
	}
}

// Unpark restores a parked subtree, translated by offset relative to its
// original coordinates.
func Unpark(treeID, offset, levelDelta int64) Shift {
	set := []models.Assignment{
		models.Reflect(models.FieldLeft, offset),
		models.Reflect(models.FieldRight, offset),
	}
	if levelDelta != 0 {
		set = append(set, models.Add(models.FieldLevel, levelDelta))
	}
	return Shift{
		Where: models.Where{
			models.Eq(models.FieldTreeID, treeID),
			models.Lt(models.FieldLeft, 0),
		},
		Set: set,
	}
}

// ShiftTrees renumbers every tree with tree_id >= from by delta, keeping
// the relative forest order.
func ShiftTrees(from, delta int64) Shift {
	return Shift{
		Where: models.Where{models.Ge(models.FieldTreeID, from)},
		Set:   []models.Assignment{models.Add(models.FieldTreeID, delta)},
	}
}

// Retag moves a whole tree to a new tree_id.
func Retag(treeID, destTree int64) Shift {
	return Shift{
		Where: models.Where{models.Eq(models.FieldTreeID, treeID)},
		Set:   []models.Assignment{models.Set(models.FieldTreeID, destTree)},
	}
}
