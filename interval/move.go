package interval

import "github.com/bluesky-social/mptt/models"

// Placement is a resolved move destination: the subtree's new left bound
// is Gap, in the numbering of TreeID as it is before the move, and its
// root lands at Level.
type Placement struct {
	TreeID int64
	Gap    int64
	Level  int64
}

// InPlace reports whether placing src at p would leave it where it is.
func InPlace(src models.Coords, p Placement) bool {
	return src.TreeID == p.TreeID && (p.Gap == src.Left || p.Gap == src.Right+1)
}

// MoveWithinTree relocates the subtree src to p inside the same tree. The
// subtree is parked at negative coordinates, the source gap is closed, the
// destination gap is opened and the subtree is restored at its new offset.
func MoveWithinTree(src models.Coords, p Placement) []Shift {
	size := Width(src.Left, src.Right)
	gap := p.Gap
	if gap > src.Right {
		gap -= size
	}
	return []Shift{
		Park(src.TreeID, src.Left, src.Right),
		CloseGap(src.TreeID, src.Left, src.Right),
		OpenGap(src.TreeID, gap, size),
		Unpark(src.TreeID, gap-src.Left, p.Level-src.Level),
	}
}

// MoveAcrossTrees relocates src into another tree. The destination gap is
// opened first, then the subtree is restamped into the destination and
// finally the source gap is closed. closeSource is false when src is a
// whole tree, which simply disappears.
func MoveAcrossTrees(src models.Coords, p Placement, closeSource bool) []Shift {
	size := Width(src.Left, src.Right)
	plan := []Shift{
		OpenGap(p.TreeID, p.Gap, size),
		Restamp(src.TreeID, src.Left, src.Right, p.Gap-src.Left, p.Level-src.Level, p.TreeID),
	}
	if closeSource {
		plan = append(plan, CloseGap(src.TreeID, src.Left, src.Right))
	}
	return plan
}

// Detach turns the non-root subtree src into the tree destTree, numbered
// from 1 at baseLevel, and closes the hole it leaves behind.
func Detach(src models.Coords, destTree, baseLevel int64) []Shift {
	return []Shift{
		Restamp(src.TreeID, src.Left, src.Right, 1-src.Left, baseLevel-src.Level, destTree),
		CloseGap(src.TreeID, src.Left, src.Right),
	}
}

// Insert returns the coordinates of a new last child of parent together
// with the shift that makes room for it.
func Insert(parent models.Coords) (models.Coords, Shift) {
	c := models.Coords{
		TreeID: parent.TreeID,
		Left:   parent.Right,
		Right:  parent.Right + 1,
		Level:  parent.Level + 1,
	}
	return c, OpenGap(parent.TreeID, parent.Right, 2)
}

// Delete returns the predicate selecting the subtree at c and, unless c is
// a root, the shift closing the hole it leaves.
func Delete(c models.Coords, root bool) (models.Where, []Shift) {
	where := Subtree(c.TreeID, c.Left, c.Right)
	if root {
		return where, nil
	}
	return where, []Shift{CloseGap(c.TreeID, c.Left, c.Right)}
}
