package interval

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bluesky-social/mptt/models"
)

var ErrInvalidTree = errors.New("invalid nested set")

// Violation describes one broken invariant in one tree.
type Violation struct {
	TreeID int64
	Node   models.NodeID
	Reason string
}

func (v Violation) Error() string {
	if v.Node == 0 {
		return fmt.Sprintf("tree %d: %s", v.TreeID, v.Reason)
	}
	return fmt.Sprintf("tree %d: node %d: %s", v.TreeID, v.Node, v.Reason)
}

func (v Violation) Unwrap() error {
	return ErrInvalidTree
}

// Validate checks every tree found in rows and returns all violations
// joined together, or nil when the forest is consistent.
func Validate(rows []models.Node, baseLevel int64) error {
	byTree := make(map[int64][]models.Node)
	var trees []int64
	for _, r := range rows {
		if _, ok := byTree[r.TreeID]; !ok {
			trees = append(trees, r.TreeID)
		}
		byTree[r.TreeID] = append(byTree[r.TreeID], r)
	}
	sort.Slice(trees, func(i, j int) bool { return trees[i] < trees[j] })

	var errs []error
	for _, t := range trees {
		for _, v := range ValidateTree(t, byTree[t], baseLevel) {
			errs = append(errs, v)
		}
	}
	return errors.Join(errs...)
}

// ValidateTree checks the rows of a single tree.
func ValidateTree(treeID int64, rows []models.Node, baseLevel int64) []Violation {
	var out []Violation
	bad := func(id models.NodeID, format string, args ...any) {
		out = append(out, Violation{TreeID: treeID, Node: id, Reason: fmt.Sprintf(format, args...)})
	}
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]models.Node, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	n := int64(len(sorted))
	byID := make(map[models.NodeID]*models.Node, n)
	seen := make(map[int64]models.NodeID, 2*n)
	var roots []*models.Node
	maxRight := int64(0)

	for i := range sorted {
		r := &sorted[i]
		byID[r.ID] = r
		if r.Left >= r.Right {
			bad(r.ID, "left %d not below right %d", r.Left, r.Right)
		}
		if (r.Right-r.Left)%2 == 0 {
			bad(r.ID, "interval [%d,%d] has even length", r.Left, r.Right)
		}
		for _, b := range []int64{r.Left, r.Right} {
			if other, dup := seen[b]; dup {
				bad(r.ID, "bound %d shared with node %d", b, other)
			}
			seen[b] = r.ID
		}
		if r.Right > maxRight {
			maxRight = r.Right
		}
		if r.IsRoot() {
			roots = append(roots, r)
		}
	}

	if sorted[0].Left != 1 {
		bad(0, "minimum left is %d", sorted[0].Left)
	}
	if maxRight != 2*n {
		bad(0, "maximum right is %d for %d nodes", maxRight, n)
	}

	switch len(roots) {
	case 0:
		bad(0, "no root")
	case 1:
		r := roots[0]
		if r.Left != 1 || r.Right != 2*n {
			bad(r.ID, "root interval [%d,%d] does not span the tree", r.Left, r.Right)
		}
		if r.Level != baseLevel {
			bad(r.ID, "root level %d, want %d", r.Level, baseLevel)
		}
	default:
		bad(0, "%d roots", len(roots))
	}

	// a stack of open intervals, walked in preorder, catches partial
	// overlaps and lets each row be checked against its enclosing row
	var stack []*models.Node
	for i := range sorted {
		r := &sorted[i]
		for len(stack) > 0 && stack[len(stack)-1].Right < r.Left {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if r.Right > top.Right {
				bad(r.ID, "interval [%d,%d] overlaps node %d [%d,%d]", r.Left, r.Right, top.ID, top.Left, top.Right)
			}
			if r.ParentID == nil || *r.ParentID != top.ID {
				bad(r.ID, "enclosed by node %d but parent is %v", top.ID, fmtParent(r.ParentID))
			}
			if r.Level != top.Level+1 {
				bad(r.ID, "level %d under parent level %d", r.Level, top.Level)
			}
		} else if !r.IsRoot() {
			if _, ok := byID[*r.ParentID]; !ok {
				bad(r.ID, "parent %d not in tree", *r.ParentID)
			} else {
				bad(r.ID, "not enclosed by parent %d", *r.ParentID)
			}
		}
		// in preorder a node at depth d has left = d + 2*(nodes before it
		// outside its ancestry), so left and depth share parity
		if (r.Left-(r.Level-baseLevel+1))%2 != 0 {
			bad(r.ID, "left %d has wrong parity for level %d", r.Left, r.Level)
		}
		stack = append(stack, r)
	}

	return out
}

func fmtParent(p *models.NodeID) string {
	if p == nil {
		return "none"
	}
	return p.String()
}

// Violations extracts every Violation from an error tree, such as the
// result of Validate wrapped by callers.
func Violations(err error) []Violation {
	switch x := err.(type) {
	case nil:
		return nil
	case Violation:
		return []Violation{x}
	case interface{ Unwrap() []error }:
		var out []Violation
		for _, e := range x.Unwrap() {
			out = append(out, Violations(e)...)
		}
		return out
	case interface{ Unwrap() error }:
		return Violations(x.Unwrap())
	}
	return nil
}
