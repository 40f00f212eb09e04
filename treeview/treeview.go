// Package treeview rebuilds nested trees from flat nested-set rows and
// answers ancestry questions by interval comparison.
package treeview

import (
	"iter"
	"slices"

	"github.com/bluesky-social/mptt/models"
)

// Node is a row together with its reconstructed children, in left order.
type Node struct {
	models.Node
	Children []*Node `json:"children"`
}

// Walk visits n and its descendants in preorder until fn returns false.
func (n *Node) Walk(fn func(n *Node, depth int) bool) bool {
	return n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether a is an ancestor of b. With inclusive set a
// node counts as its own ancestor.
func IsAncestorOf(a, b *models.Node, inclusive bool) bool {
	return a.Coords().Contains(b.Coords(), inclusive)
}

func IsDescendantOf(a, b *models.Node, inclusive bool) bool {
	return IsAncestorOf(b, a, inclusive)
}

type options struct {
	filter func(*models.Node) bool
}

type Option func(*options)

// WithFilter drops rows for which keep returns false. Descendants of a
// dropped row are dropped too since their parent never appears.
func WithFilter(keep func(*models.Node) bool) Option {
	return func(o *options) {
		o.filter = keep
	}
}

// WithWhere keeps only rows matching the predicate.
func WithWhere(w models.Where) Option {
	return WithFilter(w.Match)
}

// Reconstruct turns rows ordered by (tree_id, level, lft) into trees in a
// single pass. Within each tree_id group the kept rows at the first level
// that survives the filter become top-level nodes and every later row is attached to its parent.
// Rows whose parent is absent are skipped. Each group is yielded as soon as
// the next group starts, so a streamed row source is consumed lazily; the
// result can only be ranged over once if rows can.
func Reconstruct(rows iter.Seq[models.Node], opts ...Option) iter.Seq[*Node] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(*Node) bool) {
		var (
			started  bool
			treeID   int64
			topLevel int64
			haveTop  bool
			tops     []*Node
			byID     = make(map[models.NodeID]*Node)
		)

		flush := func() bool {
			for _, t := range tops {
				if !yield(t) {
					return false
				}
			}
			tops = tops[:0]
			clear(byID)
			return true
		}

		for row := range rows {
			if !started || row.TreeID != treeID {
				if !flush() {
					return
				}
				started, treeID, haveTop = true, row.TreeID, false
			}

			if o.filter != nil && !o.filter(&row) {
				continue
			}
			if !haveTop {
				topLevel, haveTop = row.Level, true
			}

			n := &Node{Node: row}
			if row.Level == topLevel {
				tops = append(tops, n)
				byID[row.ID] = n
				continue
			}
			if row.ParentID == nil {
				continue
			}
			parent, ok := byID[*row.ParentID]
			if !ok {
				continue
			}
			parent.Children = append(parent.Children, n)
			byID[row.ID] = n
		}
		flush()
	}
}

// Build collects Reconstruct over a slice.
func Build(rows []models.Node, opts ...Option) []*Node {
	return slices.Collect(Reconstruct(slices.Values(rows), opts...))
}
