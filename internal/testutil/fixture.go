package testutil

import (
	"sort"

	"github.com/bluesky-social/mptt/models"
)

// shape is one 11-node tree; ids are relative to the first node.
//
//	1
//	├── 2
//	│   └── 3
//	├── 4
//	│   ├── 5
//	│   └── 6
//	└── 7
//	    ├── 8
//	    │   └── 9
//	    └── 10
//	        └── 11
var shape = []struct {
	id, parent, left, right, level int64
}{
	{1, 0, 1, 22, 1},
	{2, 1, 2, 5, 2},
	{3, 2, 3, 4, 3},
	{4, 1, 6, 11, 2},
	{5, 4, 7, 8, 3},
	{6, 4, 9, 10, 3},
	{7, 1, 12, 21, 2},
	{8, 7, 13, 16, 3},
	{9, 8, 14, 15, 4},
	{10, 7, 17, 20, 3},
	{11, 10, 18, 19, 4},
}

// Forest returns two copies of the standard tree: ids 1-11 in tree 1 and
// ids 12-22 in tree 2, numbered from baseLevel.
func Forest(baseLevel int64) []models.Node {
	var out []models.Node
	for tree := int64(1); tree <= 2; tree++ {
		off := (tree - 1) * int64(len(shape))
		for _, s := range shape {
			n := models.Node{
				ID:     models.NodeID(s.id + off),
				TreeID: tree,
				Left:   s.left,
				Right:  s.right,
				Level:  s.level - 1 + baseLevel,
			}
			if s.parent != 0 {
				n.ParentID = models.ID(s.parent + off)
			}
			out = append(out, n)
		}
	}
	return out
}

// Coords indexes rows by id.
func Coords(rows []models.Node) map[models.NodeID]models.Coords {
	out := make(map[models.NodeID]models.Coords, len(rows))
	for i := range rows {
		out[rows[i].ID] = rows[i].Coords()
	}
	return out
}

// IDs returns the ids of rows in order.
func IDs(rows []models.Node) []models.NodeID {
	out := make([]models.NodeID, len(rows))
	for i := range rows {
		out[i] = rows[i].ID
	}
	return out
}

// SortPreorder orders rows by tree and left bound.
func SortPreorder(rows []models.Node) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TreeID != rows[j].TreeID {
			return rows[i].TreeID < rows[j].TreeID
		}
		return rows[i].Left < rows[j].Left
	})
}

// C is shorthand for building expected coordinates in tests.
func C(tree, left, right, level int64) models.Coords {
	return models.Coords{TreeID: tree, Left: left, Right: right, Level: level}
}
