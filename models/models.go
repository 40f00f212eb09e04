package models

import (
	"fmt"
	"time"
)

type NodeID int64

func (id NodeID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Node is one row of the forest table. TreeID, Left, Right and Level are
// owned by the nestedset engine and must not be written by callers.
type Node struct {
	ID        NodeID    `gorm:"primarykey" json:"id"`
	ParentID  *NodeID   `gorm:"index" json:"parent_id"`
	TreeID    int64     `gorm:"not null;index:idx_nodes_tree_lft,priority:1" json:"tree_id"`
	Left      int64     `gorm:"column:lft;not null;index:idx_nodes_tree_lft,priority:2" json:"lft"`
	Right     int64     `gorm:"column:rgt;not null" json:"rgt"`
	Level     int64     `gorm:"not null" json:"level"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Node) TableName() string {
	return "nodes"
}

func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// Size is the number of nodes in the subtree rooted at n, n included.
func (n *Node) Size() int64 {
	return (n.Right - n.Left + 1) / 2
}

func (n *Node) Coords() Coords {
	return Coords{
		TreeID: n.TreeID,
		Left:   n.Left,
		Right:  n.Right,
		Level:  n.Level,
	}
}

func (n *Node) SetCoords(c Coords) {
	n.TreeID = c.TreeID
	n.Left = c.Left
	n.Right = c.Right
	n.Level = c.Level
}

func (n *Node) String() string {
	return fmt.Sprintf("<Node (%d) tree=%d [%d,%d] level=%d>", n.ID, n.TreeID, n.Left, n.Right, n.Level)
}

type Coords struct {
	TreeID int64 `json:"tree_id"`
	Left   int64 `json:"lft"`
	Right  int64 `json:"rgt"`
	Level  int64 `json:"level"`
}

// Contains reports whether the interval of inner lies within outer in the
// same tree. With inclusive unset, equal bounds do not count.
func (c Coords) Contains(inner Coords, inclusive bool) bool {
	if c.TreeID != inner.TreeID {
		return false
	}
	if inclusive {
		return c.Left <= inner.Left && inner.Right <= c.Right
	}
	return c.Left < inner.Left && inner.Right < c.Right
}

// DraftTree is an unsaved node together with the children that should be
// created beneath it.
type DraftTree struct {
	Node     *Node
	Children []*DraftTree
}

// Count returns the number of nodes in the draft.
func (d *DraftTree) Count() int64 {
	n := int64(1)
	for _, c := range d.Children {
		n += c.Count()
	}
	return n
}

func ID(id int64) *NodeID {
	nid := NodeID(id)
	return &nid
}
