package treeview

import (
	"fmt"
	"strings"

	"github.com/bluesky-social/mptt/models"
	"github.com/xlab/treeprint"
)

// Label is the display name of a node: its Name, or "<Node (id)>" for
// unnamed nodes.
func Label(n *models.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("<Node (%d)>", n.ID)
}

// FieldsFunc returns extra properties to merge into a node's JSON object.
type FieldsFunc func(n *Node) map[string]any

// JQTree renders trees in the {id, label, children} shape the jqTree
// widget loads.
func JQTree(trees []*Node, fields FieldsFunc) []map[string]any {
	out := make([]map[string]any, 0, len(trees))
	for _, t := range trees {
		out = append(out, jqNode(t, fields))
	}
	return out
}

func jqNode(n *Node, fields FieldsFunc) map[string]any {
	obj := map[string]any{
		"id":    n.ID,
		"label": Label(&n.Node),
	}
	if fields != nil {
		for k, v := range fields(n) {
			obj[k] = v
		}
	}
	children := make([]map[string]any, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, jqNode(c, fields))
	}
	obj["children"] = children
	return obj
}

// Render draws trees as text, one block per tree.
func Render(trees []*Node) string {
	var sb strings.Builder
	for _, t := range trees {
		tp := treeprint.NewWithRoot(display(t))
		addChildren(tp, t.Children)
		sb.WriteString(tp.String())
	}
	return sb.String()
}

func addChildren(tp treeprint.Tree, children []*Node) {
	for _, c := range children {
		if len(c.Children) == 0 {
			tp.AddNode(display(c))
			continue
		}
		addChildren(tp.AddBranch(display(c)), c.Children)
	}
}

func display(n *Node) string {
	return fmt.Sprintf("%s [%d,%d]", Label(&n.Node), n.Left, n.Right)
}
