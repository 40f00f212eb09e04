package models

import "fmt"

type AssignKind int

const (
	// AssignSet stores Value as-is.
	AssignSet AssignKind = iota
	// AssignAdd stores field + Value.
	AssignAdd
	// AssignReflect stores Value - field. With a zero Value it negates the
	// column, which is how a subtree is parked during a same-tree move.
	AssignReflect
)

func (k AssignKind) String() string {
	switch k {
	case AssignSet:
		return "set"
	case AssignAdd:
		return "add"
	case AssignReflect:
		return "reflect"
	}
	return "unknown"
}

// Assignment is one column update of a bulk UPDATE. When When is non-empty
// the update only applies to rows matching it, other rows keep their
// value. All expressions and When conditions of one update see the
// pre-update row.
type Assignment struct {
	Field Field
	Kind  AssignKind
	Value any
	When  Where
}

func Set(f Field, v any) Assignment {
	return Assignment{Field: f, Kind: AssignSet, Value: v}
}

func Add(f Field, delta int64) Assignment {
	return Assignment{Field: f, Kind: AssignAdd, Value: delta}
}

func Reflect(f Field, around int64) Assignment {
	return Assignment{Field: f, Kind: AssignReflect, Value: around}
}

// If restricts the assignment to rows matching the given conditions.
func (a Assignment) If(c ...Cond) Assignment {
	a.When = a.When.And(c...)
	return a
}

func (a Assignment) String() string {
	s := fmt.Sprintf("%s %s %v", a.Field, a.Kind, a.Value)
	if len(a.When) > 0 {
		s += " when " + a.When.String()
	}
	return s
}

// Apply evaluates the assignments against n in place, reading every
// expression from the row as it was before the call.
func Apply(n *Node, set ...Assignment) {
	orig := *n
	for _, a := range set {
		if len(a.When) > 0 && !a.When.Match(&orig) {
			continue
		}
		switch a.Kind {
		case AssignSet:
			n.set(a.Field, a.Value)
		case AssignAdd:
			d, _ := AsInt64(a.Value)
			n.set(a.Field, orig.Get(a.Field)+d)
		case AssignReflect:
			v, _ := AsInt64(a.Value)
			n.set(a.Field, v-orig.Get(a.Field))
		}
	}
}

type Order struct {
	Field Field
	Desc  bool
}

func Asc(f Field) Order  { return Order{Field: f} }
func Desc(f Field) Order { return Order{Field: f, Desc: true} }

// Query is a row selection against the nodes table. A zero Limit means no
// limit.
type Query struct {
	Where   Where
	OrderBy []Order
	Limit   int
}

// ForestOrder is the (tree_id, level, lft) ordering expected by view
// reconstruction.
var ForestOrder = []Order{Asc(FieldTreeID), Asc(FieldLevel), Asc(FieldLeft)}

// PreOrder sorts rows of each tree in preorder.
var PreOrder = []Order{Asc(FieldTreeID), Asc(FieldLeft)}
