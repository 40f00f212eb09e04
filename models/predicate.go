package models

import (
	"fmt"
	"strings"
)

// Field names a column of the nodes table that predicates and assignments
// may reference.
type Field string

const (
	FieldID       Field = "id"
	FieldParentID Field = "parent_id"
	FieldTreeID   Field = "tree_id"
	FieldLeft     Field = "lft"
	FieldRight    Field = "rgt"
	FieldLevel    Field = "level"
)

func (f Field) Valid() bool {
	switch f {
	case FieldID, FieldParentID, FieldTreeID, FieldLeft, FieldRight, FieldLevel:
		return true
	}
	return false
}

type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpIn      Op = "IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

// Cond is a single column comparison. Value is unused for OpIsNull and
// OpNotNull, and must be a []int64 or []NodeID for OpIn.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

func Eq(f Field, v any) Cond   { return Cond{Field: f, Op: OpEq, Value: v} }
func Ne(f Field, v any) Cond   { return Cond{Field: f, Op: OpNe, Value: v} }
func Lt(f Field, v int64) Cond { return Cond{Field: f, Op: OpLt, Value: v} }
func Le(f Field, v int64) Cond { return Cond{Field: f, Op: OpLe, Value: v} }
func Gt(f Field, v int64) Cond { return Cond{Field: f, Op: OpGt, Value: v} }
func Ge(f Field, v int64) Cond { return Cond{Field: f, Op: OpGe, Value: v} }
func In(f Field, v any) Cond   { return Cond{Field: f, Op: OpIn, Value: v} }
func IsNull(f Field) Cond      { return Cond{Field: f, Op: OpIsNull} }
func NotNull(f Field) Cond     { return Cond{Field: f, Op: OpNotNull} }

// Unary reports whether the operator takes no value.
func (c Cond) Unary() bool {
	return c.Op == OpIsNull || c.Op == OpNotNull
}

func (c Cond) String() string {
	if c.Unary() {
		return fmt.Sprintf("%s %s", c.Field, c.Op)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Where is a conjunction of conditions. An empty Where matches every row.
type Where []Cond

func (w Where) And(c ...Cond) Where {
	out := make(Where, 0, len(w)+len(c))
	out = append(out, w...)
	return append(out, c...)
}

func (w Where) String() string {
	parts := make([]string, 0, len(w))
	for _, c := range w {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " AND ")
}

// Match evaluates the predicate against an in-memory row.
func (w Where) Match(n *Node) bool {
	for _, c := range w {
		if !c.Match(n) {
			return false
		}
	}
	return true
}

func (c Cond) Match(n *Node) bool {
	if c.Field == FieldParentID {
		switch c.Op {
		case OpIsNull:
			return n.ParentID == nil
		case OpNotNull:
			return n.ParentID != nil
		}
		if n.ParentID == nil {
			return false
		}
	}

	have := n.Get(c.Field)
	switch c.Op {
	case OpIsNull:
		return false
	case OpNotNull:
		return true
	case OpIn:
		for _, v := range Int64s(c.Value) {
			if have == v {
				return true
			}
		}
		return false
	}

	want, ok := AsInt64(c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return have == want
	case OpNe:
		return have != want
	case OpLt:
		return have < want
	case OpLe:
		return have <= want
	case OpGt:
		return have > want
	case OpGe:
		return have >= want
	}
	return false
}

// Get returns the numeric value of f for n. A nil parent reads as zero.
func (n *Node) Get(f Field) int64 {
	switch f {
	case FieldID:
		return int64(n.ID)
	case FieldParentID:
		if n.ParentID == nil {
			return 0
		}
		return int64(*n.ParentID)
	case FieldTreeID:
		return n.TreeID
	case FieldLeft:
		return n.Left
	case FieldRight:
		return n.Right
	case FieldLevel:
		return n.Level
	}
	return 0
}

func (n *Node) set(f Field, v any) {
	if f == FieldParentID {
		switch pv := v.(type) {
		case nil:
			n.ParentID = nil
		case *NodeID:
			if pv == nil {
				n.ParentID = nil
			} else {
				id := *pv
				n.ParentID = &id
			}
		default:
			if i, ok := AsInt64(v); ok {
				id := NodeID(i)
				n.ParentID = &id
			}
		}
		return
	}

	i, _ := AsInt64(v)
	switch f {
	case FieldID:
		n.ID = NodeID(i)
	case FieldTreeID:
		n.TreeID = i
	case FieldLeft:
		n.Left = i
	case FieldRight:
		n.Right = i
	case FieldLevel:
		n.Level = i
	}
}

// AsInt64 unwraps the numeric kinds used in predicates and assignments.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case NodeID:
		return int64(x), true
	case *NodeID:
		if x == nil {
			return 0, false
		}
		return int64(*x), true
	}
	return 0, false
}

// Int64s flattens the value of an OpIn condition.
func Int64s(v any) []int64 {
	switch x := v.(type) {
	case []int64:
		return x
	case []NodeID:
		out := make([]int64, len(x))
		for i, id := range x {
			out[i] = int64(id)
		}
		return out
	}
	return nil
}
