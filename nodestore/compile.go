package nodestore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluesky-social/mptt/models"
)

// compiler renders predicates and assignments to SQL. Values are always
// bound as parameters; field names come from a fixed set.
type compiler struct {
	numbered bool
	args     []any
}

func newCompiler(numbered bool) *compiler {
	return &compiler{numbered: numbered}
}

func (c *compiler) bind(v any) string {
	if i, ok := models.AsInt64(v); ok {
		v = i
	}
	c.args = append(c.args, v)
	if c.numbered {
		return "$" + strconv.Itoa(len(c.args))
	}
	return "?"
}

func column(f models.Field) (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return string(f), nil
}

func (c *compiler) where(w models.Where) (string, error) {
	parts := make([]string, 0, len(w))
	for _, cond := range w {
		s, err := c.cond(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

func (c *compiler) cond(cond models.Cond) (string, error) {
	col, err := column(cond.Field)
	if err != nil {
		return "", err
	}

	switch cond.Op {
	case models.OpIsNull, models.OpNotNull:
		return col + " " + string(cond.Op), nil
	case models.OpIn:
		vals := models.Int64s(cond.Value)
		if len(vals) == 0 {
			return "1 = 0", nil
		}
		phs := make([]string, len(vals))
		for i, v := range vals {
			phs[i] = c.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(phs, ", ")), nil
	case models.OpEq, models.OpNe:
		if cond.Value == nil {
			if cond.Op == models.OpEq {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
	case models.OpLt, models.OpLe, models.OpGt, models.OpGe:
	default:
		return "", fmt.Errorf("unsupported operator %q", cond.Op)
	}
	return fmt.Sprintf("%s %s %s", col, cond.Op, c.bind(cond.Value)), nil
}

// expr renders the new value of an assignment's column.
func (c *compiler) expr(a models.Assignment) (string, error) {
	col, err := column(a.Field)
	if err != nil {
		return "", err
	}

	// the condition is rendered first so that positional placeholders
	// bind in the order they appear
	var when string
	if len(a.When) > 0 {
		if when, err = c.where(a.When); err != nil {
			return "", err
		}
	}

	var val string
	switch a.Kind {
	case models.AssignSet:
		if isNull(a.Value) {
			val = "NULL"
		} else {
			val = c.bind(a.Value)
		}
	case models.AssignAdd:
		val = fmt.Sprintf("%s + %s", col, c.bind(a.Value))
	case models.AssignReflect:
		val = fmt.Sprintf("%s - %s", c.bind(a.Value), col)
	default:
		return "", fmt.Errorf("unsupported assignment %v", a.Kind)
	}

	if when == "" {
		return val, nil
	}
	return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", when, val, col), nil
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	p, ok := v.(*models.NodeID)
	return ok && p == nil
}

func orderClause(orders []models.Order) (string, error) {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		col, err := column(o.Field)
		if err != nil {
			return "", err
		}
		if o.Desc {
			parts = append(parts, col+" DESC")
		} else {
			parts = append(parts, col+" ASC")
		}
	}
	return strings.Join(parts, ", "), nil
}
