package nodestore

import (
	"testing"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWhere(t *testing.T) {
	assert := assert.New(t)

	c := newCompiler(false)
	s, err := c.where(models.Where{
		models.Eq(models.FieldTreeID, int64(2)),
		models.Ge(models.FieldLeft, 6),
		models.IsNull(models.FieldParentID),
		models.In(models.FieldID, []models.NodeID{4, 5}),
	})
	require.NoError(t, err)
	assert.Equal("tree_id = ? AND lft >= ? AND parent_id IS NULL AND id IN (?, ?)", s)
	assert.Equal([]any{int64(2), int64(6), int64(4), int64(5)}, c.args)

	c = newCompiler(true)
	s, err = c.where(models.Where{
		models.Eq(models.FieldParentID, nil),
		models.Ne(models.FieldID, models.NodeID(3)),
		models.In(models.FieldID, []int64{}),
	})
	require.NoError(t, err)
	assert.Equal("parent_id IS NULL AND id <> $1 AND 1 = 0", s)
	assert.Equal([]any{int64(3)}, c.args)
}

func TestCompileRejectsUnknownField(t *testing.T) {
	c := newCompiler(false)
	_, err := c.where(models.Where{models.Eq(models.Field("name; drop table nodes"), 1)})
	assert.Error(t, err)

	_, err = c.expr(models.Add(models.Field("name"), 1))
	assert.Error(t, err)
}

func TestCompileShift(t *testing.T) {
	assert := assert.New(t)
	shift := interval.OpenGap(1, 10, 2)

	c := newCompiler(true)
	var exprs []string
	for _, a := range shift.Set {
		e, err := c.expr(a)
		require.NoError(t, err)
		exprs = append(exprs, e)
	}
	where, err := c.where(shift.Where)
	require.NoError(t, err)

	assert.Equal([]string{
		"CASE WHEN lft >= $1 THEN lft + $2 ELSE lft END",
		"rgt + $3",
	}, exprs)
	assert.Equal("tree_id = $4 AND rgt >= $5", where)
	assert.Equal([]any{int64(10), int64(2), int64(2), int64(1), int64(10)}, c.args)
}

func TestCompileAssignments(t *testing.T) {
	assert := assert.New(t)

	c := newCompiler(false)
	e, err := c.expr(models.Reflect(models.FieldLeft, -7))
	require.NoError(t, err)
	assert.Equal("? - lft", e)

	e, err = c.expr(models.Set(models.FieldParentID, nil))
	require.NoError(t, err)
	assert.Equal("NULL", e)

	var none *models.NodeID
	e, err = c.expr(models.Set(models.FieldParentID, none))
	require.NoError(t, err)
	assert.Equal("NULL", e)

	e, err = c.expr(models.Set(models.FieldParentID, models.ID(4)))
	require.NoError(t, err)
	assert.Equal("?", e)
	assert.Equal([]any{int64(-7), int64(4)}, c.args)
}

func TestOrderClause(t *testing.T) {
	s, err := orderClause(models.ForestOrder)
	require.NoError(t, err)
	assert.Equal(t, "tree_id ASC, level ASC, lft ASC", s)

	s, err = orderClause([]models.Order{models.Desc(models.FieldLeft)})
	require.NoError(t, err)
	assert.Equal(t, "lft DESC", s)
}
