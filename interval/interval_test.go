package interval

import (
	"testing"

	"github.com/bluesky-social/mptt/internal/testutil"
	"github.com/bluesky-social/mptt/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var C = testutil.C

func run(rows []models.Node, plan ...Shift) {
	for _, s := range plan {
		s.Apply(rows)
	}
}

func find(t *testing.T, rows []models.Node, id models.NodeID) *models.Node {
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i]
		}
	}
	t.Fatalf("node %d not found", id)
	return nil
}

func reparent(t *testing.T, rows []models.Node, id models.NodeID, parent *models.NodeID) {
	models.Apply(find(t, rows, id), models.Set(models.FieldParentID, parent))
}

func assertCoords(t *testing.T, rows []models.Node, want map[models.NodeID]models.Coords) {
	t.Helper()
	have := testutil.Coords(rows)
	for id, c := range want {
		assert.Equal(t, c, have[id], "node %d", id)
	}
}

func TestInsertChild(t *testing.T) {
	rows := testutil.Forest(1)

	parent := find(t, rows, 6)
	c, shift := Insert(parent.Coords())
	assert.Equal(t, C(1, 10, 11, 4), c)

	run(rows, shift)
	n := models.Node{ID: 23, ParentID: models.ID(6)}
	n.SetCoords(c)
	rows = append(rows, n)

	assertCoords(t, rows, map[models.NodeID]models.Coords{
		1:  C(1, 1, 24, 1),
		4:  C(1, 6, 13, 2),
		5:  C(1, 7, 8, 3),
		6:  C(1, 9, 12, 3),
		7:  C(1, 14, 23, 2),
		11: C(1, 20, 21, 4),
		12: C(2, 1, 22, 1),
		23: C(1, 10, 11, 4),
	})
	require.NoError(t, Validate(rows, 1))
}

func TestInsertUnderInnerNode(t *testing.T) {
	rows := testutil.Forest(1)

	c, shift := Insert(find(t, rows, 4).Coords())
	assert.Equal(t, C(1, 11, 12, 3), c)
	assert.Equal(t, 7, shift.Apply(rows))
}

func TestDelete(t *testing.T) {
	rows := testutil.Forest(1)

	where, plan := Delete(find(t, rows, 4).Coords(), false)
	var kept []models.Node
	for _, r := range rows {
		if !where.Match(&r) {
			kept = append(kept, r)
		}
	}
	assert.Len(t, kept, 19)
	run(kept, plan...)

	assertCoords(t, kept, map[models.NodeID]models.Coords{
		1:  C(1, 1, 16, 1),
		2:  C(1, 2, 5, 2),
		7:  C(1, 6, 15, 2),
		8:  C(1, 7, 10, 3),
		9:  C(1, 8, 9, 4),
		10: C(1, 11, 14, 3),
		11: C(1, 12, 13, 4),
	})
	require.NoError(t, Validate(kept, 1))
}

func TestDeleteRoot(t *testing.T) {
	rows := testutil.Forest(1)

	where, plan := Delete(find(t, rows, 12).Coords(), true)
	assert.Empty(t, plan)
	n := 0
	for _, r := range rows {
		if where.Match(&r) {
			n++
		}
	}
	assert.Equal(t, 11, n)
}

func TestMoveWithinTree(t *testing.T) {
	cases := []struct {
		name   string
		node   models.NodeID
		parent models.NodeID
		place  func(rows []models.Node) Placement
		want   map[models.NodeID]models.Coords
	}{
		{
			name:   "after left sibling of parent",
			node:   8,
			parent: 4,
			place: func(rows []models.Node) Placement {
				s := find(t, rows, 5)
				return Placement{TreeID: s.TreeID, Gap: s.Right + 1, Level: s.Level}
			},
			want: map[models.NodeID]models.Coords{
				1: C(1, 1, 22, 1),
				4: C(1, 6, 15, 2),
				5: C(1, 7, 8, 3),
				6: C(1, 13, 14, 3),
				7: C(1, 16, 21, 2),
				8: C(1, 9, 12, 3),
				9: C(1, 10, 11, 4),
			},
		},
		{
			name:   "before uncle",
			node:   8,
			parent: 1,
			place: func(rows []models.Node) Placement {
				s := find(t, rows, 4)
				return Placement{TreeID: s.TreeID, Gap: s.Left, Level: s.Level}
			},
			want: map[models.NodeID]models.Coords{
				8: C(1, 6, 9, 2),
				9: C(1, 7, 8, 3),
				4: C(1, 10, 15, 2),
				5: C(1, 11, 12, 3),
				6: C(1, 13, 14, 3),
				7: C(1, 16, 21, 2),
			},
		},
		{
			name:   "inside a later node",
			node:   4,
			parent: 10,
			place: func(rows []models.Node) Placement {
				p := find(t, rows, 10)
				return Placement{TreeID: p.TreeID, Gap: p.Right, Level: p.Level + 1}
			},
			want: map[models.NodeID]models.Coords{
				1:  C(1, 1, 22, 1),
				7:  C(1, 6, 21, 2),
				8:  C(1, 7, 10, 3),
				10: C(1, 11, 20, 3),
				11: C(1, 12, 13, 4),
				4:  C(1, 14, 19, 4),
				5:  C(1, 15, 16, 5),
				6:  C(1, 17, 18, 5),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := testutil.Forest(1)
			m := find(t, rows, tc.node)
			p := tc.place(rows)
			require.False(t, InPlace(m.Coords(), p))

			run(rows, MoveWithinTree(m.Coords(), p)...)
			reparent(t, rows, tc.node, models.ID(int64(tc.parent)))

			assertCoords(t, rows, tc.want)
			require.NoError(t, Validate(rows, 1))
		})
	}
}

func TestMoveAcrossTrees(t *testing.T) {
	t.Run("last child", func(t *testing.T) {
		rows := testutil.Forest(1)
		m := find(t, rows, 4)
		p := find(t, rows, 15)

		run(rows, MoveAcrossTrees(m.Coords(), Placement{TreeID: 2, Gap: p.Right, Level: p.Level + 1}, true)...)
		reparent(t, rows, 4, models.ID(15))

		assertCoords(t, rows, map[models.NodeID]models.Coords{
			1:  C(1, 1, 16, 1),
			7:  C(1, 6, 15, 2),
			12: C(2, 1, 28, 1),
			15: C(2, 6, 17, 2),
			16: C(2, 7, 8, 3),
			17: C(2, 9, 10, 3),
			4:  C(2, 11, 16, 3),
			5:  C(2, 12, 13, 4),
			6:  C(2, 14, 15, 4),
			18: C(2, 18, 27, 2),
		})
		require.NoError(t, Validate(rows, 1))
	})

	t.Run("first child", func(t *testing.T) {
		rows := testutil.Forest(1)
		m := find(t, rows, 4)
		p := find(t, rows, 15)

		run(rows, MoveAcrossTrees(m.Coords(), Placement{TreeID: 2, Gap: p.Left + 1, Level: p.Level + 1}, true)...)
		reparent(t, rows, 4, models.ID(15))

		assertCoords(t, rows, map[models.NodeID]models.Coords{
			1:  C(1, 1, 16, 1),
			4:  C(2, 7, 12, 3),
			5:  C(2, 8, 9, 4),
			6:  C(2, 10, 11, 4),
			15: C(2, 6, 17, 2),
			16: C(2, 13, 14, 3),
			12: C(2, 1, 28, 1),
		})
		require.NoError(t, Validate(rows, 1))
	})

	t.Run("before node in other tree", func(t *testing.T) {
		rows := testutil.Forest(1)
		m := find(t, rows, 8)
		s := find(t, rows, 15)

		run(rows, MoveAcrossTrees(m.Coords(), Placement{TreeID: 2, Gap: s.Left, Level: s.Level}, true)...)
		reparent(t, rows, 8, models.ID(12))

		assertCoords(t, rows, map[models.NodeID]models.Coords{
			1:  C(1, 1, 18, 1),
			7:  C(1, 12, 17, 2),
			8:  C(2, 6, 9, 2),
			9:  C(2, 7, 8, 3),
			12: C(2, 1, 26, 1),
			15: C(2, 10, 15, 2),
		})
		require.NoError(t, Validate(rows, 1))
	})

	t.Run("whole tree", func(t *testing.T) {
		rows := testutil.Forest(1)
		m := find(t, rows, 12)
		p := find(t, rows, 3)

		run(rows, MoveAcrossTrees(m.Coords(), Placement{TreeID: 1, Gap: p.Right, Level: p.Level + 1}, false)...)
		reparent(t, rows, 12, models.ID(3))

		assertCoords(t, rows, map[models.NodeID]models.Coords{
			1:  C(1, 1, 44, 1),
			3:  C(1, 3, 26, 3),
			12: C(1, 4, 25, 4),
			22: C(1, 21, 22, 7),
			4:  C(1, 28, 33, 2),
		})
		require.NoError(t, Validate(rows, 1))
	})
}

func TestDetach(t *testing.T) {
	rows := testutil.Forest(1)
	m := find(t, rows, 7)

	run(rows, Detach(m.Coords(), 3, 1)...)
	reparent(t, rows, 7, nil)

	assertCoords(t, rows, map[models.NodeID]models.Coords{
		1:  C(1, 1, 12, 1),
		4:  C(1, 6, 11, 2),
		7:  C(3, 1, 10, 1),
		8:  C(3, 2, 5, 2),
		9:  C(3, 3, 4, 3),
		10: C(3, 6, 9, 2),
		11: C(3, 7, 8, 3),
	})
	require.NoError(t, Validate(rows, 1))
}

func TestShiftTrees(t *testing.T) {
	rows := testutil.Forest(1)

	assert.Equal(t, 11, ShiftTrees(2, 1).Apply(rows))
	assert.Equal(t, int64(3), find(t, rows, 12).TreeID)
	assert.Equal(t, int64(1), find(t, rows, 1).TreeID)

	assert.Equal(t, 11, Retag(3, 7).Apply(rows))
	assert.Equal(t, int64(7), find(t, rows, 22).TreeID)
}

func TestInPlace(t *testing.T) {
	rows := testutil.Forest(1)
	c := func(id models.NodeID) models.Coords { return find(t, rows, id).Coords() }

	// last child moved inside its own parent
	assert.True(t, InPlace(c(10), Placement{TreeID: 1, Gap: c(7).Right, Level: 3}))
	// after its left sibling
	assert.True(t, InPlace(c(10), Placement{TreeID: 1, Gap: c(8).Right + 1, Level: 3}))
	// first child moved to first child
	assert.True(t, InPlace(c(8), Placement{TreeID: 1, Gap: c(7).Left + 1, Level: 3}))
	// before its right sibling
	assert.True(t, InPlace(c(8), Placement{TreeID: 1, Gap: c(10).Left, Level: 3}))

	assert.False(t, InPlace(c(8), Placement{TreeID: 1, Gap: c(7).Right, Level: 3}))
	assert.False(t, InPlace(c(8), Placement{TreeID: 2, Gap: 13, Level: 3}))
}
