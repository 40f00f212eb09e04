package nestedset_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/bluesky-social/mptt/internal/testutil"
	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/nestedset"
	"github.com/bluesky-social/mptt/nodestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	t  *testing.T
	db *gorm.DB
	e  *nestedset.Engine
}

func setup(t *testing.T) *testEnv {
	db := testutil.TestDB(t)
	testutil.LoadForest(t, db, 1)

	cfg := nestedset.DefaultConfig()
	cfg.VerifyMutations = true
	return &testEnv{
		t:  t,
		db: db,
		e:  nestedset.NewEngine(nodestore.NewGormStore(db), cfg),
	}
}

func (env *testEnv) rows() []models.Node {
	var rows []models.Node
	require.NoError(env.t, env.db.Order("tree_id, lft").Find(&rows).Error)
	return rows
}

func (env *testEnv) coords() map[models.NodeID]models.Coords {
	return testutil.Coords(env.rows())
}

func (env *testEnv) parent(id models.NodeID) *models.NodeID {
	n, err := env.e.Get(context.Background(), id)
	require.NoError(env.t, err)
	return n.ParentID
}

func (env *testEnv) childIDs(id models.NodeID) []models.NodeID {
	rows, err := env.e.ChildrenOf(context.Background(), id)
	require.NoError(env.t, err)
	return testutil.IDs(rows)
}

func ids(v ...int64) []models.NodeID {
	out := make([]models.NodeID, len(v))
	for i := range v {
		out[i] = models.NodeID(v[i])
	}
	return out
}

func TestInsertLeaf(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	n := &models.Node{Name: "leaf", ParentID: models.ID(6)}
	c, err := env.e.Insert(ctx, n)
	require.NoError(t, err)
	assert.Equal(testutil.C(1, 10, 11, 4), c)
	assert.NotZero(n.ID)

	got := env.coords()
	assert.Equal(testutil.C(1, 10, 11, 4), got[n.ID])
	assert.Equal(testutil.C(1, 9, 12, 3), got[6])
	assert.Equal(testutil.C(1, 6, 13, 2), got[4])
	assert.Equal(testutil.C(1, 14, 23, 2), got[7])
	assert.Equal(testutil.C(1, 16, 17, 4), got[9])
	assert.Equal(testutil.C(1, 20, 21, 4), got[11])
	assert.Equal(testutil.C(1, 1, 24, 1), got[1])
	// tree 2 is untouched
	assert.Equal(testutil.C(2, 1, 22, 1), got[12])
}

func TestInsertRoot(t *testing.T) {
	env := setup(t)
	n := &models.Node{Name: "new"}
	c, err := env.e.Insert(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, testutil.C(3, 1, 2, 1), c)
	assert.Nil(t, env.parent(n.ID))
}

func TestInsertBaseLevelZero(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.LoadForest(t, db, 0)
	cfg := nestedset.DefaultConfig()
	cfg.BaseLevel = 0
	cfg.VerifyMutations = true
	e := nestedset.NewEngine(nodestore.NewGormStore(db), cfg)

	c, err := e.Insert(context.Background(), &models.Node{ParentID: models.ID(11)})
	require.NoError(t, err)
	assert.Equal(t, testutil.C(1, 19, 20, 4), c)

	c, err = e.Insert(context.Background(), &models.Node{})
	require.NoError(t, err)
	assert.Equal(t, testutil.C(3, 1, 2, 0), c)
}

func TestInsertTree(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	child := &models.DraftTree{Node: &models.Node{Name: "b"}}
	draft := &models.DraftTree{
		Node:     &models.Node{Name: "a"},
		Children: []*models.DraftTree{child},
	}
	require.NoError(t, env.e.InsertTree(ctx, models.ID(6), draft))

	got := env.coords()
	assert.Equal(testutil.C(1, 10, 13, 4), got[draft.Node.ID])
	assert.Equal(testutil.C(1, 11, 12, 5), got[child.Node.ID])
	assert.Equal(testutil.C(1, 9, 14, 3), got[6])
	assert.Equal(testutil.C(1, 1, 26, 1), got[1])
	assert.Equal(draft.Node.ID, *env.parent(child.Node.ID))

	leaves := []*models.DraftTree{
		{Node: &models.Node{Name: "x"}},
		{Node: &models.Node{Name: "y"}},
		{Node: &models.Node{Name: "z"}},
	}
	root := &models.DraftTree{Node: &models.Node{Name: "root"}, Children: leaves}
	require.NoError(t, env.e.InsertTree(ctx, nil, root))

	got = env.coords()
	assert.Equal(testutil.C(3, 1, 8, 1), got[root.Node.ID])
	assert.Equal(testutil.C(3, 2, 3, 2), got[leaves[0].Node.ID])
	assert.Equal(testutil.C(3, 6, 7, 2), got[leaves[2].Node.ID])
	assert.Equal([]models.NodeID{leaves[0].Node.ID, leaves[1].Node.ID, leaves[2].Node.ID}, env.childIDs(root.Node.ID))
}

func TestDeleteSubtree(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.e.Delete(ctx, 4))

	got := env.coords()
	assert.Len(got, 19)
	for _, id := range ids(4, 5, 6) {
		assert.NotContains(got, id)
	}
	assert.Equal(testutil.C(1, 1, 16, 1), got[1])
	assert.Equal(testutil.C(1, 2, 5, 2), got[2])
	assert.Equal(testutil.C(1, 6, 15, 2), got[7])
	assert.Equal(testutil.C(1, 8, 9, 4), got[9])
	assert.Equal(testutil.C(1, 12, 13, 4), got[11])
}

func TestDeleteRoot(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.e.Delete(context.Background(), 1))

	got := env.coords()
	assert.Len(t, got, 11)
	assert.Equal(t, testutil.C(2, 1, 22, 1), got[12])
}

func TestNotFound(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.e.Get(ctx, 999)
	assert.ErrorIs(t, err, nestedset.ErrNodeNotFound)

	_, err = env.e.Insert(ctx, &models.Node{ParentID: models.ID(999)})
	assert.ErrorIs(t, err, nestedset.ErrNodeNotFound)

	assert.ErrorIs(t, env.e.Delete(ctx, 999), nestedset.ErrNodeNotFound)
	assert.ErrorIs(t, env.e.Move(ctx, 999, nestedset.Inside(1)), nestedset.ErrNodeNotFound)
	assert.ErrorIs(t, env.e.Move(ctx, 4, nestedset.Inside(999)), nestedset.ErrNodeNotFound)
	assert.ErrorIs(t, env.e.Rebuild(ctx, 42), nestedset.ErrNodeNotFound)
}

func TestMoveAcrossTrees(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)

	require.NoError(t, env.e.Move(context.Background(), 4, nestedset.Inside(15)))

	got := env.coords()
	assert.Equal(testutil.C(2, 1, 28, 1), got[12])
	assert.Equal(testutil.C(2, 6, 17, 2), got[15])
	assert.Equal(testutil.C(2, 11, 16, 3), got[4])
	assert.Equal(testutil.C(2, 12, 13, 4), got[5])
	assert.Equal(testutil.C(2, 14, 15, 4), got[6])
	assert.Equal(testutil.C(2, 18, 27, 2), got[18])
	assert.Equal(testutil.C(1, 1, 16, 1), got[1])
	assert.Equal(testutil.C(1, 6, 15, 2), got[7])
	assert.Equal(models.NodeID(15), *env.parent(4))
	assert.Equal(ids(16, 17, 4), env.childIDs(15))
}

func TestMoveFirstChild(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)

	require.NoError(t, env.e.Move(context.Background(), 7, nestedset.FirstChildOf(1)))

	got := env.coords()
	assert.Equal(testutil.C(1, 2, 11, 2), got[7])
	assert.Equal(testutil.C(1, 4, 5, 4), got[9])
	assert.Equal(testutil.C(1, 12, 15, 2), got[2])
	assert.Equal(testutil.C(1, 16, 21, 2), got[4])
	assert.Equal(testutil.C(1, 1, 22, 1), got[1])
	assert.Equal(ids(7, 2, 4), env.childIDs(1))
}

func TestMoveSiblings(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.e.Move(ctx, 8, nestedset.After(5)))
	assert.Equal(ids(5, 8, 6), env.childIDs(4))
	assert.Equal(ids(10), env.childIDs(7))
	assert.Equal(models.NodeID(4), *env.parent(8))
	assert.Equal(testutil.C(1, 9, 12, 3), env.coords()[8])

	require.NoError(t, env.e.Move(ctx, 10, nestedset.Before(2)))
	assert.Equal(ids(10, 2, 4, 7), env.childIDs(1))
	assert.Equal(ids(11), env.childIDs(10))

	require.NoError(t, env.e.Move(ctx, 11, nestedset.Inside(3)))
	got := env.coords()
	assert.Equal(got[3].Level+1, got[11].Level)
	assert.Equal(ids(11), env.childIDs(3))
}

func TestMoveToRoot(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)

	require.NoError(t, env.e.Move(context.Background(), 7, nestedset.ToRoot()))

	got := env.coords()
	assert.Equal(testutil.C(3, 1, 10, 1), got[7])
	assert.Equal(testutil.C(3, 2, 5, 2), got[8])
	assert.Equal(testutil.C(3, 7, 8, 3), got[11])
	assert.Equal(testutil.C(1, 1, 12, 1), got[1])
	assert.Nil(env.parent(7))
}

func TestMoveBeforeRoot(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.e.Move(ctx, 4, nestedset.Before(1)))
	got := env.coords()
	assert.Equal(testutil.C(1, 1, 6, 1), got[4])
	assert.Equal(testutil.C(1, 2, 3, 2), got[5])
	assert.Equal(testutil.C(2, 1, 16, 1), got[1])
	assert.Equal(testutil.C(3, 1, 22, 1), got[12])
	assert.Nil(env.parent(4))

	// 12 jumps ahead of both other trees
	require.NoError(t, env.e.Move(ctx, 12, nestedset.Before(4)))
	roots, err := env.e.SiblingsOf(ctx, 12, true)
	require.NoError(t, err)
	assert.Equal(ids(12, 4, 1), testutil.IDs(roots))
	require.NoError(t, env.e.Check(ctx))
}

func TestMoveAfterRoot(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.e.Move(ctx, 8, nestedset.After(1)))
	got := env.coords()
	assert.Equal(testutil.C(2, 1, 4, 1), got[8])
	assert.Equal(testutil.C(2, 2, 3, 2), got[9])
	assert.Equal(testutil.C(3, 1, 22, 1), got[12])
	assert.Equal(testutil.C(1, 1, 18, 1), got[1])

	require.NoError(t, env.e.Move(ctx, 1, nestedset.After(12)))
	roots, err := env.e.SiblingsOf(ctx, 8, true)
	require.NoError(t, err)
	assert.Equal(ids(8, 12, 1), testutil.IDs(roots))
}

func TestSwapTrees(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.e.Move(context.Background(), 12, nestedset.Before(1)))

	got := env.coords()
	assert.Equal(t, testutil.C(1, 1, 22, 1), got[12])
	assert.Equal(t, testutil.C(2, 1, 22, 1), got[1])
	assert.Equal(t, int64(1), got[22].TreeID)
	assert.Equal(t, int64(2), got[11].TreeID)
}

func TestWholeTreeIntoAnother(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)

	require.NoError(t, env.e.Move(context.Background(), 12, nestedset.Inside(3)))

	got := env.coords()
	assert.Len(got, 22)
	assert.Equal(testutil.C(1, 1, 44, 1), got[1])
	assert.Equal(testutil.C(1, 4, 25, 4), got[12])
	assert.Equal(models.NodeID(3), *env.parent(12))
	for _, c := range got {
		assert.Equal(int64(1), c.TreeID)
	}
}

func TestNoopMoves(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	before := env.coords()

	for _, tc := range []struct {
		id   models.NodeID
		dest nestedset.Destination
	}{
		{8, nestedset.Before(10)},
		{10, nestedset.After(8)},
		{11, nestedset.Inside(10)},
		{5, nestedset.FirstChildOf(4)},
		{12, nestedset.ToRoot()},
		{1, nestedset.Before(12)},
		{12, nestedset.After(1)},
	} {
		require.NoError(t, env.e.Move(ctx, tc.id, tc.dest), "%d %s", tc.id, tc.dest)
		assert.Equal(t, before, env.coords(), "%d %s", tc.id, tc.dest)
	}
}

func TestInvalidMoves(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	before := env.coords()

	assert.ErrorIs(t, env.e.Move(ctx, 4, nestedset.Inside(4)), nestedset.ErrInvalidMove)
	assert.ErrorIs(t, env.e.Move(ctx, 4, nestedset.Before(4)), nestedset.ErrInvalidMove)
	assert.ErrorIs(t, env.e.Move(ctx, 1, nestedset.Inside(9)), nestedset.ErrInvalidMove)
	assert.ErrorIs(t, env.e.Move(ctx, 7, nestedset.After(11)), nestedset.ErrInvalidMove)
	assert.Equal(t, before, env.coords())
}

func TestMoveRoundTrip(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	before := env.coords()

	require.NoError(t, env.e.Move(ctx, 4, nestedset.Inside(15)))
	require.NoError(t, env.e.Move(ctx, 4, nestedset.After(2)))
	assert.Equal(t, before, env.coords())

	require.NoError(t, env.e.Move(ctx, 8, nestedset.ToRoot()))
	require.NoError(t, env.e.Move(ctx, 8, nestedset.FirstChildOf(7)))
	assert.Equal(t, before, env.coords())
}

func TestRebuild(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	before := env.coords()

	require.NoError(t, env.db.Model(&models.Node{}).Where("tree_id = ?", 1).
		Updates(map[string]any{"lft": 0, "rgt": 0, "level": 0}).Error)
	assert.ErrorIs(t, env.e.Check(ctx, 1), nestedset.ErrIntegrityViolation)

	require.NoError(t, env.e.Rebuild(ctx, 1))
	assert.Equal(t, before, env.coords())
	require.NoError(t, env.e.Check(ctx))

	// a second pass changes nothing
	require.NoError(t, env.e.Rebuild(ctx, 1))
	assert.Equal(t, before, env.coords())
}

func TestRebuildAll(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	before := env.coords()

	require.NoError(t, env.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&models.Node{}).
		Updates(map[string]any{"lft": 0, "rgt": 0, "level": 0}).Error)
	require.NoError(t, env.e.RebuildAll(ctx))
	assert.Equal(t, before, env.coords())
}

func TestRebuildRejectsBrokenLinks(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.db.Model(&models.Node{}).Where("id = ?", 4).Update("parent_id", nil).Error)
	assert.ErrorIs(t, env.e.Rebuild(context.Background(), 1), nestedset.ErrIntegrityViolation)
}

func TestCheckReportsCorruption(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.e.Check(ctx))
	require.NoError(t, env.db.Model(&models.Node{}).Where("id = ?", 5).Update("rgt", 9).Error)

	err := env.e.Check(ctx)
	assert.ErrorIs(t, err, nestedset.ErrIntegrityViolation)
	assert.NoError(t, env.e.Check(ctx, 2))
}

func TestQueries(t *testing.T) {
	assert := assert.New(t)
	env := setup(t)
	ctx := context.Background()

	assert.Equal(ids(8, 10), env.childIDs(7))

	path, err := env.e.PathToRoot(ctx, 11, false)
	require.NoError(t, err)
	assert.Equal(ids(1, 7, 10, 11), testutil.IDs(path))

	path, err = env.e.PathToRoot(ctx, 11, true)
	require.NoError(t, err)
	assert.Equal(ids(11, 10, 7, 1), testutil.IDs(path))

	anc, err := env.e.Ancestors(ctx, 11, false)
	require.NoError(t, err)
	assert.Equal(ids(1, 7, 10), testutil.IDs(anc))

	desc, err := env.e.Descendants(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(ids(8, 9, 10, 11), testutil.IDs(desc))

	sib, err := env.e.SiblingsOf(ctx, 4, false)
	require.NoError(t, err)
	assert.Equal(ids(2, 7), testutil.IDs(sib))

	left, err := env.e.LeftSiblingInLevel(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, left)
	assert.Equal(models.NodeID(8), left.ID)

	left, err = env.e.LeftSiblingInLevel(ctx, 2)
	require.NoError(t, err)
	assert.Nil(left)

	forest, err := env.e.Forest(ctx, nil)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(models.NodeID(12), forest[1].ID)
	assert.Len(forest[0].Children, 3)

	one, err := env.e.Forest(ctx, []int64{2})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(models.NodeID(12), one[0].ID)

	sub, err := env.e.DrilldownTree(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.Equal(models.NodeID(7), sub[0].ID)
	assert.Equal(models.NodeID(9), sub[0].Children[0].Children[0].ID)
}

func TestConcurrentInserts(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 40 {
		parent := models.NodeID(1 + (i%2)*11)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.e.Insert(ctx, &models.Node{ParentID: &parent})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, env.e.Check(ctx))
	assert.Len(t, env.coords(), 62)
	assert.Len(t, env.childIDs(1), 23)
}

// TestRandomOperations applies a long random sequence of mutations with
// verification on, so any step that breaks a tree fails immediately.
func TestRandomOperations(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	live := func() []models.NodeID {
		return testutil.IDs(env.rows())
	}
	pick := func(from []models.NodeID) models.NodeID {
		return from[rng.Intn(len(from))]
	}

	for step := range 300 {
		nodes := live()
		switch op := rng.Intn(10); {
		case op < 3 || len(nodes) < 4:
			var parent *models.NodeID
			if rng.Intn(5) > 0 && len(nodes) > 0 {
				parent = models.ID(int64(pick(nodes)))
			}
			_, err := env.e.Insert(ctx, &models.Node{ParentID: parent})
			require.NoError(t, err, "step %d", step)
		case op < 4:
			require.NoError(t, env.e.Delete(ctx, pick(nodes)), "step %d", step)
		default:
			id := pick(nodes)
			var dest nestedset.Destination
			switch rng.Intn(5) {
			case 0:
				dest = nestedset.Inside(pick(nodes))
			case 1:
				dest = nestedset.FirstChildOf(pick(nodes))
			case 2:
				dest = nestedset.Before(pick(nodes))
			case 3:
				dest = nestedset.After(pick(nodes))
			default:
				dest = nestedset.ToRoot()
			}
			err := env.e.Move(ctx, id, dest)
			if err != nil {
				require.ErrorIs(t, err, nestedset.ErrInvalidMove, "step %d: move %d %s", step, id, dest)
			}
		}
	}
	require.NoError(t, env.e.Check(ctx))
}
