package interval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bluesky-social/mptt/internal/testutil"
	"github.com/bluesky-social/mptt/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFixture(t *testing.T) {
	require.NoError(t, Validate(testutil.Forest(1), 1))
	require.NoError(t, Validate(testutil.Forest(0), 0))
	require.Error(t, Validate(testutil.Forest(0), 1))
}

func TestValidateDetectsCorruption(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(rows []models.Node)
		reason string
	}{
		{
			name:   "partial overlap",
			mutate: func(rows []models.Node) { rows[4].Right = 12 }, // node 5
			reason: "overlaps",
		},
		{
			name:   "gap in numbering",
			mutate: func(rows []models.Node) { rows[0].Right = 24 },
			reason: "maximum right",
		},
		{
			name:   "wrong level",
			mutate: func(rows []models.Node) { rows[2].Level = 4 }, // node 3
			reason: "level 4 under parent level 2",
		},
		{
			name:   "second root",
			mutate: func(rows []models.Node) { rows[1].ParentID = nil }, // node 2
			reason: "2 roots",
		},
		{
			name:   "wrong parent",
			mutate: func(rows []models.Node) { rows[2].ParentID = models.ID(4) },
			reason: "enclosed by node 2",
		},
		{
			name:   "empty interval",
			mutate: func(rows []models.Node) { rows[2].Right = 3 },
			reason: "not below right",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := testutil.Forest(1)
			tc.mutate(rows)

			err := Validate(rows, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTree))
			assert.Contains(t, err.Error(), tc.reason)
			assert.Contains(t, err.Error(), "tree 1")
			assert.NotContains(t, err.Error(), "tree 2")
		})
	}
}

func TestViolationsThroughWrapping(t *testing.T) {
	rows := testutil.Forest(1)
	rows[4].Right = 12  // node 5, tree 1
	rows[13].Level = 7 // node 14, tree 2

	err := fmt.Errorf("check: %w", fmt.Errorf("%w: %w", errors.New("integrity"), Validate(rows, 1)))
	vs := Violations(err)
	require.NotEmpty(t, vs)

	trees := map[int64]bool{}
	for _, v := range vs {
		trees[v.TreeID] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, trees)
	assert.Nil(t, Violations(nil))
	assert.Nil(t, Violations(errors.New("other")))
}
