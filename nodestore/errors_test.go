package nodestore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bluesky-social/mptt/nestedset"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestTranslateErr(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(translateErr(nil))

	busy := fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
	assert.ErrorIs(translateErr(busy), nestedset.ErrConcurrencyConflict)

	serial := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	assert.ErrorIs(translateErr(serial), nestedset.ErrConcurrencyConflict)

	unique := &pgconn.PgError{Code: "23505"}
	assert.NotErrorIs(translateErr(unique), nestedset.ErrConcurrencyConflict)

	other := errors.New("disk on fire")
	assert.Equal(other, translateErr(other))
}
