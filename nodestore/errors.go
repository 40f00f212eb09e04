package nodestore

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/mptt/nestedset"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrGlobalWrite is returned for updates or deletes without a predicate.
var ErrGlobalWrite = errors.New("refusing to write every row")

// translateErr maps storage level serialization failures to
// nestedset.ErrConcurrencyConflict so callers can retry them.
func translateErr(err error) error {
	if err == nil || errors.Is(err, nestedset.ErrConcurrencyConflict) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", nestedset.ErrConcurrencyConflict, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %w", nestedset.ErrConcurrencyConflict, err)
		}
	}
	return err
}
