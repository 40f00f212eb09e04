// Package nestedset maintains forests of trees stored as nested-set rows.
//
// Every public mutation runs as one store transaction. Mutations on the
// same tree are serialized in-process; operations that allocate or
// renumber tree ids take a forest-wide lock.
package nestedset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("nestedset")

// Engine applies nested-set mutations and queries to a Store.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger

	forest sync.RWMutex
	trees  *xsync.MapOf[int64, *sync.Mutex]
}

// NewEngine returns an engine over store, filling in defaults for an unset
// logger and parallelism.
func NewEngine(store Store, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RebuildParallelism < 1 {
		cfg.RebuildParallelism = 1
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		logger: cfg.Logger.With("system", "nestedset"),
		trees:  xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// scope is the set of trees an operation holds locks for.
type scope struct {
	exclusive bool
	tree      int64
}

func forestScope() scope {
	return scope{exclusive: true}
}

func treeScope(tree int64) scope {
	return scope{tree: tree}
}

func (s scope) covers(tree int64) bool {
	return s.exclusive || s.tree == tree
}

func (s scope) check(tree int64) error {
	if !s.covers(tree) {
		return fmt.Errorf("%w: tree %d changed while waiting for tree %d", ErrConcurrencyConflict, tree, s.tree)
	}
	return nil
}

func (e *Engine) acquire(s scope) (release func()) {
	if s.exclusive {
		e.forest.Lock()
		return e.forest.Unlock
	}
	e.forest.RLock()
	mu, _ := e.trees.LoadOrCompute(s.tree, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return func() {
		mu.Unlock()
		e.forest.RUnlock()
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNodeNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidMove):
		return "invalid"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrIntegrityViolation):
		return "integrity"
	default:
		return "error"
	}
}

// observe wraps an operation with a span, metrics and error logging.
func (e *Engine) observe(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := statusOf(err)
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if status == "integrity" || status == "error" {
			e.logger.Error("nested set operation failed", "op", op, "err", err)
		} else {
			e.logger.Debug("nested set operation rejected", "op", op, "status", status, "err", err)
		}
	}
	return err
}

func (e *Engine) apply(ctx context.Context, tx Tx, op string, plan ...interval.Shift) error {
	for _, s := range plan {
		n, err := tx.UpdateWhere(ctx, s.Where, s.Set...)
		if err != nil {
			return fmt.Errorf("%s shift (%s): %w", op, s, err)
		}
		rowsShifted.WithLabelValues(op).Add(float64(n))
		e.logger.Debug("applied shift", "op", op, "shift", s.String(), "rows", n)
	}
	return nil
}

// peek reads the given nodes in a short transaction of its own, to decide
// which locks an operation needs. Everything read here is read again once
// the locks are held.
func (e *Engine) peek(ctx context.Context, ids ...models.NodeID) (map[models.NodeID]models.Node, error) {
	out := make(map[models.NodeID]models.Node, len(ids))
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		rows, err := tx.Select(ctx, models.Query{
			Where: models.Where{models.In(models.FieldID, ids)},
		})
		if err != nil {
			return err
		}
		for _, r := range rows {
			out[r.ID] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
	}
	return out, nil
}

func getNode(ctx context.Context, tx Tx, id models.NodeID) (*models.Node, error) {
	rows, err := tx.Select(ctx, models.Query{
		Where: models.Where{models.Eq(models.FieldID, id)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("loading node %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return &rows[0], nil
}

func maxTreeID(ctx context.Context, tx Tx) (int64, error) {
	rows, err := tx.Select(ctx, models.Query{
		OrderBy: []models.Order{models.Desc(models.FieldTreeID)},
		Limit:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("finding last tree: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].TreeID, nil
}

func treeExists(ctx context.Context, tx Tx, tree int64) (bool, error) {
	rows, err := tx.Select(ctx, models.Query{
		Where: models.Where{models.Eq(models.FieldTreeID, tree)},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func setParent(ctx context.Context, tx Tx, id models.NodeID, parent *models.NodeID) error {
	var v any
	if parent != nil {
		v = *parent
	}
	if _, err := tx.UpdateWhere(ctx,
		models.Where{models.Eq(models.FieldID, id)},
		models.Set(models.FieldParentID, v),
	); err != nil {
		return fmt.Errorf("updating parent of %d: %w", id, err)
	}
	return nil
}

// verify validates the listed trees when VerifyMutations is set.
func (e *Engine) verify(ctx context.Context, tx Tx, trees ...int64) error {
	if !e.cfg.VerifyMutations {
		return nil
	}
	return e.checkTrees(ctx, tx, trees...)
}

func (e *Engine) checkTrees(ctx context.Context, tx Tx, trees ...int64) error {
	q := models.Query{OrderBy: models.PreOrder}
	if len(trees) > 0 {
		q.Where = models.Where{models.In(models.FieldTreeID, trees)}
	}
	rows, err := tx.Select(ctx, q)
	if err != nil {
		return err
	}
	if err := interval.Validate(rows, e.cfg.BaseLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}
	return nil
}
