package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bluesky-social/mptt/internal/ticker"
	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/nestedset"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auditViolations = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "mptt",
	Subsystem: "audit",
	Name:      "violations",
	Help:      "Broken nested-set invariants found by the last background check",
})

// runAudit checks the whole forest every interval and publishes the
// number of violations. Finding violations does not stop the loop; only
// storage failures do.
func runAudit(ctx context.Context, engine *nestedset.Engine, every time.Duration, logger *slog.Logger) error {
	return ticker.Periodically(ctx, every, func(ctx context.Context) error {
		return audit(ctx, engine, logger)
	})
}

func audit(ctx context.Context, engine *nestedset.Engine, logger *slog.Logger) error {
	err := engine.Check(ctx)
	vs := interval.Violations(err)
	auditViolations.Set(float64(len(vs)))
	switch {
	case err == nil:
		logger.Debug("forest audit passed")
		return nil
	case len(vs) > 0:
		for _, v := range vs {
			logger.Error("forest audit found violation", "tree", v.TreeID, "node", v.Node, "reason", v.Reason)
		}
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}
