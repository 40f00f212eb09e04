package ticker

import (
	"context"
	"fmt"
	"time"
)

// Periodically runs task once right away and then at every interval until
// ctx is done or the task fails. A zero or negative interval disables the
// loop and Periodically returns nil immediately.
func Periodically(ctx context.Context, interval time.Duration, task func(context.Context) error) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil {
			return fmt.Errorf("periodic task failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
