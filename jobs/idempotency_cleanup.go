package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solemart/solemart/internal/shared"
)

// NewIdempotencyCleanupHandler prunes idempotency keys past the retention
// window so the table does not grow without bound.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
		return nil
	}
}
