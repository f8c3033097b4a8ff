package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockScan finds low stock products and raises replenishment orders.
	TaskTypeLowStockScan = "inventory:low_stock_scan"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "inventory:idempotency_cleanup"
)

// ScanPayload carries scheduling metadata for periodic tasks.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
