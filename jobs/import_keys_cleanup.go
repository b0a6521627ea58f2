package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeImportKeysCleanup prunes expired batch import idempotency keys.
const TaskTypeImportKeysCleanup = "import:keys_cleanup"

// ImportKeysCleanupPayload carries the retention window for a cleanup run.
type ImportKeysCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// KeyPruner removes idempotency keys older than the retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewImportKeysCleanupTask builds the periodic cleanup task.
func NewImportKeysCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ImportKeysCleanupPayload{Retention: retention})
	if err != nil {
		return nil, fmt.Errorf("marshal cleanup payload: %w", err)
	}
	return asynq.NewTask(TaskTypeImportKeysCleanup, data), nil
}

// ImportKeysCleanupJob runs the idempotency key retention sweep.
type ImportKeysCleanupJob struct {
	pruner KeyPruner
	logger *slog.Logger
}

// NewImportKeysCleanupJob constructs the cleanup job.
func NewImportKeysCleanupJob(pruner KeyPruner, logger *slog.Logger) *ImportKeysCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportKeysCleanupJob{pruner: pruner, logger: logger}
}

// Handle processes TaskTypeImportKeysCleanup tasks.
func (j *ImportKeysCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ImportKeysCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal cleanup payload: %w", asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = 90 * 24 * time.Hour
	}
	tracker := defaultJobMetrics.Track(TaskTypeImportKeysCleanup)
	if err := j.pruner.Cleanup(ctx, payload.Retention); err != nil {
		return tracker.End(fmt.Errorf("prune import keys: %w", err))
	}
	j.logger.Info("import keys pruned", slog.Duration("retention", payload.Retention))
	return tracker.End(nil)
}
