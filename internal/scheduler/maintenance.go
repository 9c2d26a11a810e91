package scheduler

import (
	"context"
	"log/slog"
)

// Maintainer is the store surface maintenance needs.
type Maintainer interface {
	PruneActivities(ctx context.Context, keep int) (int64, error)
	Vacuum(ctx context.Context) error
}

// MaintenanceJobs returns the prune and vacuum jobs for st.
func MaintenanceJobs(st Maintainer, keep int, logger *slog.Logger) []Job {
	if logger == nil {
		logger = slog.Default()
	}
	return []Job{
		{
			Name: "prune-activities",
			Run: func(ctx context.Context) error {
				n, err := st.PruneActivities(ctx, keep)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("activities pruned", slog.Int64("removed", n), slog.Int("keep", keep))
				}
				return nil
			},
		},
		{Name: "vacuum", Run: st.Vacuum},
	}
}
