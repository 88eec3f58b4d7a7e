package service

import (
	"context"
	"time"

	dErrors "steward/pkg/domain-errors"
)

// Scheduler triggers recurring audit runs. It owns no state beyond the
// interval; every tick is an ordinary run and shows up in the run history
// like a manual one.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	dryRun   bool
}

// NewScheduler builds a scheduler over the full enabled policy set.
func NewScheduler(svc *Service, interval time.Duration, dryRun bool) *Scheduler {
	return &Scheduler{svc: svc, interval: interval, dryRun: dryRun}
}

// Run blocks until ctx is cancelled, starting one audit run per interval.
// A tick that loses the remediation lock to a manual run is skipped, not
// retried; the next tick picks the work back up.
func (sch *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := sch.svc.RunAudit(ctx, RunRequest{DryRun: sch.dryRun})
			if err != nil {
				level := sch.svc.logger.Error
				if isConflict(err) {
					level = sch.svc.logger.Info
				}
				level("scheduled audit run not started", "error", err)
				continue
			}
			sch.svc.logger.Info("scheduled audit run finished",
				"run_id", run.ID,
				"status", run.Status,
				"findings", len(run.Findings),
			)
		}
	}
}

func isConflict(err error) bool {
	return dErrors.CodeOf(err) == dErrors.CodeConflict
}
