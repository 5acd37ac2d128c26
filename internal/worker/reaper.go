package worker

import (
	"context"
	"time"

	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/storage"
)

const sweepInterval = time.Minute

// Reaper removes finished collages older than the retention window,
// along with their job records so status lookups stop resolving.
type Reaper struct {
	store     jobstore.Store
	artifacts *storage.ArtifactStore
	maxAge    time.Duration
	logger    infra.Logger
}

// NewReaper constructs a reaper with the given retention window.
func NewReaper(store jobstore.Store, artifacts *storage.ArtifactStore, maxAge time.Duration, logger infra.Logger) *Reaper {
	return &Reaper{store: store, artifacts: artifacts, maxAge: maxAge, logger: logger}
}

// Run sweeps once per minute until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	r.logger.Info().Dur("max_age", r.maxAge).Msg("reaper: started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reaper: stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep deletes every expired artifact and its job record. A failure on
// one file is logged and the sweep moves on.
func (r *Reaper) Sweep(ctx context.Context) {
	artifacts, err := r.artifacts.List()
	if err != nil {
		r.logger.Error().Err(err).Msg("reaper: list artifacts failed")
		return
	}

	now := time.Now()
	for _, a := range artifacts {
		if now.Sub(a.ModTime) <= r.maxAge {
			continue
		}
		if err := r.artifacts.Remove(a.JobID); err != nil {
			r.logger.Warn().Err(err).Str("job_id", a.JobID).Msg("reaper: remove artifact failed")
			continue
		}
		if err := r.store.Delete(ctx, a.JobID); err != nil {
			r.logger.Warn().Err(err).Str("job_id", a.JobID).Msg("reaper: delete job record failed")
			continue
		}
		r.logger.Info().Str("job_id", a.JobID).Msg("reaper: removed expired collage")
	}
}
