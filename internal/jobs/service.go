// Package jobs admits collage generation requests: validation, scratch
// staging, record creation and enqueueing.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/storage"
)

// CreateRequest is a submission as received from the transport layer.
// Images are ordered; order is preserved through the whole pipeline.
type CreateRequest struct {
	Images      []string `json:"images"`
	Style       string   `json:"style"`
	AspectRatio string   `json:"aspect_ratio"`
}

// Service owns job admission and status reads.
type Service struct {
	store     jobstore.Store
	scratch   *storage.ScratchStore
	expiry    time.Duration
	maxQueued int
	logger    infra.Logger
}

// NewService constructs the submission service. expiry is the result
// expiry window; job records receive twice that as their TTL so a late
// status poll still observes the terminal state after the artifact is gone.
func NewService(store jobstore.Store, scratch *storage.ScratchStore, expiry time.Duration, maxQueued int, logger infra.Logger) *Service {
	return &Service{
		store:     store,
		scratch:   scratch,
		expiry:    expiry,
		maxQueued: maxQueued,
		logger:    logger,
	}
}

// Create validates a submission and, on acceptance, stages its images,
// persists the queued record and enqueues the job id. Rejections are
// *AdmissionError values; anything else is a server-side failure.
//
// The queue-length check is advisory: it is not atomic with the enqueue,
// so concurrent submissions can briefly overshoot the limit. Accepted
// approximation, not a bug.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	queued, err := s.store.QueueLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobs: queue length: %w", err)
	}
	if queued >= int64(s.maxQueued) {
		return nil, reject(ReasonQueueFull, fmt.Sprintf("server busy (%d jobs queued), try again later", queued))
	}

	if len(req.Images) < domain.MinImages {
		return nil, reject(ReasonTooFewImages, fmt.Sprintf("at least %d images required", domain.MinImages))
	}
	if len(req.Images) > domain.MaxImages {
		return nil, reject(ReasonTooManyImages, fmt.Sprintf("maximum %d images allowed", domain.MaxImages))
	}

	var total int
	for i, img := range req.Images {
		size := len(img)
		if size > domain.MaxImageBytes {
			return nil, reject(ReasonImageTooLarge, fmt.Sprintf("image %d too large (%dMB), max %dMB",
				i+1, size>>20, domain.MaxImageBytes>>20))
		}
		total += size
	}
	if total > domain.MaxTotalBytes {
		return nil, reject(ReasonPayloadTooLarge, fmt.Sprintf("total payload too large (%dMB), max %dMB",
			total>>20, domain.MaxTotalBytes>>20))
	}

	style := req.Style
	if style == "" {
		style = domain.DefaultStyle
	}
	if _, ok := domain.StylePresets[style]; !ok {
		return nil, reject(ReasonUnknownStyle, fmt.Sprintf("invalid style %q, available: %s",
			style, strings.Join(domain.StyleKeys(), ", ")))
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = domain.DefaultAspectRatio
	}
	if _, ok := domain.AspectRatios[aspect]; !ok {
		return nil, reject(ReasonUnknownAspectRatio, fmt.Sprintf("invalid aspect ratio %q, available: %s",
			aspect, strings.Join(domain.AspectRatioKeys(), ", ")))
	}

	id := uuid.NewString()

	// Inputs must be durably staged before the record exists anywhere;
	// StageInputs removes its partial directory on failure.
	paths, err := s.scratch.StageInputs(id, req.Images)
	if err != nil {
		return nil, fmt.Errorf("jobs: stage inputs: %w", err)
	}

	job := &domain.Job{
		ID:          id,
		Status:      domain.StatusQueued,
		ImagePaths:  paths,
		ImageDir:    s.scratch.JobDir(id),
		Style:       style,
		AspectRatio: aspect,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Put(ctx, job, 2*s.expiry); err != nil {
		_ = s.scratch.RemoveJob(id)
		return nil, fmt.Errorf("jobs: persist record: %w", err)
	}
	if err := s.store.Enqueue(ctx, id); err != nil {
		_ = s.store.Delete(ctx, id)
		_ = s.scratch.RemoveJob(id)
		return nil, fmt.Errorf("jobs: enqueue: %w", err)
	}

	s.logger.Info().
		Str("job_id", id).
		Int("images", len(req.Images)).
		Str("style", style).
		Str("aspect_ratio", aspect).
		Msg("jobs: submission accepted")

	return job, nil
}

// Get returns the stored record; jobstore.ErrNotFound once the TTL
// expired it or it never existed.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Get(ctx, id)
}
