// Package worker contains the job processor loop and the expiry reaper.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"server/internal/domain"
	"server/internal/imageprep"
	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/storage"
	"server/internal/synthesis"
)

const (
	// dequeueTimeout bounds shutdown latency: the claim loop re-checks the
	// cancellation signal after every blocked dequeue attempt.
	dequeueTimeout  = 5 * time.Second
	storeRetryDelay = 5 * time.Second
)

// Processor claims queued jobs one at a time and runs them through the
// pipeline: normalize inputs, upload, generate, download, persist. Each
// claimed job is processed start-to-finish before the next dequeue.
type Processor struct {
	store     jobstore.Store
	gateway   synthesis.Gateway
	scratch   *storage.ScratchStore
	artifacts *storage.ArtifactStore
	expiry    time.Duration
	baseURL   string
	logger    infra.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(store jobstore.Store, gateway synthesis.Gateway, scratch *storage.ScratchStore, artifacts *storage.ArtifactStore, expiry time.Duration, baseURL string, logger infra.Logger) *Processor {
	return &Processor{
		store:     store,
		gateway:   gateway,
		scratch:   scratch,
		artifacts: artifacts,
		expiry:    expiry,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Run is the claim loop. It returns once ctx is cancelled; an in-flight
// job always finishes first.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("worker: shutdown complete")
			return
		default:
		}

		id, err := p.store.DequeueBlocking(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, jobstore.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			// Store unreachable: back off briefly rather than spin or crash.
			p.logger.Error().Err(err).Msg("worker: dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(storeRetryDelay):
			}
			continue
		}

		p.logger.Info().Str("job_id", id).Msg("worker: starting job")
		p.runJob(ctx, id)
	}
}

// runJob shields the claim loop from panics inside a single job.
func (p *Processor) runJob(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("job_id", id).Interface("panic", r).Msg("worker: job panicked")
			p.markFailed(ctx, id, fmt.Sprintf("internal error: %v", r))
		}
	}()
	p.processJob(ctx, id)
}

func (p *Processor) processJob(ctx context.Context, id string) {
	// Scratch inputs are owned by this job and removed on every exit
	// path, including panics unwinding through here.
	defer func() {
		if err := p.scratch.RemoveJob(id); err != nil {
			p.logger.Warn().Err(err).Str("job_id", id).Msg("worker: scratch cleanup failed")
		}
	}()

	job, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			// Record TTL already expired it; nothing to do.
			p.logger.Warn().Str("job_id", id).Msg("worker: job record missing, skipping")
		} else {
			p.logger.Error().Err(err).Str("job_id", id).Msg("worker: load job failed")
		}
		return
	}

	if err := p.execute(ctx, job); err != nil {
		p.logger.Error().Err(err).Str("job_id", id).Msg("worker: job failed")
		p.markFailed(ctx, id, err.Error())
		return
	}
	p.logger.Info().Str("job_id", id).Msg("worker: job completed")
}

// execute runs pipeline steps in order, updating progress as it goes. Any
// error aborts this job only; there are no retries.
func (p *Processor) execute(ctx context.Context, job *domain.Job) error {
	p.setProgress(ctx, job.ID, "Optimizing images...")

	n := len(job.ImagePaths)
	optimized := make([][]byte, 0, n)
	for i, path := range job.ImagePaths {
		p.setProgress(ctx, job.ID, fmt.Sprintf("Optimizing image %d/%d...", i+1, n))
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read staged image %d: %w", i+1, err)
		}
		raw, err := imageprep.DecodePayload(payload)
		if err != nil {
			return fmt.Errorf("decode image %d: %w", i+1, err)
		}
		out, err := imageprep.Normalize(raw)
		if err != nil {
			return fmt.Errorf("optimize image %d: %w", i+1, err)
		}
		optimized = append(optimized, out)
		p.logger.Debug().
			Str("job_id", job.ID).
			Int("image", i+1).
			Int("in_kb", len(raw)>>10).
			Int("out_kb", len(out)>>10).
			Msg("worker: optimized image")
	}

	p.setProgress(ctx, job.ID, "Uploading images...")
	urls := make([]string, 0, n)
	for i, data := range optimized {
		p.setProgress(ctx, job.ID, fmt.Sprintf("Uploading image %d/%d...", i+1, n))
		url, err := p.gateway.Upload(ctx, data, "image/jpeg")
		if err != nil {
			return fmt.Errorf("upload image %d: %w", i+1, err)
		}
		urls = append(urls, url)
	}

	preset := domain.StyleFor(job.Style)

	p.setProgress(ctx, job.ID, "Generating collage...")
	p.logger.Info().
		Str("job_id", job.ID).
		Int("images", len(urls)).
		Str("style", job.Style).
		Msg("worker: calling synthesis service")
	resultURL, err := p.gateway.Generate(ctx, synthesis.GenerateRequest{
		Prompt:       preset.Prompt,
		ImageURLs:    urls,
		AspectRatio:  job.AspectRatio,
		Resolution:   "2K",
		OutputFormat: "png",
		NumImages:    1,
	})
	if err != nil {
		return fmt.Errorf("generate collage: %w", err)
	}

	p.setProgress(ctx, job.ID, "Downloading result...")
	data, err := p.gateway.Fetch(ctx, resultURL)
	if err != nil {
		return fmt.Errorf("download result: %w", err)
	}

	path, err := p.artifacts.Write(job.ID, data)
	if err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	p.logger.Info().
		Str("job_id", job.ID).
		Str("path", path).
		Int("kb", len(data)>>10).
		Msg("worker: saved result")

	expiresAt := time.Now().UTC().Add(p.expiry)
	imageURL := fmt.Sprintf("%s/output/%s.png", p.baseURL, job.ID)
	return p.store.Update(ctx, job.ID, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.StatusDetail = ""
		j.ImageURL = imageURL
		j.ExpiresAt = expiresAt.Format(time.RFC3339)
	})
}

func (p *Processor) setProgress(ctx context.Context, id, detail string) {
	err := p.store.Update(ctx, id, func(j *domain.Job) {
		j.Status = domain.StatusProcessing
		j.StatusDetail = detail
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("job_id", id).Msg("worker: progress update failed")
	}
}

func (p *Processor) markFailed(ctx context.Context, id, message string) {
	err := p.store.Update(ctx, id, func(j *domain.Job) {
		j.Status = domain.StatusFailed
		j.StatusDetail = ""
		j.Error = message
	})
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", id).Msg("worker: mark failed failed")
	}
}
