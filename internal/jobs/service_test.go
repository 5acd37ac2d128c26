package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/jobstore"
	"server/internal/storage"
)

func newTestService(t *testing.T) (*Service, *jobstore.MemoryStore, string) {
	t.Helper()
	store := jobstore.NewMemoryStore()
	scratchDir := t.TempDir()
	scratch, err := storage.NewScratchStore(scratchDir)
	if err != nil {
		t.Fatalf("NewScratchStore: %v", err)
	}
	svc := NewService(store, scratch, 30*time.Minute, domain.DefaultMaxQueuedJobs, zerolog.New(io.Discard))
	return svc, store, scratchDir
}

func validRequest() CreateRequest {
	return CreateRequest{
		Images:      []string{"payload-a", "payload-b"},
		Style:       "fridge",
		AspectRatio: "16:9",
	}
}

func scratchEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	return len(entries)
}

func TestCreateAcceptsValidSubmission(t *testing.T) {
	ctx := context.Background()
	svc, store, scratchDir := newTestService(t)

	job, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
	if job.ID == "" {
		t.Fatal("job id empty")
	}
	if len(job.ImagePaths) != 2 {
		t.Fatalf("ImagePaths = %#v, want 2 entries", job.ImagePaths)
	}

	// Record is readable and queued id is claimable.
	stored, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored.Status != domain.StatusQueued {
		t.Fatalf("stored status = %q", stored.Status)
	}
	id, err := store.DequeueBlocking(ctx, time.Second)
	if err != nil || id != job.ID {
		t.Fatalf("DequeueBlocking = %q, %v, want %q", id, err, job.ID)
	}

	// Staged payloads are on disk, in order, verbatim.
	for i, want := range []string{"payload-a", "payload-b"} {
		data, err := os.ReadFile(job.ImagePaths[i])
		if err != nil {
			t.Fatalf("ReadFile staged input %d: %v", i, err)
		}
		if string(data) != want {
			t.Fatalf("staged input %d = %q, want %q", i, data, want)
		}
	}
	if scratchEntries(t, scratchDir) != 1 {
		t.Fatal("expected exactly one scratch job directory")
	}
}

func TestCreateBackpressure(t *testing.T) {
	ctx := context.Background()
	svc, store, scratchDir := newTestService(t)

	for i := 0; i < domain.DefaultMaxQueuedJobs; i++ {
		if err := store.Enqueue(ctx, fmt.Sprintf("pending-%d", i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	_, err := svc.Create(ctx, validRequest())
	var adm *AdmissionError
	if !errors.As(err, &adm) || adm.Reason != ReasonQueueFull {
		t.Fatalf("Create = %v, want queue_full rejection", err)
	}

	n, err := store.QueueLength(ctx)
	if err != nil || n != int64(domain.DefaultMaxQueuedJobs) {
		t.Fatalf("queue length = %d, %v, want unchanged %d", n, err, domain.DefaultMaxQueuedJobs)
	}
	if scratchEntries(t, scratchDir) != 0 {
		t.Fatal("rejected submission left scratch files behind")
	}
}

func TestCreateRejectionsLeaveNoTrace(t *testing.T) {
	oversized := strings.Repeat("x", domain.MaxImageBytes+1)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		reason Reason
	}{
		{"too few images", func(r *CreateRequest) { r.Images = r.Images[:domain.MinImages-1] }, ReasonTooFewImages},
		{"too many images", func(r *CreateRequest) {
			r.Images = make([]string, domain.MaxImages+1)
			for i := range r.Images {
				r.Images[i] = "img"
			}
		}, ReasonTooManyImages},
		{"image too large", func(r *CreateRequest) { r.Images = []string{"small", oversized} }, ReasonImageTooLarge},
		{"unknown style", func(r *CreateRequest) { r.Style = "vaporwave" }, ReasonUnknownStyle},
		{"unknown aspect ratio", func(r *CreateRequest) { r.AspectRatio = "4:3" }, ReasonUnknownAspectRatio},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			svc, store, scratchDir := newTestService(t)

			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Create(ctx, req)
			var adm *AdmissionError
			if !errors.As(err, &adm) {
				t.Fatalf("Create = %v, want AdmissionError", err)
			}
			if adm.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", adm.Reason, tc.reason)
			}

			if n, _ := store.QueueLength(ctx); n != 0 {
				t.Fatalf("queue length = %d after rejection", n)
			}
			if scratchEntries(t, scratchDir) != 0 {
				t.Fatal("rejection left scratch files behind")
			}
		})
	}
}

func TestCreateImageTooLargeNamesIndex(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	req := validRequest()
	req.Images = []string{"small", strings.Repeat("x", domain.MaxImageBytes+1)}

	_, err := svc.Create(ctx, req)
	if err == nil || !strings.Contains(err.Error(), "image 2") {
		t.Fatalf("Create = %v, want offending index named", err)
	}
}

func TestCreateAggregateTooLarge(t *testing.T) {
	ctx := context.Background()
	svc, _, scratchDir := newTestService(t)

	// Six payloads at the per-image cap exceed the aggregate cap.
	chunk := strings.Repeat("x", domain.MaxImageBytes)
	req := CreateRequest{Images: []string{chunk, chunk, chunk, chunk, chunk, chunk}}

	_, err := svc.Create(ctx, req)
	var adm *AdmissionError
	if !errors.As(err, &adm) || adm.Reason != ReasonPayloadTooLarge {
		t.Fatalf("Create = %v, want payload_too_large rejection", err)
	}
	if scratchEntries(t, scratchDir) != 0 {
		t.Fatal("rejection left scratch files behind")
	}
}

func TestCreateDefaultsStyleAndAspect(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	job, err := svc.Create(ctx, CreateRequest{Images: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Style != domain.DefaultStyle {
		t.Fatalf("style = %q, want default %q", job.Style, domain.DefaultStyle)
	}
	if job.AspectRatio != domain.DefaultAspectRatio {
		t.Fatalf("aspect = %q, want default %q", job.AspectRatio, domain.DefaultAspectRatio)
	}
}

func TestGetMissingJob(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}
