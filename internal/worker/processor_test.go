package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/jobstore"
	"server/internal/storage"
	"server/internal/synthesis"
)

type stubGateway struct {
	uploads     [][]byte
	generateReq *synthesis.GenerateRequest
	generateErr error
	uploadPanic bool
	result      []byte
}

func (g *stubGateway) Upload(_ context.Context, data []byte, _ string) (string, error) {
	if g.uploadPanic {
		panic("upload exploded")
	}
	g.uploads = append(g.uploads, data)
	return fmt.Sprintf("https://storage.test/file-%d", len(g.uploads)), nil
}

func (g *stubGateway) Generate(_ context.Context, req synthesis.GenerateRequest) (string, error) {
	g.generateReq = &req
	if g.generateErr != nil {
		return "", g.generateErr
	}
	return "https://storage.test/result.png", nil
}

func (g *stubGateway) Fetch(_ context.Context, _ string) ([]byte, error) {
	return g.result, nil
}

type procFixture struct {
	proc      *Processor
	store     *jobstore.MemoryStore
	scratch   *storage.ScratchStore
	artifacts *storage.ArtifactStore
	gateway   *stubGateway
}

func newProcFixture(t *testing.T) *procFixture {
	t.Helper()
	scratch, err := storage.NewScratchStore(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("scratch store: %v", err)
	}
	artifacts, err := storage.NewArtifactStore(filepath.Join(t.TempDir(), "output"))
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	store := jobstore.NewMemoryStore()
	gateway := &stubGateway{result: []byte("png-bytes")}
	proc := NewProcessor(store, gateway, scratch, artifacts, 30*time.Minute, "http://localhost:8080", zerolog.New(io.Discard))
	return &procFixture{proc: proc, store: store, scratch: scratch, artifacts: artifacts, gateway: gateway}
}

func testJPEG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.String()
}

func (f *procFixture) stageJob(t *testing.T, payloads []string) string {
	t.Helper()
	id := fmt.Sprintf("job-%d", time.Now().UnixNano())
	paths, err := f.scratch.StageInputs(id, payloads)
	if err != nil {
		t.Fatalf("stage inputs: %v", err)
	}
	job := &domain.Job{
		ID:          id,
		Status:      domain.StatusQueued,
		ImagePaths:  paths,
		ImageDir:    f.scratch.JobDir(id),
		Style:       "fridge",
		AspectRatio: "16:9",
		CreatedAt:   time.Now().UTC(),
	}
	if err := f.store.Put(context.Background(), job, time.Hour); err != nil {
		t.Fatalf("put job: %v", err)
	}
	return id
}

func TestProcessJobCompletes(t *testing.T) {
	f := newProcFixture(t)
	id := f.stageJob(t, []string{
		testJPEG(t, color.RGBA{R: 255, A: 255}),
		testJPEG(t, color.RGBA{B: 255, A: 255}),
	})

	f.proc.processJob(context.Background(), id)

	job, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.StatusCompleted {
		t.Fatalf("status = %q (error=%q), want completed", job.Status, job.Error)
	}
	if job.StatusDetail != "" {
		t.Errorf("status_detail = %q, want empty after completion", job.StatusDetail)
	}
	wantURL := "http://localhost:8080/output/" + id + ".png"
	if job.ImageURL != wantURL {
		t.Errorf("image_url = %q, want %q", job.ImageURL, wantURL)
	}
	if _, err := time.Parse(time.RFC3339, job.ExpiresAt); err != nil {
		t.Errorf("expires_at %q not RFC3339: %v", job.ExpiresAt, err)
	}

	if len(f.gateway.uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(f.gateway.uploads))
	}
	if f.gateway.generateReq == nil {
		t.Fatal("generate was never called")
	}
	if got := f.gateway.generateReq.Prompt; !strings.Contains(got, "refrigerator") {
		t.Errorf("prompt %q does not match the fridge style", got)
	}
	if got := len(f.gateway.generateReq.ImageURLs); got != 2 {
		t.Errorf("generate received %d image urls, want 2", got)
	}
	if f.gateway.generateReq.ImageURLs[0] != "https://storage.test/file-1" {
		t.Errorf("image urls out of upload order: %v", f.gateway.generateReq.ImageURLs)
	}

	data, err := os.ReadFile(filepath.Join(f.artifacts.BasePath(), id+".png"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("artifact bytes = %q", data)
	}

	if _, err := os.Stat(f.scratch.JobDir(id)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch dir still present after completion")
	}
}

func TestProcessJobGenerateFailure(t *testing.T) {
	f := newProcFixture(t)
	f.gateway.generateErr = errors.New("model exploded")
	id := f.stageJob(t, []string{testJPEG(t, color.White)})

	f.proc.processJob(context.Background(), id)

	job, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "model exploded") {
		t.Errorf("error = %q, want the gateway failure surfaced", job.Error)
	}
	if job.StatusDetail != "" {
		t.Errorf("status_detail = %q, want empty after failure", job.StatusDetail)
	}
	if _, err := os.Stat(f.scratch.JobDir(id)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch dir still present after failure")
	}
}

func TestProcessJobUndecodableInput(t *testing.T) {
	f := newProcFixture(t)
	id := f.stageJob(t, []string{"not an image at all"})

	f.proc.processJob(context.Background(), id)

	job, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "image 1") {
		t.Errorf("error = %q, want the offending image named", job.Error)
	}
}

func TestProcessJobMissingRecord(t *testing.T) {
	f := newProcFixture(t)
	// Must not panic or create anything.
	f.proc.processJob(context.Background(), "never-created")
	if len(f.gateway.uploads) != 0 {
		t.Errorf("gateway called for a missing job")
	}
}

func TestRunJobRecoversPanic(t *testing.T) {
	f := newProcFixture(t)
	f.gateway.uploadPanic = true
	id := f.stageJob(t, []string{testJPEG(t, color.White)})

	f.proc.runJob(context.Background(), id)

	job, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed after panic", job.Status)
	}
	if !strings.Contains(job.Error, "internal error") {
		t.Errorf("error = %q, want internal error message", job.Error)
	}
	if _, err := os.Stat(f.scratch.JobDir(id)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch dir still present after panic")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newProcFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.proc.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
