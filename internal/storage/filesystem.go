// Package storage persists job inputs and generated artifacts on the local
// filesystem: one scratch subdirectory per in-flight job, one artifact file
// per completed job.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// artifactExt is the fixed output format policy; the reaper relies on it
// when recovering job ids from filenames.
const artifactExt = ".png"

// ScratchStore stages raw submission payloads, ordered, in one directory
// per job. The directory is owned by the job and removed by the worker on
// every exit path.
type ScratchStore struct {
	basePath string
}

// NewScratchStore initializes a ScratchStore rooted at basePath.
func NewScratchStore(basePath string) (*ScratchStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: scratch base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure scratch path: %w", err)
	}
	return &ScratchStore{basePath: basePath}, nil
}

// JobDir returns the scratch directory for a job.
func (s *ScratchStore) JobDir(jobID string) string {
	return filepath.Join(s.basePath, jobID)
}

// StageInputs writes each payload verbatim to an ordered file inside the
// job's scratch directory and returns the paths in submission order. Any
// failure removes the partial directory before returning.
func (s *ScratchStore) StageInputs(jobID string, payloads []string) ([]string, error) {
	if err := validateID(jobID); err != nil {
		return nil, err
	}
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create scratch dir: %w", err)
	}
	paths := make([]string, 0, len(payloads))
	for i, payload := range payloads {
		path := filepath.Join(dir, fmt.Sprintf("img_%03d.dat", i))
		if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("storage: stage input %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RemoveJob deletes the job's scratch directory. Removing an absent
// directory is a no-op.
func (s *ScratchStore) RemoveJob(jobID string) error {
	if err := validateID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.JobDir(jobID)); err != nil {
		return fmt.Errorf("storage: remove scratch dir: %w", err)
	}
	return nil
}

// ArtifactStore holds one result file per completed job, named by job id.
// Artifact lifetime is governed by file age, not by the job record's TTL.
type ArtifactStore struct {
	basePath string
}

// NewArtifactStore initializes an ArtifactStore rooted at basePath.
func NewArtifactStore(basePath string) (*ArtifactStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: artifact base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure artifact path: %w", err)
	}
	return &ArtifactStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *ArtifactStore) BasePath() string {
	return s.basePath
}

// Write persists the result bytes for a job and returns the file path.
func (s *ArtifactStore) Write(jobID string, data []byte) (string, error) {
	if err := validateID(jobID); err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, jobID+artifactExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	return path, nil
}

// Remove deletes a job's artifact. Removing an absent artifact is a no-op.
func (s *ArtifactStore) Remove(jobID string) error {
	if err := validateID(jobID); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.basePath, jobID+artifactExt))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove artifact: %w", err)
	}
	return nil
}

// Artifact describes a result file on disk.
type Artifact struct {
	JobID   string
	Path    string
	ModTime time.Time
}

// List returns every artifact with its last-modified time.
func (s *ArtifactStore) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: list artifacts: %w", err)
	}
	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			JobID:   strings.TrimSuffix(entry.Name(), artifactExt),
			Path:    filepath.Join(s.basePath, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	return artifacts, nil
}

// validateID rejects ids that could escape the store root. Job ids are
// generated UUIDs, so anything else indicates a caller bug.
func validateID(jobID string) error {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return fmt.Errorf("storage: invalid job id %q", jobID)
	}
	return nil
}
