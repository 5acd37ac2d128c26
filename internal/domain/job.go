package domain

import "time"

// Status enumerates job lifecycle states. Transitions are monotonic:
// queued -> processing -> (completed | failed).
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the record shared between the API and worker processes through the
// job store. It is serialized as JSON under the job's store key; the field
// tags are the wire contract and must stay stable across both binaries.
type Job struct {
	ID           string    `json:"job_id"`
	Status       Status    `json:"status"`
	StatusDetail string    `json:"status_detail,omitempty"`
	ImagePaths   []string  `json:"image_paths,omitempty"`
	ImageDir     string    `json:"image_dir,omitempty"`
	Style        string    `json:"style"`
	AspectRatio  string    `json:"aspect_ratio"`
	CreatedAt    time.Time `json:"created_at"`

	// Set only once the job completes.
	ImageURL  string `json:"image_url,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`

	// Set only once the job fails. A short message, never a stack trace.
	Error string `json:"error,omitempty"`
}
