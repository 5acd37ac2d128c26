package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/jobs"
	"server/internal/jobstore"
)

type createJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobStatusResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Jobs.Create(r.Context(), req)
	if err != nil {
		var adm *jobs.AdmissionError
		if errors.As(err, &adm) {
			a.error(w, admissionStatus(adm.Reason), string(adm.Reason), adm.Message)
			return
		}
		a.Logger.Error().Err(err).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	a.json(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("get job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	resp := jobStatusResponse{
		JobID:        job.ID,
		Status:       string(job.Status),
		StatusDetail: job.StatusDetail,
	}
	switch job.Status {
	case domain.StatusCompleted:
		resp.ImageURL = job.ImageURL
		resp.ExpiresAt = job.ExpiresAt
	case domain.StatusFailed:
		resp.Error = job.Error
	}
	a.json(w, http.StatusOK, resp)
}

func admissionStatus(reason jobs.Reason) int {
	switch reason {
	case jobs.ReasonQueueFull:
		return http.StatusServiceUnavailable
	case jobs.ReasonImageTooLarge, jobs.ReasonPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}
