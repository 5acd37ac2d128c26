package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/jobs"
)

type App struct {
	Jobs   *jobs.Service
	Logger infra.Logger
}

func NewApp(jobsSvc *jobs.Service, logger infra.Logger) *App {
	return &App{Jobs: jobsSvc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
