package handlers

import (
	"net/http"

	"server/internal/domain"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	type style struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	styles := make([]style, 0, len(domain.StylePresets))
	for _, key := range domain.StyleKeys() {
		styles = append(styles, style{ID: key, Name: domain.StylePresets[key].Name})
	}
	a.json(w, http.StatusOK, map[string]any{"styles": styles, "default": domain.DefaultStyle})
}

func (a *App) AspectRatios(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"aspect_ratios": domain.AspectRatioKeys(),
		"default":       domain.DefaultAspectRatio,
	})
}
