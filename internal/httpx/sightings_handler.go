package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/sightings"
	"github.com/swaymx/sway-api/internal/store"
)

type SightingsHandler struct {
	Svc *sightings.Service
	Log *slog.Logger
}

func (h *SightingsHandler) Register(r chi.Router) {
	r.Post("/sightings", h.report)
	r.Get("/sightings", h.recent)
}

func (h *SightingsHandler) report(w http.ResponseWriter, r *http.Request) {
	var in sightings.Input
	if err := decode(r, &in); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	res, err := h.Svc.Report(r.Context(), principal.FromContext(r.Context()), in)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "sighting recorded", res)
}

func (h *SightingsHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	list, err := h.Svc.Recent(r.Context(), principal.FromContext(r.Context()), int(limit))
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []store.SightingView{}
	}
	ok(w, http.StatusOK, "sightings", list)
}
