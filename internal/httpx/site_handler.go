package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swaymx/sway-api/internal/stats"
	"github.com/swaymx/sway-api/internal/users"
)

// SiteHandler serves the public site widgets: newsletter sign-up and the
// headline figures.
type SiteHandler struct {
	Newsletter *users.Newsletter
	Stats      *stats.Service
	Log        *slog.Logger
}

func (h *SiteHandler) Register(r chi.Router) {
	r.Post("/newsletter", h.subscribe)
	r.Get("/stats", h.overview)
	r.Get("/impact", h.impact)
}

func (h *SiteHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	var in users.SubscribeInput
	if err := decode(r, &in); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	res, err := h.Newsletter.Subscribe(r.Context(), in)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	msg := "subscribed"
	if res.AlreadySubscribed {
		msg = "already subscribed"
	}
	ok(w, http.StatusOK, msg, res)
}

func (h *SiteHandler) overview(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "statistics", h.Stats.Overview(r.Context()))
}

func (h *SiteHandler) impact(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "impact", h.Stats.Impact(r.Context()))
}
