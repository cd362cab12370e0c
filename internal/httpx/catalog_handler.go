package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swaymx/sway-api/internal/catalog"
	"github.com/swaymx/sway-api/internal/store"
)

type CatalogHandler struct {
	Svc *catalog.Service
	Log *slog.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/conservation-statuses", listOf(h, "conservation statuses", h.Svc.ConservationStatuses))
	r.Get("/habitats", listOf(h, "habitats", h.Svc.Habitats))
	r.Get("/threats", listOf(h, "threats", h.Svc.Threats))
	r.Get("/species", h.species)
	r.Get("/species/{id}", h.speciesDetail)

	r.Get("/addresses/states", listOf(h, "states", h.Svc.States))
	r.Get("/addresses/states/{id}/municipalities", children(h, "municipalities", h.Svc.Municipalities))
	r.Get("/addresses/municipalities/{id}/neighborhoods", children(h, "neighborhoods", h.Svc.Neighborhoods))
	r.Get("/addresses/neighborhoods/{id}/streets", children(h, "streets", h.Svc.Streets))

	r.Get("/card-types", listOf(h, "card types", h.Svc.CardTypes))
	r.Get("/products", listOf(h, "products", h.Svc.Products))
}

func listOf[T any](h *CatalogHandler, what string, fn func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context())
		if err != nil {
			fail(w, r, h.Log, err)
			return
		}
		ok(w, http.StatusOK, what, out)
	}
}

func children(h *CatalogHandler, what string, fn func(context.Context, int64) ([]store.Place, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			fail(w, r, h.Log, err)
			return
		}
		out, err := fn(r.Context(), id)
		if err != nil {
			fail(w, r, h.Log, err)
			return
		}
		ok(w, http.StatusOK, what, out)
	}
}

func (h *CatalogHandler) species(w http.ResponseWriter, r *http.Request) {
	var f store.SpeciesFilter
	var err error
	if f.ConservationStatusID, err = queryInt(r, "conservation_status_id"); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if f.HabitatID, err = queryInt(r, "habitat_id"); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	f.Limit = int(limit)
	f.Search = r.URL.Query().Get("search")

	out, err := h.Svc.Species(r.Context(), f)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "species", out)
}

func (h *CatalogHandler) speciesDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	d, err := h.Svc.SpeciesDetail(r.Context(), id)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "species", d)
}
