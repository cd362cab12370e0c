// Package catalog serves the read-only reference data: species and their
// classifications, the address hierarchy, card types and products.
package catalog

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
)

const (
	DefaultSpeciesLimit = 100
	MaxSpeciesLimit     = 500
)

type Service struct {
	Store store.Reader
}

func New(r store.Reader) *Service { return &Service{Store: r} }

func (s *Service) ConservationStatuses(ctx context.Context) ([]store.ConservationStatus, error) {
	return nonNil(s.Store.ListConservationStatuses(ctx))
}

func (s *Service) Habitats(ctx context.Context) ([]store.Habitat, error) {
	return nonNil(s.Store.ListHabitats(ctx))
}

func (s *Service) Threats(ctx context.Context) ([]store.Threat, error) {
	return nonNil(s.Store.ListThreats(ctx))
}

// Species lists active species ordered by common name. A zero limit means
// DefaultSpeciesLimit; larger values are capped at MaxSpeciesLimit.
func (s *Service) Species(ctx context.Context, f store.SpeciesFilter) ([]store.Species, error) {
	if f.ConservationStatusID < 0 {
		return nil, apperr.Validation("conservation_status_id", "conservation_status_id must be positive")
	}
	if f.HabitatID < 0 {
		return nil, apperr.Validation("habitat_id", "habitat_id must be positive")
	}
	switch {
	case f.Limit < 0:
		return nil, apperr.Validation("limit", "limit must be positive")
	case f.Limit == 0:
		f.Limit = DefaultSpeciesLimit
	case f.Limit > MaxSpeciesLimit:
		f.Limit = MaxSpeciesLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	return nonNil(s.Store.ListSpecies(ctx, f))
}

func (s *Service) SpeciesDetail(ctx context.Context, id int64) (store.SpeciesDetail, error) {
	d, err := s.Store.GetSpecies(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.SpeciesDetail{}, apperr.NotFound("species", id)
	}
	if err != nil {
		return store.SpeciesDetail{}, err
	}
	if d.Habitats == nil {
		d.Habitats = []store.Habitat{}
	}
	if d.Threats == nil {
		d.Threats = []store.Threat{}
	}
	return d, nil
}

func (s *Service) States(ctx context.Context) ([]store.Place, error) {
	return nonNil(s.Store.ListStates(ctx))
}

func (s *Service) Municipalities(ctx context.Context, stateID int64) ([]store.Place, error) {
	return nonNil(s.Store.ListMunicipalities(ctx, stateID))
}

func (s *Service) Neighborhoods(ctx context.Context, municipalityID int64) ([]store.Place, error) {
	return nonNil(s.Store.ListNeighborhoods(ctx, municipalityID))
}

func (s *Service) Streets(ctx context.Context, neighborhoodID int64) ([]store.Place, error) {
	return nonNil(s.Store.ListStreets(ctx, neighborhoodID))
}

func (s *Service) CardTypes(ctx context.Context) ([]store.CardType, error) {
	return nonNil(s.Store.ListCardTypes(ctx))
}

// Products lists the products that can be ordered.
func (s *Service) Products(ctx context.Context) ([]store.Product, error) {
	return nonNil(s.Store.ListProducts(ctx))
}

// nonNil keeps empty results serialising as [] rather than null.
func nonNil[T any](out []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
