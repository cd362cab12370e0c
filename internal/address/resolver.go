// Package address turns a free-text shipping address into rows of the
// state / municipality / neighborhood / street hierarchy.
package address

import (
	"context"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/validate"
)

// Info is a shipping address as submitted by a client.
type Info struct {
	State          string `json:"state" validate:"notblank,max=254"`
	Municipality   string `json:"municipality" validate:"notblank,max=254"`
	Neighborhood   string `json:"neighborhood" validate:"notblank,max=254"`
	Street         string `json:"street" validate:"notblank,max=254"`
	ExteriorNumber string `json:"exterior_number" validate:"notblank,max=10"`
	InteriorNumber string `json:"interior_number" validate:"max=10"`
	PostalCode     string `json:"postal_code" validate:"postalcode"`
	References     string `json:"references" validate:"max=500"`
	ContactPhone   string `json:"contact_phone" validate:"omitempty,phone"`
}

// Normalize trims and collapses whitespace in every name part.
func (i Info) Normalize() Info {
	i.State = validate.CollapseSpaces(i.State)
	i.Municipality = validate.CollapseSpaces(i.Municipality)
	i.Neighborhood = validate.CollapseSpaces(i.Neighborhood)
	i.Street = validate.CollapseSpaces(i.Street)
	i.ExteriorNumber = validate.CollapseSpaces(i.ExteriorNumber)
	i.InteriorNumber = validate.CollapseSpaces(i.InteriorNumber)
	i.PostalCode = validate.StripSpaces(i.PostalCode)
	i.References = validate.CollapseSpaces(i.References)
	return i
}

// Resolve walks the hierarchy top-down, creating any node that does not
// exist yet, and returns the street id. Repeating it with the same input
// returns the same id and creates nothing.
func Resolve(ctx context.Context, tx store.Tx, in Info) (int64, error) {
	in = in.Normalize()
	steps := []struct {
		level store.Level
		place store.Place
	}{
		{store.LevelState, store.Place{Name: in.State}},
		{store.LevelMunicipality, store.Place{Name: in.Municipality}},
		{store.LevelNeighborhood, store.Place{Name: in.Neighborhood, PostalCode: in.PostalCode}},
		{store.LevelStreet, store.Place{Name: in.Street}},
	}

	var parent int64
	for _, step := range steps {
		step.place.ParentID = parent
		id, err := findOrCreate(ctx, tx, step.level, step.place)
		if err != nil {
			return 0, err
		}
		parent = id
	}
	return parent, nil
}

func findOrCreate(ctx context.Context, tx store.Tx, level store.Level, p store.Place) (int64, error) {
	if p.Name == "" {
		return 0, apperr.Validation(level.String(), level.String()+" is required")
	}
	id, err := tx.FindPlace(ctx, level, p.ParentID, p.Name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, errors.Wrapf(err, "address: find %s", level)
	}
	id, err = tx.CreatePlace(ctx, level, p)
	if err != nil {
		return 0, errors.Wrapf(err, "address: create %s", level)
	}
	return id, nil
}

// CreateAddress inserts the terminal address row under streetID.
func CreateAddress(ctx context.Context, tx store.Tx, streetID int64, in Info) (int64, error) {
	in = in.Normalize()
	id, err := tx.InsertAddress(ctx, store.Address{
		StreetID:       streetID,
		ExteriorNumber: in.ExteriorNumber,
		InteriorNumber: in.InteriorNumber,
		References:     in.References,
	})
	return id, errors.Wrap(err, "address: insert")
}
