package catalog

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaymx/sway-api/internal/address"
	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/store/memstore"
)

func names(sp []store.Species) []string {
	out := make([]string, len(sp))
	for i, s := range sp {
		out[i] = s.CommonName
	}
	return out
}

func TestSpeciesFilters(t *testing.T) {
	ctx := context.Background()
	svc := New(memstore.NewDemo())

	all, err := svc.Species(ctx, store.SpeciesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Ballena jorobada", "Coral cuerno de alce", "Tiburón ballena", "Tortuga carey", "Vaquita marina",
	}, names(all))

	statuses, err := svc.ConservationStatuses(ctx)
	require.NoError(t, err)
	var cr int64
	for _, st := range statuses {
		if st.Code == "CR" {
			cr = st.ID
		}
	}
	require.NotZero(t, cr)
	critical, err := svc.Species(ctx, store.SpeciesFilter{ConservationStatusID: cr})
	require.NoError(t, err)
	assert.Equal(t, []string{"Coral cuerno de alce", "Tortuga carey", "Vaquita marina"}, names(critical))

	habitats, err := svc.Habitats(ctx)
	require.NoError(t, err)
	require.Equal(t, "Arrecife de coral", habitats[0].Name)
	reef, err := svc.Species(ctx, store.SpeciesFilter{HabitatID: habitats[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Coral cuerno de alce", "Tiburón ballena", "Tortuga carey"}, names(reef))

	found, err := svc.Species(ctx, store.SpeciesFilter{Search: "  BALLENA "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ballena jorobada", "Tiburón ballena"}, names(found))

	none, err := svc.Species(ctx, store.SpeciesFilter{Search: "pulpo"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	two, err := svc.Species(ctx, store.SpeciesFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, two, 2)

	_, err = svc.Species(ctx, store.SpeciesFilter{Limit: -1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSpeciesDetail(t *testing.T) {
	ctx := context.Background()
	svc := New(memstore.NewDemo())

	all, err := svc.Species(ctx, store.SpeciesFilter{Search: "carey"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	d, err := svc.SpeciesDetail(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Eretmochelys imbricata", d.ScientificName)
	assert.Len(t, d.Habitats, 2)
	assert.Len(t, d.Threats, 2)

	_, err = svc.SpeciesDetail(ctx, 9999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAddressHierarchy(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := New(s)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		for _, street := range []string{"Morelos", "Juárez", "Allende"} {
			if _, err := address.Resolve(ctx, tx, address.Info{
				State: "Jalisco", Municipality: "Puerto Vallarta", Neighborhood: "Centro",
				Street: street, ExteriorNumber: "1", PostalCode: "48300",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	states, err := svc.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	muns, err := svc.Municipalities(ctx, states[0].ID)
	require.NoError(t, err)
	require.Len(t, muns, 1)
	nbs, err := svc.Neighborhoods(ctx, muns[0].ID)
	require.NoError(t, err)
	require.Len(t, nbs, 1)
	assert.Equal(t, "48300", nbs[0].PostalCode)

	streets, err := svc.Streets(ctx, nbs[0].ID)
	require.NoError(t, err)
	var got []string
	for _, st := range streets {
		got = append(got, st.Name)
	}
	assert.Equal(t, []string{"Allende", "Juárez", "Morelos"}, got)

	empty, err := svc.Municipalities(ctx, 12345)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestProductsAndCardTypes(t *testing.T) {
	ctx := context.Background()
	svc := New(memstore.NewDemo())

	products, err := svc.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)
	assert.Equal(t, "Bolsa Reutilizable Coral", products[0].Name)

	cards, err := svc.CardTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 5)
}

func TestStoreUnavailable(t *testing.T) {
	s := memstore.NewDemo()
	s.SetUnavailable(true)
	_, err := New(s).Habitats(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrStoreUnavailable))
}
