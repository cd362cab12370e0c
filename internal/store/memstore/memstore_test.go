package memstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
)

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateUser(ctx, store.NewUser{FirstName: "Ana", Email: "ana@example.com"})
		return err
	})
	require.NoError(t, err)
	_, ok := s.UserByEmail("ana@example.com")
	assert.True(t, ok)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.CreateUser(ctx, store.NewUser{FirstName: "Luis", Email: "luis@example.com"}); err != nil {
			return err
		}
		// visible inside the same transaction
		u, err := tx.FindUserByEmail(ctx, "luis@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Luis", u.FirstName)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok = s.UserByEmail("luis@example.com")
	assert.False(t, ok)
	assert.Len(t, s.Users(), 1)
}

func TestDuplicateEmailIsIntegrityViolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddUser(store.NewUser{FirstName: "Ana", Email: "ana@example.com"})

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateUser(ctx, store.NewUser{FirstName: "Otra", Email: "ana@example.com"})
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestPlacesAreScopedToParent(t *testing.T) {
	ctx := context.Background()
	s := New()

	var a, b, again int64
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		st1, _ := tx.CreatePlace(ctx, store.LevelState, store.Place{Name: "Jalisco"})
		st2, _ := tx.CreatePlace(ctx, store.LevelState, store.Place{Name: "Colima"})
		a, _ = tx.CreatePlace(ctx, store.LevelMunicipality, store.Place{Name: "Centro", ParentID: st1})
		b, _ = tx.CreatePlace(ctx, store.LevelMunicipality, store.Place{Name: "Centro", ParentID: st2})
		again, _ = tx.CreatePlace(ctx, store.LevelMunicipality, store.Place{Name: "Centro", ParentID: st1})
		return nil
	}))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
	assert.Len(t, s.Places(store.LevelMunicipality), 2)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreatePlace(ctx, store.LevelStreet, store.Place{Name: "Hidalgo", ParentID: 99})
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestDecrementStockIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := s.AddProduct("Termo", decimal.RequireFromString("10.00"), 3)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.DecrementStock(ctx, id, 2)
		assert.True(t, ok)
		assert.NoError(t, err)
		ok, err = tx.DecrementStock(ctx, id, 2)
		assert.False(t, ok)
		return err
	}))
	p, _ := s.Product(id)
	assert.Equal(t, 1, p.Stock)
}

func TestFailOnAndUnavailable(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailOn("InsertPayment", errors.New("disk full"))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertPayment(ctx, store.Payment{OrderID: 1})
	})
	assert.EqualError(t, err, "disk full")

	s.SetUnavailable(true)
	_, err = s.CountSpecies(ctx)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), apperr.ErrStoreUnavailable)
}

func TestSpeciesFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	en := s.AddConservationStatus("EN", "En Peligro")
	lc := s.AddConservationStatus("LC", "Preocupación Menor")
	reef := s.AddHabitat("Arrecife")
	s.AddSpecies(SpeciesSeed{CommonName: "Tortuga carey", ScientificName: "Eretmochelys imbricata", StatusID: en, HabitatIDs: []int64{reef}})
	s.AddSpecies(SpeciesSeed{CommonName: "Delfín nariz de botella", ScientificName: "Tursiops truncatus", StatusID: lc})

	all, err := s.ListSpecies(ctx, store.SpeciesFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Delfín nariz de botella", all[0].CommonName)

	byHabitat, _ := s.ListSpecies(ctx, store.SpeciesFilter{HabitatID: reef})
	require.Len(t, byHabitat, 1)
	assert.Equal(t, "EN", byHabitat[0].ConservationCode)

	bySearch, _ := s.ListSpecies(ctx, store.SpeciesFilter{Search: "TURSIOPS"})
	assert.Len(t, bySearch, 1)

	counts, _ := s.CountSpecies(ctx)
	assert.Equal(t, store.SpeciesCounts{Catalogued: 2, Endangered: 1}, counts)

	_, err = s.GetSpecies(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
