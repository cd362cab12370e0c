package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/store/memstore"
)

func TestSplitName(t *testing.T) {
	cases := []struct {
		in                        string
		first, paternal, maternal string
	}{
		{"Ana López", "Ana", "López", ""},
		{"Ana López Pérez", "Ana", "López", "Pérez"},
		{"Ana", "Ana", "Sin Apellido", ""},
		{"  Ana   López  ", "Ana", "López", ""},
		{"", "Usuario", "Sin Apellido", ""},
		{"Ana María López Pérez", "Ana", "María", "López"},
	}
	for _, c := range cases {
		f, p, m := SplitName(c.in)
		assert.Equal(t, []string{c.first, c.paternal, c.maternal}, []string{f, p, m}, c.in)
	}
}

func TestFindOrCreate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	var first, second store.User
	var created1, created2 bool
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		first, created1, err = FindOrCreate(ctx, tx, Identity{Email: " Ana@Example.com ", FullName: "Ana López"})
		if err != nil {
			return err
		}
		second, created2, err = FindOrCreate(ctx, tx, Identity{Email: "ana@example.com", FullName: "Someone Else"})
		return err
	}))

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ana@example.com", first.Email)

	u, ok := s.UserByEmail("ana@example.com")
	require.True(t, ok)
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, "López", u.PaternalSurname)
}

func TestExplicitNamePartsWin(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, _, err := FindOrCreate(ctx, tx, Identity{
			Email:           "b@example.com",
			FullName:        "ignored name here",
			FirstName:       "Beatriz",
			PaternalSurname: "Ramos",
			MaternalSurname: "Gil",
		})
		return err
	}))
	u, _ := s.UserByEmail("b@example.com")
	assert.Equal(t, "Beatriz Ramos Gil", FullName(u))
}

func TestFindOrCreateRequiresEmail(t *testing.T) {
	s := memstore.New()
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		_, _, err := FindOrCreate(context.Background(), tx, Identity{Email: "  "})
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Usuario", FullName(store.User{}))
	assert.Equal(t, "Ana López", FullName(store.User{FirstName: "Ana López", PaternalSurname: "López"}))
	assert.Equal(t, "Ana López Pérez", FullName(store.User{FirstName: "Ana", PaternalSurname: "López", MaternalSurname: "Pérez"}))
	assert.Equal(t, "Ana", FullName(store.User{FirstName: "Ana"}))
}

func TestNewsletterSubscribe(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	n := &Newsletter{Store: s}

	res, err := n.Subscribe(ctx, SubscribeInput{Email: "new@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.AlreadySubscribed)
	u, _ := s.UserByEmail("new@example.com")
	assert.True(t, u.NewsletterOptIn)
	assert.Equal(t, "Usuario Newsletter", FullName(u))

	res, err = n.Subscribe(ctx, SubscribeInput{Email: "NEW@example.com"})
	require.NoError(t, err)
	assert.True(t, res.AlreadySubscribed)

	existing := s.AddUser(store.NewUser{FirstName: "Eva", Email: "eva@example.com"})
	res, err = n.Subscribe(ctx, SubscribeInput{Email: "eva@example.com"})
	require.NoError(t, err)
	assert.Equal(t, existing, res.UserID)
	assert.False(t, res.AlreadySubscribed)
	u, _ = s.UserByEmail("eva@example.com")
	assert.True(t, u.NewsletterOptIn)

	_, err = n.Subscribe(ctx, SubscribeInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
