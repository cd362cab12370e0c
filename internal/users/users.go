// Package users finds or creates the user rows that sightings, orders and
// newsletter subscriptions hang off.
package users

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/validate"
)

const (
	defaultFirstName = "Usuario"
	defaultSurname   = "Sin Apellido"
)

// Identity is what a workflow knows about a person before the user row exists.
// Explicit name parts win over FullName.
type Identity struct {
	Email           string
	FullName        string
	FirstName       string
	PaternalSurname string
	MaternalSurname string
	Newsletter      bool
}

// NormalizeEmail lowercases and trims, so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitName maps "first paternal maternal ..." onto the three name columns.
// Tokens after the third are dropped.
func SplitName(full string) (first, paternal, maternal string) {
	parts := strings.Fields(full)
	first, paternal = defaultFirstName, defaultSurname
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		paternal = parts[1]
	}
	if len(parts) > 2 {
		maternal = parts[2]
	}
	return first, paternal, maternal
}

func (id Identity) newUser() store.NewUser {
	u := store.NewUser{Email: NormalizeEmail(id.Email), NewsletterOptIn: id.Newsletter}
	if strings.TrimSpace(id.FirstName) != "" {
		u.FirstName = validate.CollapseSpaces(id.FirstName)
		u.PaternalSurname = validate.CollapseSpaces(id.PaternalSurname)
		u.MaternalSurname = validate.CollapseSpaces(id.MaternalSurname)
		if u.PaternalSurname == "" {
			u.PaternalSurname = defaultSurname
		}
		return u
	}
	u.FirstName, u.PaternalSurname, u.MaternalSurname = SplitName(id.FullName)
	return u
}

// FindOrCreate returns the user with id.Email, inserting it first if needed.
// An existing row is returned unchanged.
func FindOrCreate(ctx context.Context, tx store.Tx, id Identity) (store.User, bool, error) {
	email := NormalizeEmail(id.Email)
	if email == "" {
		return store.User{}, false, apperr.Validation("email", "email is required")
	}

	u, err := tx.FindUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, false, errors.Wrap(err, "users: find by email")
	}

	nu := id.newUser()
	userID, err := tx.CreateUser(ctx, nu)
	if err != nil {
		return store.User{}, false, errors.Wrap(err, "users: create")
	}
	return store.User{
		ID:              userID,
		FirstName:       nu.FirstName,
		PaternalSurname: nu.PaternalSurname,
		MaternalSurname: nu.MaternalSurname,
		Email:           nu.Email,
		NewsletterOptIn: nu.NewsletterOptIn,
		Active:          true,
	}, true, nil
}

// FullName joins the name parts for display. Older rows carry the whole
// name in the first-name column, so surnames already present are not repeated.
func FullName(u store.User) string {
	first := strings.TrimSpace(u.FirstName)
	if first == "" {
		return defaultFirstName
	}
	if u.PaternalSurname != "" && strings.Contains(first, u.PaternalSurname) {
		return first
	}
	parts := []string{first}
	for _, s := range []string{u.PaternalSurname, u.MaternalSurname} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
