package memstore

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
)

type tx struct {
	s *Store
	d *data
}

var _ store.Tx = (*tx)(nil)

func (d *data) insertUser(u store.NewUser, now time.Time) int64 {
	id := d.next("users")
	d.users[id] = store.User{
		ID:              id,
		FirstName:       u.FirstName,
		PaternalSurname: u.PaternalSurname,
		MaternalSurname: u.MaternalSurname,
		Email:           u.Email,
		NewsletterOptIn: u.NewsletterOptIn,
		Active:          true,
		RegisteredAt:    now,
	}
	d.emails[u.Email] = id
	return id
}

func (t *tx) FindUserByEmail(ctx context.Context, email string) (store.User, error) {
	if err := t.s.check("FindUserByEmail"); err != nil {
		return store.User{}, err
	}
	id, ok := t.d.emails[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return t.d.users[id], nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (store.User, error) {
	if err := t.s.check("GetUser"); err != nil {
		return store.User{}, err
	}
	u, ok := t.d.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (t *tx) CreateUser(ctx context.Context, u store.NewUser) (int64, error) {
	if err := t.s.check("CreateUser"); err != nil {
		return 0, err
	}
	if _, dup := t.d.emails[u.Email]; dup {
		return 0, apperr.Integrity(errors.Errorf("duplicate email %q", u.Email))
	}
	return t.d.insertUser(u, t.s.now()), nil
}

func (t *tx) SetNewsletter(ctx context.Context, userID int64, subscribed bool) error {
	if err := t.s.check("SetNewsletter"); err != nil {
		return err
	}
	u, ok := t.d.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.NewsletterOptIn = subscribed
	t.d.users[userID] = u
	return nil
}

func (t *tx) SpeciesExists(ctx context.Context, id int64) (bool, error) {
	if err := t.s.check("SpeciesExists"); err != nil {
		return false, err
	}
	sp, ok := t.d.species[id]
	return ok && sp.Active, nil
}

func (t *tx) InsertSighting(ctx context.Context, sg store.Sighting) (int64, error) {
	if err := t.s.check("InsertSighting"); err != nil {
		return 0, err
	}
	if _, ok := t.d.species[sg.SpeciesID]; !ok {
		return 0, apperr.Integrity(errors.Errorf("sighting references missing species %d", sg.SpeciesID))
	}
	if _, ok := t.d.users[sg.UserID]; !ok {
		return 0, apperr.Integrity(errors.Errorf("sighting references missing user %d", sg.UserID))
	}
	sg.ID = t.d.next("sightings")
	t.d.sightings = append(t.d.sightings, sg)
	return sg.ID, nil
}

func (t *tx) FindPlace(ctx context.Context, level store.Level, parentID int64, name string) (int64, error) {
	if err := t.s.check("FindPlace"); err != nil {
		return 0, err
	}
	for _, p := range t.d.places[level] {
		if p.Name == name && (level == store.LevelState || p.ParentID == parentID) {
			return p.ID, nil
		}
	}
	return 0, store.ErrNotFound
}

func (t *tx) CreatePlace(ctx context.Context, level store.Level, p store.Place) (int64, error) {
	if err := t.s.check("CreatePlace"); err != nil {
		return 0, err
	}
	if level != store.LevelState {
		if _, ok := t.d.places[level-1][p.ParentID]; !ok {
			return 0, apperr.Integrity(errors.Errorf("%s parent %d missing", level, p.ParentID))
		}
	} else {
		p.ParentID = 0
	}
	for _, existing := range t.d.places[level] {
		if existing.Name == p.Name && existing.ParentID == p.ParentID {
			return existing.ID, nil
		}
	}
	p.ID = t.d.next("places_" + level.String())
	t.d.places[level][p.ID] = p
	return p.ID, nil
}

func (t *tx) InsertAddress(ctx context.Context, a store.Address) (int64, error) {
	if err := t.s.check("InsertAddress"); err != nil {
		return 0, err
	}
	if _, ok := t.d.places[store.LevelStreet][a.StreetID]; !ok {
		return 0, apperr.Integrity(errors.Errorf("address references missing street %d", a.StreetID))
	}
	a.ID = t.d.next("addresses")
	t.d.addresses[a.ID] = a
	return a.ID, nil
}

func (t *tx) LockProducts(ctx context.Context, ids []int64) (map[int64]store.Product, error) {
	if err := t.s.check("LockProducts"); err != nil {
		return nil, err
	}
	out := make(map[int64]store.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.d.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) InsertOrder(ctx context.Context, o store.Order) (int64, error) {
	if err := t.s.check("InsertOrder"); err != nil {
		return 0, err
	}
	if _, ok := t.d.users[o.UserID]; !ok {
		return 0, apperr.Integrity(errors.Errorf("order references missing user %d", o.UserID))
	}
	if _, ok := t.d.addresses[o.AddressID]; !ok {
		return 0, apperr.Integrity(errors.Errorf("order references missing address %d", o.AddressID))
	}
	o.ID = t.d.next("orders")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = t.s.now()
	}
	t.d.orders[o.ID] = o
	return o.ID, nil
}

func (t *tx) InsertOrderLine(ctx context.Context, l store.OrderLine) error {
	if err := t.s.check("InsertOrderLine"); err != nil {
		return err
	}
	if _, ok := t.d.orders[l.OrderID]; !ok {
		return apperr.Integrity(errors.Errorf("line references missing order %d", l.OrderID))
	}
	if _, ok := t.d.products[l.ProductID]; !ok {
		return apperr.Integrity(errors.Errorf("line references missing product %d", l.ProductID))
	}
	t.d.lines = append(t.d.lines, l)
	return nil
}

func (t *tx) InsertPayment(ctx context.Context, p store.Payment) error {
	if err := t.s.check("InsertPayment"); err != nil {
		return err
	}
	if _, ok := t.d.orders[p.OrderID]; !ok {
		return apperr.Integrity(errors.Errorf("payment references missing order %d", p.OrderID))
	}
	if _, dup := t.d.payments[p.OrderID]; dup {
		return apperr.Integrity(errors.Errorf("order %d already has a payment", p.OrderID))
	}
	t.d.payments[p.OrderID] = p
	return nil
}

func (t *tx) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	if err := t.s.check("DecrementStock"); err != nil {
		return false, err
	}
	p, ok := t.d.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	t.d.products[productID] = p
	return true, nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) (bool, error) {
	if err := t.s.check("UpdateOrderStatus"); err != nil {
		return false, err
	}
	o, ok := t.d.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	t.d.orders[orderID] = o
	return true, nil
}

func (t *tx) LockOrder(ctx context.Context, orderID int64) (store.Order, error) {
	if err := t.s.check("LockOrder"); err != nil {
		return store.Order{}, err
	}
	o, ok := t.d.orders[orderID]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (t *tx) ListOrderLines(ctx context.Context, orderID int64) ([]store.OrderLine, error) {
	if err := t.s.check("ListOrderLines"); err != nil {
		return nil, err
	}
	var out []store.OrderLine
	for _, l := range t.d.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *tx) IncrementStock(ctx context.Context, productID int64, qty int) error {
	if err := t.s.check("IncrementStock"); err != nil {
		return err
	}
	p, ok := t.d.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += qty
	t.d.products[productID] = p
	return nil
}
