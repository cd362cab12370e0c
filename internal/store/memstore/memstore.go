// Package memstore is an in-process store.Store. Each transaction works on a
// private copy of the data that replaces the committed copy only on success,
// so rollback semantics match the PostgreSQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/store"
)

type speciesRow struct {
	store.Species
	Description string
	StatusID    int64
	HabitatIDs  []int64
	ThreatIDs   []int64
	Active      bool
}

type data struct {
	seq map[string]int64

	users  map[int64]store.User
	emails map[string]int64

	statuses  map[int64]store.ConservationStatus
	habitats  map[int64]store.Habitat
	threats   map[int64]store.Threat
	species   map[int64]speciesRow
	sightings []store.Sighting

	places    [4]map[int64]store.Place
	addresses map[int64]store.Address

	cardTypes map[int64]store.CardType
	products  map[int64]store.Product
	orders    map[int64]store.Order
	lines     []store.OrderLine
	payments  map[int64]store.Payment
}

func newData() *data {
	d := &data{
		seq:       map[string]int64{},
		users:     map[int64]store.User{},
		emails:    map[string]int64{},
		statuses:  map[int64]store.ConservationStatus{},
		habitats:  map[int64]store.Habitat{},
		threats:   map[int64]store.Threat{},
		species:   map[int64]speciesRow{},
		addresses: map[int64]store.Address{},
		cardTypes: map[int64]store.CardType{},
		products:  map[int64]store.Product{},
		orders:    map[int64]store.Order{},
		payments:  map[int64]store.Payment{},
	}
	for i := range d.places {
		d.places[i] = map[int64]store.Place{}
	}
	return d
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	c := &data{
		seq:       cloneMap(d.seq),
		users:     cloneMap(d.users),
		emails:    cloneMap(d.emails),
		statuses:  cloneMap(d.statuses),
		habitats:  cloneMap(d.habitats),
		threats:   cloneMap(d.threats),
		species:   cloneMap(d.species),
		sightings: append([]store.Sighting(nil), d.sightings...),
		addresses: cloneMap(d.addresses),
		cardTypes: cloneMap(d.cardTypes),
		products:  cloneMap(d.products),
		orders:    cloneMap(d.orders),
		lines:     append([]store.OrderLine(nil), d.lines...),
		payments:  cloneMap(d.payments),
	}
	for i := range d.places {
		c.places[i] = cloneMap(d.places[i])
	}
	return c
}

func (d *data) next(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

// Store implements store.Store.
type Store struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.RWMutex
	d    *data

	failMu      sync.Mutex
	failures    map[string]error
	unavailable bool

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store seeded with the fixed card types.
func New() *Store {
	s := &Store{d: newData(), failures: map[string]error{}, now: time.Now}
	for _, ct := range []store.CardType{
		{ID: store.CardVisa, Name: "Visa"},
		{ID: store.CardMastercard, Name: "Mastercard"},
		{ID: store.CardAmex, Name: "American Express"},
		{ID: store.CardDebit, Name: "Tarjeta de Débito"},
		{ID: store.CardPayPal, Name: "PayPal"},
	} {
		s.d.cardTypes[ct.ID] = ct
	}
	return s
}

// FailOn makes the next call to the named Tx method return err.
func (s *Store) FailOn(method string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[method] = err
}

// SetUnavailable makes every call fail as if the database were unreachable.
func (s *Store) SetUnavailable(v bool) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.unavailable = v
}

func (s *Store) check(method string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.unavailable {
		return apperr.StoreUnavailable(errors.New("memstore: unavailable"))
	}
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.check("Ping")
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := s.check("Begin"); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.d.clone()
	s.mu.RUnlock()

	if err := fn(&tx{s: s, d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "memstore: commit")
	}
	if err := s.check("Commit"); err != nil {
		return err
	}

	s.mu.Lock()
	s.d = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read(method string, fn func(d *data)) error {
	if err := s.check(method); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.d)
	return nil
}

// ---- seeding and inspection ----

func (s *Store) AddConservationStatus(code, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.d.next("statuses")
	s.d.statuses[id] = store.ConservationStatus{ID: id, Code: code, Name: name}
	return id
}

func (s *Store) AddHabitat(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.d.next("habitats")
	s.d.habitats[id] = store.Habitat{ID: id, Name: name}
	return id
}

func (s *Store) AddThreat(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.d.next("threats")
	s.d.threats[id] = store.Threat{ID: id, Name: name}
	return id
}

// SpeciesSeed describes a species to insert with AddSpecies.
type SpeciesSeed struct {
	ID             int64 // optional; next id when zero
	CommonName     string
	ScientificName string
	StatusID       int64
	Description    string
	HabitatIDs     []int64
	ThreatIDs      []int64
}

func (s *Store) AddSpecies(seed SpeciesSeed) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := seed.ID
	if id == 0 {
		id = s.d.next("species")
	} else if id > s.d.seq["species"] {
		s.d.seq["species"] = id
	}
	st := s.d.statuses[seed.StatusID]
	s.d.species[id] = speciesRow{
		Species: store.Species{
			ID:                 id,
			CommonName:         seed.CommonName,
			ScientificName:     seed.ScientificName,
			ConservationStatus: st.Name,
			ConservationCode:   st.Code,
		},
		Description: seed.Description,
		StatusID:    seed.StatusID,
		HabitatIDs:  seed.HabitatIDs,
		ThreatIDs:   seed.ThreatIDs,
		Active:      true,
	}
	return id
}

func (s *Store) AddProduct(name string, price decimal.Decimal, stock int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.d.next("products")
	s.d.products[id] = store.Product{ID: id, Name: name, Price: price, Stock: stock, Active: true}
	return id
}

func (s *Store) SetProductPrice(id int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.d.products[id]
	p.Price = price
	s.d.products[id] = p
}

func (s *Store) SetProductActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.d.products[id]
	p.Active = active
	s.d.products[id] = p
}

func (s *Store) AddUser(u store.NewUser) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.insertUser(u, s.now())
}

func (s *Store) Product(id int64) (store.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.products[id]
	return p, ok
}

func (s *Store) UserByEmail(email string) (store.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.d.emails[email]
	if !ok {
		return store.User{}, false
	}
	return s.d.users[id], true
}

func (s *Store) Users() []store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.User, 0, len(s.d.users))
	for _, u := range s.d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Sightings() []store.Sighting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Sighting(nil), s.d.sightings...)
}

func (s *Store) Places(level store.Level) []store.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedPlaces(s.d.places[level], func(store.Place) bool { return true })
}

func (s *Store) Addresses() []store.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Address, 0, len(s.d.addresses))
	for _, a := range s.d.addresses {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Orders() []store.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Order, 0, len(s.d.orders))
	for _, o := range s.d.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) OrderLines(orderID int64) []store.OrderLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.OrderLine
	for _, l := range s.d.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) Payments() []store.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Payment, 0, len(s.d.payments))
	for _, p := range s.d.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// ---- Reader ----

func (s *Store) ListConservationStatuses(ctx context.Context) (out []store.ConservationStatus, err error) {
	err = s.read("ListConservationStatuses", func(d *data) {
		for _, v := range d.statuses {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	})
	return out, err
}

func (s *Store) ListHabitats(ctx context.Context) (out []store.Habitat, err error) {
	err = s.read("ListHabitats", func(d *data) {
		for _, v := range d.habitats {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	})
	return out, err
}

func (s *Store) ListThreats(ctx context.Context) (out []store.Threat, err error) {
	err = s.read("ListThreats", func(d *data) {
		for _, v := range d.threats {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	})
	return out, err
}

func (s *Store) ListSpecies(ctx context.Context, f store.SpeciesFilter) (out []store.Species, err error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	err = s.read("ListSpecies", func(d *data) {
		for _, sp := range d.species {
			if !sp.Active {
				continue
			}
			if f.ConservationStatusID != 0 && sp.StatusID != f.ConservationStatusID {
				continue
			}
			if f.HabitatID != 0 && !contains(sp.HabitatIDs, f.HabitatID) {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(sp.CommonName), search) &&
				!strings.Contains(strings.ToLower(sp.ScientificName), search) {
				continue
			}
			out = append(out, sp.Species)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CommonName < out[j].CommonName })
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
	})
	return out, err
}

func (s *Store) GetSpecies(ctx context.Context, id int64) (out store.SpeciesDetail, err error) {
	found := false
	err = s.read("GetSpecies", func(d *data) {
		sp, ok := d.species[id]
		if !ok || !sp.Active {
			return
		}
		found = true
		out = store.SpeciesDetail{Species: sp.Species, Description: sp.Description}
		for _, hid := range sp.HabitatIDs {
			out.Habitats = append(out.Habitats, d.habitats[hid])
		}
		for _, tid := range sp.ThreatIDs {
			out.Threats = append(out.Threats, d.threats[tid])
		}
	})
	if err == nil && !found {
		err = store.ErrNotFound
	}
	return out, err
}

func (s *Store) CountSpecies(ctx context.Context) (out store.SpeciesCounts, err error) {
	err = s.read("CountSpecies", func(d *data) {
		for _, sp := range d.species {
			if !sp.Active {
				continue
			}
			out.Catalogued++
			if sp.ConservationCode == "EN" || sp.ConservationCode == "CR" {
				out.Endangered++
			}
		}
	})
	return out, err
}

func (s *Store) ListStates(ctx context.Context) (out []store.Place, err error) {
	err = s.read("ListStates", func(d *data) {
		out = sortedPlaces(d.places[store.LevelState], func(store.Place) bool { return true })
	})
	return out, err
}

func (s *Store) ListMunicipalities(ctx context.Context, stateID int64) (out []store.Place, err error) {
	return s.children("ListMunicipalities", store.LevelMunicipality, stateID)
}

func (s *Store) ListNeighborhoods(ctx context.Context, municipalityID int64) (out []store.Place, err error) {
	return s.children("ListNeighborhoods", store.LevelNeighborhood, municipalityID)
}

func (s *Store) ListStreets(ctx context.Context, neighborhoodID int64) (out []store.Place, err error) {
	return s.children("ListStreets", store.LevelStreet, neighborhoodID)
}

func (s *Store) children(method string, level store.Level, parentID int64) (out []store.Place, err error) {
	err = s.read(method, func(d *data) {
		out = sortedPlaces(d.places[level], func(p store.Place) bool { return p.ParentID == parentID })
	})
	return out, err
}

func (s *Store) ListCardTypes(ctx context.Context) (out []store.CardType, err error) {
	err = s.read("ListCardTypes", func(d *data) {
		for _, v := range d.cardTypes {
			out = append(out, v)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	})
	return out, err
}

func (s *Store) ListProducts(ctx context.Context) (out []store.Product, err error) {
	err = s.read("ListProducts", func(d *data) {
		for _, p := range d.products {
			if p.Active {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	})
	return out, err
}

func (s *Store) ListSightings(ctx context.Context, limit int) (out []store.SightingView, err error) {
	err = s.read("ListSightings", func(d *data) {
		for _, sg := range d.sightings {
			sp := d.species[sg.SpeciesID]
			out = append(out, store.SightingView{
				ID:             sg.ID,
				ObservedAt:     sg.ObservedAt,
				Latitude:       sg.Latitude,
				Longitude:      sg.Longitude,
				Notes:          sg.Notes,
				SpeciesID:      sg.SpeciesID,
				CommonName:     sp.CommonName,
				ScientificName: sp.ScientificName,
				ReporterEmail:  d.users[sg.UserID].Email,
				Reporter:       d.users[sg.UserID],
			})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
	})
	return out, err
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) (out []store.OrderSummary, err error) {
	err = s.read("ListOrdersByUser", func(d *data) {
		for _, o := range d.orders {
			if o.UserID == userID {
				out = append(out, summary(o))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	})
	return out, err
}

func (s *Store) GetOrder(ctx context.Context, id int64) (out store.OrderDetail, err error) {
	found := false
	err = s.read("GetOrder", func(d *data) {
		o, ok := d.orders[id]
		if !ok {
			return
		}
		found = true
		out = store.OrderDetail{
			OrderSummary: summary(o),
			UserID:       o.UserID,
			ContactPhone: o.ContactPhone,
			Address:      d.formatAddress(o.AddressID),
		}
		for _, l := range d.lines {
			if l.OrderID != id {
				continue
			}
			out.Lines = append(out.Lines, store.OrderLineView{
				ProductID:   l.ProductID,
				ProductName: d.products[l.ProductID].Name,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				Subtotal:    l.Subtotal,
			})
		}
		if p, ok := d.payments[id]; ok {
			out.PaymentCard = p.MaskedNumber
		}
	})
	if err == nil && !found {
		err = store.ErrNotFound
	}
	return out, err
}

func (d *data) formatAddress(addressID int64) string {
	a := d.addresses[addressID]
	street := d.places[store.LevelStreet][a.StreetID]
	nb := d.places[store.LevelNeighborhood][street.ParentID]
	mun := d.places[store.LevelMunicipality][nb.ParentID]
	st := d.places[store.LevelState][mun.ParentID]
	return fmt.Sprintf("%s %s, %s, %s, %s", street.Name, a.ExteriorNumber, nb.Name, mun.Name, st.Name)
}

func summary(o store.Order) store.OrderSummary {
	return store.OrderSummary{ID: o.ID, Number: o.Number, Total: o.Total, Status: o.Status, CreatedAt: o.CreatedAt}
}

func sortedPlaces(m map[int64]store.Place, keep func(store.Place) bool) []store.Place {
	var out []store.Place
	for _, p := range m {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
