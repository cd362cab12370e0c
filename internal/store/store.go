// Package store declares the persistence boundary used by the workflows.
// pgstore implements it on PostgreSQL; memstore implements it in memory.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store runs transactional workflows and serves read-only lookups.
type Store interface {
	Reader

	// WithTx runs fn inside one transaction. A nil return commits; any error
	// (or a panic, or ctx ending) rolls every write back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
}

// Reader is the read-only surface behind the reference catalogs and order history.
type Reader interface {
	ListConservationStatuses(ctx context.Context) ([]ConservationStatus, error)
	ListHabitats(ctx context.Context) ([]Habitat, error)
	ListThreats(ctx context.Context) ([]Threat, error)
	ListSpecies(ctx context.Context, f SpeciesFilter) ([]Species, error)
	GetSpecies(ctx context.Context, id int64) (SpeciesDetail, error)
	CountSpecies(ctx context.Context) (SpeciesCounts, error)

	ListStates(ctx context.Context) ([]Place, error)
	ListMunicipalities(ctx context.Context, stateID int64) ([]Place, error)
	ListNeighborhoods(ctx context.Context, municipalityID int64) ([]Place, error)
	ListStreets(ctx context.Context, neighborhoodID int64) ([]Place, error)

	ListCardTypes(ctx context.Context) ([]CardType, error)
	ListProducts(ctx context.Context) ([]Product, error)

	ListSightings(ctx context.Context, limit int) ([]SightingView, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]OrderSummary, error)
	GetOrder(ctx context.Context, id int64) (OrderDetail, error)
}

// Tx is the write surface available inside WithTx.
type Tx interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u NewUser) (int64, error)
	SetNewsletter(ctx context.Context, userID int64, subscribed bool) error

	SpeciesExists(ctx context.Context, id int64) (bool, error)
	InsertSighting(ctx context.Context, s Sighting) (int64, error)

	// FindPlace looks a node up by name under parentID (ignored for states).
	FindPlace(ctx context.Context, level Level, parentID int64, name string) (int64, error)
	// CreatePlace inserts a node and returns its id. If a concurrent writer created
	// the same (parent, name) first, the existing id is returned.
	CreatePlace(ctx context.Context, level Level, p Place) (int64, error)
	InsertAddress(ctx context.Context, a Address) (int64, error)

	// LockProducts reads and row-locks the given products. Missing ids are absent from the map.
	LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderLine(ctx context.Context, l OrderLine) error
	InsertPayment(ctx context.Context, p Payment) error
	// DecrementStock subtracts qty only if enough stock remains; false means nothing changed.
	DecrementStock(ctx context.Context, productID int64, qty int) (bool, error)
	// UpdateOrderStatus moves an order from one status to another; false means the order was not in from.
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) (bool, error)

	// LockOrder reads and row-locks one order.
	LockOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)
	IncrementStock(ctx context.Context, productID int64, qty int) error
}
