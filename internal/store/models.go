package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID              int64
	FirstName       string
	PaternalSurname string
	MaternalSurname string
	Email           string
	Phone           string
	NewsletterOptIn bool
	Registered      bool
	Active          bool
	RegisteredAt    time.Time
}

type NewUser struct {
	FirstName       string
	PaternalSurname string
	MaternalSurname string
	Email           string
	NewsletterOptIn bool
}

type ConservationStatus struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Habitat struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Threat struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Species struct {
	ID                 int64  `json:"id"`
	CommonName         string `json:"common_name"`
	ScientificName     string `json:"scientific_name"`
	ConservationStatus string `json:"conservation_status"`
	ConservationCode   string `json:"conservation_code"`
	ImageURL           string `json:"image_url,omitempty"`
}

type SpeciesDetail struct {
	Species
	Description string    `json:"description"`
	Habitats    []Habitat `json:"habitats"`
	Threats     []Threat  `json:"threats"`
}

// SpeciesFilter narrows ListSpecies. Zero values mean "no filter".
type SpeciesFilter struct {
	ConservationStatusID int64
	HabitatID            int64
	Search               string
	Limit                int
}

type Sighting struct {
	ID         int64
	SpeciesID  int64
	UserID     int64
	ObservedAt time.Time
	Latitude   float64
	Longitude  float64
	Notes      string
}

type SightingView struct {
	ID             int64     `json:"id"`
	ObservedAt     time.Time `json:"observed_at"`
	Latitude       float64   `json:"lat"`
	Longitude      float64   `json:"lon"`
	Notes          string    `json:"notes"`
	SpeciesID      int64     `json:"species_id"`
	CommonName     string    `json:"species_name"`
	ScientificName string    `json:"scientific_name"`
	ReporterName   string    `json:"reporter_name"`
	ReporterEmail  string    `json:"reporter_email,omitempty"`

	// Reporter holds at least the name columns of the reporting user.
	Reporter User `json:"-"`
}

// Level is one tier of the address hierarchy below the root.
type Level int

const (
	LevelState Level = iota
	LevelMunicipality
	LevelNeighborhood
	LevelStreet
)

func (l Level) String() string {
	switch l {
	case LevelState:
		return "state"
	case LevelMunicipality:
		return "municipality"
	case LevelNeighborhood:
		return "neighborhood"
	case LevelStreet:
		return "street"
	}
	return "unknown"
}

// Place is a named address node. ParentID is zero for states.
type Place struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ParentID   int64  `json:"parent_id,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type Address struct {
	ID             int64
	StreetID       int64
	ExteriorNumber string
	InteriorNumber string
	References     string
}

type CardType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Card type ids as seeded in tipos_tarjeta.
const (
	CardVisa       int64 = 1
	CardMastercard int64 = 2
	CardAmex       int64 = 3
	CardDebit      int64 = 4
	CardPayPal     int64 = 5
)

type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Active bool            `json:"active"`
}

type Order struct {
	ID           int64
	Number       string
	UserID       int64
	AddressID    int64
	Total        decimal.Decimal
	Status       string
	ContactPhone string
	CreatedAt    time.Time
}

type OrderLine struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Payment struct {
	OrderID      int64
	Method       string
	CardTypeID   int64
	MaskedNumber string
	HolderName   string
	Expiry       string
	Amount       decimal.Decimal
}

type OrderSummary struct {
	ID        int64           `json:"id"`
	Number    string          `json:"order_number"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderLineView struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderDetail struct {
	OrderSummary
	UserID       int64           `json:"user_id"`
	ContactPhone string          `json:"contact_phone,omitempty"`
	Address      string          `json:"address"`
	Lines        []OrderLineView `json:"lines"`
	PaymentCard  string          `json:"payment_card,omitempty"`
}

type SpeciesCounts struct {
	Catalogued int `json:"catalogued"`
	Endangered int `json:"endangered"`
}
