// Package stats serves the public conservation figures and the activity
// counters kept in Redis by the projector.
package stats

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/swaymx/sway-api/internal/redisx"
	"github.com/swaymx/sway-api/internal/store"
)

// Hash fields under redisx.KeyStats.
const (
	FieldSightings    = "sightings_reported"
	FieldOrdersPaid   = "orders_paid"
	FieldUnitsSold    = "units_sold"
	FieldRevenueCents = "revenue_cents"
)

// Environmental indicators are published figures, not derived from our data.
const (
	waterQuality       = 78
	biodiversity       = 65
	coralCoverage      = 45
	oceanTemperature   = 72
	discoveredThisYear = 7
)

type Counters struct {
	SightingsReported int64           `json:"sightings_reported"`
	OrdersPaid        int64           `json:"orders_paid"`
	UnitsSold         int64           `json:"units_sold"`
	Revenue           decimal.Decimal `json:"revenue"`
}

type Overview struct {
	SpeciesCatalogued  int       `json:"species_catalogued"`
	Endangered         int       `json:"endangered"`
	Protected          int       `json:"protected"`
	DiscoveredThisYear int       `json:"discovered_this_year"`
	WaterQuality       int       `json:"water_quality"`
	Biodiversity       int       `json:"biodiversity"`
	CoralCoverage      int       `json:"coral_coverage"`
	OceanTemperature   int       `json:"ocean_temperature"`
	Activity           *Counters `json:"activity,omitempty"`
	Fallback           bool      `json:"fallback"`
}

// FallbackOverview is served when the store cannot be read.
var FallbackOverview = Overview{
	SpeciesCatalogued:  2847,
	Endangered:         456,
	Protected:          1234,
	DiscoveredThisYear: 89,
	WaterQuality:       waterQuality,
	Biodiversity:       biodiversity,
	CoralCoverage:      coralCoverage,
	OceanTemperature:   oceanTemperature,
	Fallback:           true,
}

type Service struct {
	Store store.Reader
	Redis redis.Cmdable // optional
	Log   *slog.Logger
}

// Overview never fails: a store error yields FallbackOverview, a Redis
// error just leaves Activity out.
func (s *Service) Overview(ctx context.Context) Overview {
	counts, err := s.Store.CountSpecies(ctx)
	if err != nil {
		s.Log.Warn("species counts unavailable, serving fallback figures", "err", err)
		return FallbackOverview
	}
	out := Overview{
		SpeciesCatalogued:  counts.Catalogued,
		Endangered:         counts.Endangered,
		Protected:          counts.Catalogued - counts.Endangered,
		DiscoveredThisYear: discoveredThisYear,
		WaterQuality:       waterQuality,
		Biodiversity:       biodiversity,
		CoralCoverage:      coralCoverage,
		OceanTemperature:   oceanTemperature,
	}
	if s.Redis != nil {
		c, err := s.Counters(ctx)
		if err != nil {
			s.Log.Warn("activity counters unavailable", "err", err)
		} else {
			out.Activity = &c
		}
	}
	return out
}

// Counters reads the projector hash. Missing fields count as zero.
func (s *Service) Counters(ctx context.Context) (Counters, error) {
	if s.Redis == nil {
		return Counters{Revenue: decimal.Zero}, nil
	}
	m, err := s.Redis.HGetAll(ctx, redisx.KeyStats).Result()
	if err != nil {
		return Counters{}, errors.Wrap(err, "stats: read counters")
	}
	field := func(name string) int64 {
		n, _ := strconv.ParseInt(m[name], 10, 64)
		return n
	}
	return Counters{
		SightingsReported: field(FieldSightings),
		OrdersPaid:        field(FieldOrdersPaid),
		UnitsSold:         field(FieldUnitsSold),
		Revenue:           decimal.New(field(FieldRevenueCents), -2),
	}, nil
}

// Impact translates sales into the conservation commitments advertised
// by the shop, on top of the figures accumulated before online sales.
type Impact struct {
	CleanedWaterLiters int64 `json:"cleaned_water_liters"`
	CoralsPlanted      int64 `json:"corals_planted"`
	FamiliesBenefited  int64 `json:"families_benefited"`
	PlasticRecycledKg  int64 `json:"plastic_recycled_kg"`
	Fallback           bool  `json:"fallback"`
}

var impactBase = Impact{
	CleanedWaterLiters: 15420,
	CoralsPlanted:      892,
	FamiliesBenefited:  127,
	PlasticRecycledKg:  3250,
}

// Per 100 of revenue: 50 liters cleaned and 0.3 corals planted. One family
// per 10 orders, 2.5 kg of plastic per unit sold.
func ImpactOf(c Counters) Impact {
	hundreds := c.Revenue.Div(decimal.NewFromInt(100))
	return Impact{
		CleanedWaterLiters: impactBase.CleanedWaterLiters + hundreds.Mul(decimal.NewFromInt(50)).IntPart(),
		CoralsPlanted:      impactBase.CoralsPlanted + hundreds.Mul(decimal.RequireFromString("0.3")).IntPart(),
		FamiliesBenefited:  impactBase.FamiliesBenefited + c.OrdersPaid/10,
		PlasticRecycledKg:  impactBase.PlasticRecycledKg + decimal.NewFromInt(c.UnitsSold).Mul(decimal.RequireFromString("2.5")).IntPart(),
	}
}

// Impact never fails; without counters it reports the base figures.
func (s *Service) Impact(ctx context.Context) Impact {
	c, err := s.Counters(ctx)
	if err != nil {
		s.Log.Warn("activity counters unavailable, serving base impact", "err", err)
		out := impactBase
		out.Fallback = true
		return out
	}
	return ImpactOf(c)
}
