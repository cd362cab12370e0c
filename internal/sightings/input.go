package sightings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/validate"
)

// Scalar is a JSON value sent either as a string or as a bare number.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.Errorf("expected a string or a number, got %s", b)
		}
		*s = Scalar(n)
	}
	return nil
}

func (s Scalar) blank() bool { return strings.TrimSpace(string(s)) == "" }

// Input is the body of a sighting report.
type Input struct {
	SpeciesID     Scalar `json:"species_id"`
	Timestamp     Scalar `json:"timestamp"`
	Latitude      Scalar `json:"lat"`
	Longitude     Scalar `json:"lon"`
	ReporterName  string `json:"reporter_name"`
	ReporterEmail string `json:"reporter_email"`
	Notes         string `json:"notes"`

	// Optional; when FirstName is set these win over ReporterName for the stored columns.
	FirstName       string `json:"first_name"`
	PaternalSurname string `json:"paternal_surname"`
	MaternalSurname string `json:"maternal_surname"`
}

// parsed is Input after coercion.
type parsed struct {
	speciesID  int64
	observedAt time.Time
	lat, lon   float64
}

// Layouts accepted for timestamps without a zone; they are read in the
// configured location. Fractional seconds are accepted after the seconds field.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// ParseTimestamp reads s in one of the accepted layouts.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range zonedLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	for _, l := range naiveLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}

// check validates in the documented order and stops at the first failure.
func (in Input) check(loc *time.Location, now time.Time) (parsed, error) {
	var p parsed

	required := []struct {
		field string
		blank bool
	}{
		{"species_id", in.SpeciesID.blank()},
		{"timestamp", in.Timestamp.blank()},
		{"lat", in.Latitude.blank()},
		{"lon", in.Longitude.blank()},
		{"reporter_name", strings.TrimSpace(in.ReporterName) == ""},
		{"reporter_email", strings.TrimSpace(in.ReporterEmail) == ""},
	}
	for _, r := range required {
		if r.blank {
			return p, apperr.Validation(r.field, r.field+" is required")
		}
	}

	var err error
	if p.speciesID, err = strconv.ParseInt(strings.TrimSpace(string(in.SpeciesID)), 10, 64); err != nil {
		return p, apperr.InvalidFormat("species_id", err)
	}
	if p.speciesID < 1 {
		return p, apperr.Validation("species_id", "species_id must be a positive integer")
	}
	if p.lat, err = parseCoord(in.Latitude); err != nil {
		return p, apperr.InvalidFormat("lat", err)
	}
	if p.lon, err = parseCoord(in.Longitude); err != nil {
		return p, apperr.InvalidFormat("lon", err)
	}
	if p.lat < -90 || p.lat > 90 {
		return p, apperr.Validation("lat", "lat must be between -90 and 90")
	}
	if p.lon < -180 || p.lon > 180 {
		return p, apperr.Validation("lon", "lon must be between -180 and 180")
	}

	if p.observedAt, err = ParseTimestamp(string(in.Timestamp), loc); err != nil {
		return p, apperr.InvalidFormat("timestamp", err)
	}
	if p.observedAt.After(now) {
		return p, apperr.FutureTimestamp("timestamp")
	}

	if err := validate.V().Var(strings.TrimSpace(in.ReporterEmail), "email,max=254"); err != nil {
		return p, apperr.Validation("reporter_email", "reporter_email is not a valid email address")
	}
	return p, nil
}

func parseCoord(s Scalar) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("coordinate is not finite")
	}
	return f, nil
}
