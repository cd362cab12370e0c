package sightings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/logging"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/store/memstore"
)

var (
	cst = time.FixedZone("CST", -6*60*60)
	now = time.Date(2024, 6, 1, 12, 0, 0, 0, cst)
)

type fixture struct {
	store   *memstore.Store
	pub     *events.Memory
	svc     *Service
	species int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	st := s.AddConservationStatus("EN", "En Peligro")
	sp := s.AddSpecies(memstore.SpeciesSeed{ID: 7, CommonName: "Tortuga carey", ScientificName: "Eretmochelys imbricata", StatusID: st})
	pub := &events.Memory{}
	return &fixture{
		store: s,
		pub:   pub,
		svc: &Service{
			Store:       s,
			Publisher:   pub,
			Metrics:     metrics.Nop{},
			Log:         logging.Discard(),
			ServiceName: "sway-api",
			Location:    cst,
			Now:         func() time.Time { return now },
		},
		species: sp,
	}
}

func validInput() Input {
	return Input{
		SpeciesID:     "7",
		Timestamp:     "2024-03-01T10:30",
		Latitude:      "20.5",
		Longitude:     "-105.2",
		ReporterName:  "Ana López",
		ReporterEmail: "a@x.mx",
	}
}

func TestReportNewReporter(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Report(context.Background(), principal.Anonymous, validInput())
	require.NoError(t, err)
	assert.True(t, res.NewUser)

	u, ok := f.store.UserByEmail("a@x.mx")
	require.True(t, ok)
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, "López", u.PaternalSurname)

	sightings := f.store.Sightings()
	require.Len(t, sightings, 1)
	sg := sightings[0]
	assert.Equal(t, int64(7), sg.SpeciesID)
	assert.Equal(t, u.ID, sg.UserID)
	assert.Equal(t, 20.5, sg.Latitude)
	assert.Equal(t, -105.2, sg.Longitude)
	assert.True(t, sg.ObservedAt.Equal(time.Date(2024, 3, 1, 10, 30, 0, 0, cst)))

	sent := f.pub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, events.TopicSightingReported, sent[0].Topic)
	payload, err := events.Decode[events.SightingReported](sent[0].Envelope)
	require.NoError(t, err)
	assert.Equal(t, res.SightingID, payload.SightingID)
}

func TestReportReusesExistingReporter(t *testing.T) {
	f := newFixture(t)
	id := f.store.AddUser(store.NewUser{FirstName: "Ana", PaternalSurname: "López", Email: "a@x.mx"})

	in := validInput()
	in.ReporterEmail = "A@X.MX"
	res, err := f.svc.Report(context.Background(), principal.Anonymous, in)
	require.NoError(t, err)
	assert.False(t, res.NewUser)
	assert.Equal(t, id, res.UserID)
	assert.Len(t, f.store.Users(), 1)
}

func TestTimestampRoundTrip(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T10:30":          time.Date(2024, 3, 1, 10, 30, 0, 0, cst),
		"2024-03-01T10:30:45":       time.Date(2024, 3, 1, 10, 30, 45, 0, cst),
		"2024-03-01 10:30:45.250":   time.Date(2024, 3, 1, 10, 30, 45, 250e6, cst),
		"2024-03-01 10:30":          time.Date(2024, 3, 1, 10, 30, 0, 0, cst),
		"2024-03-01T16:30:00Z":      time.Date(2024, 3, 1, 10, 30, 0, 0, cst),
		"2024-03-01T10:30:00-06:00": time.Date(2024, 3, 1, 10, 30, 0, 0, cst),
		"2024-03-01":                time.Date(2024, 3, 1, 0, 0, 0, 0, cst),
	}
	for in, want := range cases {
		f := newFixture(t)
		si := validInput()
		si.Timestamp = Scalar(in)
		_, err := f.svc.Report(context.Background(), principal.Anonymous, si)
		require.NoError(t, err, in)
		got := f.store.Sightings()[0].ObservedAt
		assert.True(t, got.Truncate(time.Second).Equal(want.Truncate(time.Second)), "%s: got %s", in, got)
	}
}

func TestFutureTimestampCreatesNothing(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Timestamp = Scalar(now.Add(time.Minute).Format("2006-01-02T15:04:05"))

	_, err := f.svc.Report(context.Background(), principal.Anonymous, in)
	assert.ErrorIs(t, err, apperr.ErrFutureTimestamp)
	assert.Empty(t, f.store.Users())
	assert.Empty(t, f.store.Sightings())
	assert.Empty(t, f.pub.Sent())
}

func TestTimestampEqualToNowIsAccepted(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Timestamp = Scalar(now.Format("2006-01-02T15:04:05"))
	_, err := f.svc.Report(context.Background(), principal.Anonymous, in)
	assert.NoError(t, err)
}

func TestUnknownSpeciesRollsBackReporter(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.SpeciesID = "999"

	_, err := f.svc.Report(context.Background(), principal.Anonymous, in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.store.Users(), "user creation rolled back with the report")
	assert.Empty(t, f.store.Sightings())
}

func TestValidationOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input)
		field  string
		code   string
	}{
		{"missing species", func(i *Input) { i.SpeciesID = "" }, "species_id", apperr.CodeValidation},
		{"missing timestamp beats bad species", func(i *Input) { i.Timestamp = ""; i.SpeciesID = "x" }, "timestamp", apperr.CodeValidation},
		{"missing email", func(i *Input) { i.ReporterEmail = " " }, "reporter_email", apperr.CodeValidation},
		{"species not a number", func(i *Input) { i.SpeciesID = "seven" }, "species_id", apperr.CodeInvalidFormat},
		{"lat not a number", func(i *Input) { i.Latitude = "north" }, "lat", apperr.CodeInvalidFormat},
		{"lat out of range", func(i *Input) { i.Latitude = "90.5" }, "lat", apperr.CodeValidation},
		{"lon out of range", func(i *Input) { i.Longitude = "-181" }, "lon", apperr.CodeValidation},
		{"bad email", func(i *Input) { i.ReporterEmail = "nope" }, "reporter_email", apperr.CodeValidation},
		{"bad timestamp", func(i *Input) { i.Timestamp = "01/03/2024" }, "timestamp", apperr.CodeInvalidFormat},
		{"future timestamp beats bad email", func(i *Input) { i.Timestamp = "2030-01-01T00:00"; i.ReporterEmail = "nope" }, "timestamp", apperr.CodeFutureTimestamp},
		{"bad timestamp beats bad email", func(i *Input) { i.Timestamp = "soon"; i.ReporterEmail = "nope" }, "timestamp", apperr.CodeInvalidFormat},
		{"name required with name parts", func(i *Input) { i.ReporterName = ""; i.FirstName = "Beatriz" }, "reporter_name", apperr.CodeValidation},
		{"coercion before timestamp", func(i *Input) { i.Timestamp = "garbage"; i.Longitude = "east" }, "lon", apperr.CodeInvalidFormat},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			c.mutate(&in)
			_, err := f.svc.Report(context.Background(), principal.Anonymous, in)
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, c.field, ae.Field)
			assert.Equal(t, c.code, ae.Code)
			assert.Empty(t, f.store.Sightings())
		})
	}
}

func TestExplicitNamePartsWin(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.FirstName = "Beatriz"
	in.PaternalSurname = "Ramos"
	_, err := f.svc.Report(context.Background(), principal.Anonymous, in)
	require.NoError(t, err)
	u, _ := f.store.UserByEmail("a@x.mx")
	assert.Equal(t, "Beatriz", u.FirstName)
	assert.Equal(t, "Ramos", u.PaternalSurname)
}

func TestScalarAcceptsNumbers(t *testing.T) {
	var in Input
	body := `{"species_id":7,"timestamp":"2024-03-01T10:30","lat":20.5,"lon":"-105.2","reporter_name":"Ana","reporter_email":"a@x.mx"}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	assert.Equal(t, Scalar("7"), in.SpeciesID)
	assert.Equal(t, Scalar("20.5"), in.Latitude)

	assert.Error(t, json.Unmarshal([]byte(`{"lat":true}`), &in))
}

func TestPublishFailureDoesNotFailReport(t *testing.T) {
	f := newFixture(t)
	f.pub.Err = errors.New("broker down")
	_, err := f.svc.Report(context.Background(), principal.Anonymous, validInput())
	require.NoError(t, err)
	assert.Len(t, f.store.Sightings(), 1)
}

func TestRecentHidesEmailsFromGuests(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Report(context.Background(), principal.Anonymous, validInput())
	require.NoError(t, err)

	guest, err := f.svc.Recent(context.Background(), principal.Anonymous, 10)
	require.NoError(t, err)
	require.Len(t, guest, 1)
	assert.Empty(t, guest[0].ReporterEmail)
	assert.Equal(t, "Ana López", guest[0].ReporterName)
	assert.Equal(t, "Tortuga carey", guest[0].CommonName)

	collab, err := f.svc.Recent(context.Background(), principal.Principal{UserID: 1, Capability: principal.Collaborator}, 10)
	require.NoError(t, err)
	assert.Equal(t, "a@x.mx", collab[0].ReporterEmail)
}
