// Package sightings records citizen-science species observations.
package sightings

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/users"
)

const workflow = "sighting_report"

type Service struct {
	Store     store.Store
	Publisher events.Publisher
	Metrics   metrics.Recorder
	Log       *slog.Logger

	ServiceName string
	Location    *time.Location
	Now         func() time.Time
}

type Result struct {
	SightingID int64     `json:"sighting_id"`
	UserID     int64     `json:"user_id"`
	NewUser    bool      `json:"new_user"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// Report validates in, then in one transaction finds or creates the
// reporter, checks the species and stores the sighting. Nothing is written
// when any step fails.
func (s *Service) Report(ctx context.Context, p principal.Principal, in Input) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.Metrics.RecordDuration(workflow, time.Since(start))
		s.Metrics.RecordOperation(workflow, outcome(err))
	}()

	v, err := in.check(s.location(), s.now())
	if err != nil {
		return Result{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, created, err := users.FindOrCreate(ctx, tx, users.Identity{
			Email:           in.ReporterEmail,
			FullName:        in.ReporterName,
			FirstName:       in.FirstName,
			PaternalSurname: in.PaternalSurname,
			MaternalSurname: in.MaternalSurname,
		})
		if err != nil {
			return err
		}

		ok, err := tx.SpeciesExists(ctx, v.speciesID)
		if err != nil {
			return errors.Wrap(err, "sightings: species lookup")
		}
		if !ok {
			return apperr.NotFound("species", v.speciesID)
		}

		id, err := tx.InsertSighting(ctx, store.Sighting{
			SpeciesID:  v.speciesID,
			UserID:     u.ID,
			ObservedAt: v.observedAt,
			Latitude:   v.lat,
			Longitude:  v.lon,
			Notes:      in.Notes,
		})
		if err != nil {
			return errors.Wrap(err, "sightings: insert")
		}
		res = Result{SightingID: id, UserID: u.ID, NewUser: created, ObservedAt: v.observedAt}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.publish(ctx, res, v)
	s.Log.Info("sighting reported",
		"sighting_id", res.SightingID, "species_id", v.speciesID, "user_id", res.UserID,
		"new_user", res.NewUser, "capability", p.Capability.String())
	return res, nil
}

func (s *Service) publish(ctx context.Context, res Result, v parsed) {
	env, err := events.New(events.TypeSightingReported, s.ServiceName, "", "", events.SightingReported{
		SightingID: res.SightingID,
		SpeciesID:  v.speciesID,
		UserID:     res.UserID,
		ObservedAt: v.observedAt,
		Latitude:   v.lat,
		Longitude:  v.lon,
	})
	if err == nil {
		err = s.Publisher.Publish(ctx, events.TopicSightingReported, events.PartitionKey(v.speciesID), env)
	}
	if err != nil {
		s.Metrics.RecordEvent(events.TopicSightingReported, "dropped")
		s.Log.Warn("sighting event not published", "sighting_id", res.SightingID, "err", err)
		return
	}
	s.Metrics.RecordEvent(events.TopicSightingReported, "published")
}

// Recent lists the latest sightings with the reporter's display name.
// Reporter emails are kept for collaborators only.
func (s *Service) Recent(ctx context.Context, p principal.Principal, limit int) ([]store.SightingView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.Store.ListSightings(ctx, limit)
	if err != nil {
		return nil, err
	}
	staff := p.AtLeast(principal.Collaborator)
	for i := range list {
		list[i].ReporterName = users.FullName(list[i].Reporter)
		if !staff {
			list[i].ReporterEmail = ""
		}
	}
	return list, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.From(err).Code
}
