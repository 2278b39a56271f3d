// Package events carries the engine's notifications: availability changes and
// hold transitions. Publishing is best effort and never gates a state change.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	AvailabilityChanged Type = "availability.changed"
	HoldCreated         Type = "hold.created"
	HoldConfirmed       Type = "hold.confirmed"
	HoldCancelled       Type = "hold.cancelled"
	HoldExpired         Type = "hold.expired"
)

// Event is the envelope published for every notification.
type Event struct {
	ID         string         `json:"event_id"`
	Type       Type           `json:"event_type"`
	CourtID    string         `json:"court_id"`
	Date       string         `json:"date,omitempty"`
	HoldID     string         `json:"hold_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id.
func New(typ Type, courtID, date string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		CourtID:    courtID,
		Date:       date,
		OccurredAt: at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishBestEffort publishes evt and logs, rather than returns, a failure.
func PublishBestEffort(ctx context.Context, p Publisher, evt Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("event_type", string(evt.Type)).
			Str("court_id", evt.CourtID).
			Str("hold_id", evt.HoldID).
			Msg("Failed to publish event")
	}
}
