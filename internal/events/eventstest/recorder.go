// Package eventstest provides an in-process publisher for tests that assert
// on the events a component emits.
package eventstest

import (
	"context"
	"errors"

	"github.com/nekogravitycat/court-booking-engine/internal/events"
)

var ErrDropped = errors.New("event dropped: recorder buffer full")

// Recorder buffers published events for a single reader. A full buffer drops
// the event rather than blocking the publisher.
type Recorder struct {
	ch chan events.Event
}

func NewRecorder(buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	return &Recorder{ch: make(chan events.Event, buffer)}
}

func (r *Recorder) Publish(_ context.Context, evt events.Event) error {
	select {
	case r.ch <- evt:
		return nil
	default:
		return ErrDropped
	}
}

// Events returns the receive side of the buffer.
func (r *Recorder) Events() <-chan events.Event {
	return r.ch
}
