package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(context.Context, Event) error {
	c.n++
	return nil
}

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	healthy := &countingPublisher{}
	f := Fanout{healthy, failingPublisher{err: boom}, Nop{}}

	err := f.Publish(context.Background(), New(HoldCreated, "court-1", "", time.Now()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, healthy.n, "healthy publishers still receive the event")
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))

	_, err := NewKafkaPublisher("", "topic")
	assert.Error(t, err)
}
