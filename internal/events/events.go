// Package events announces committed changes to slots and meetings.
// Delivery is best-effort: a failed publish never undoes the change.
package events

import (
	"context"
	"time"

	"minidoodle/pkg/logger"
)

type Type string

const (
	SlotCreated       Type = "slot.created"
	SlotUpdated       Type = "slot.updated"
	SlotDeleted       Type = "slot.deleted"
	SlotStatusChanged Type = "slot.status_changed"

	MeetingBooked    Type = "meeting.booked"
	MeetingUpdated   Type = "meeting.updated"
	MeetingCancelled Type = "meeting.cancelled"
)

// Event is one committed change. Key orders events: all events of a
// calendar share the calendar id.
type Event struct {
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

const publishTimeout = 5 * time.Second

// Emit publishes evt after the change has committed and logs, rather than
// returns, a failure.
func Emit(ctx context.Context, p Publisher, log *logger.Logger, evtType Type, key string, data any) {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := Event{
		Type:       evtType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if err := p.Publish(ctx, evt); err != nil {
		log.Warn("Failed to publish event",
			"event_type", evtType,
			"key", key,
			"error", err,
		)
	}
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error {
	return nil
}
