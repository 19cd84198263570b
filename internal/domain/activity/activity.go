package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	PeriodID   string          `json:"periodId,omitempty"`
	EmployeeID string          `json:"employeeId,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// NewEvent fills id and timestamp and encodes payload when it is not nil.
func NewEvent(actorID, action, entityType, entityID string, payload any) (Event, error) {
	evt := Event{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal activity payload: %w", err)
		}
		evt.Payload = raw
	}
	return evt, nil
}

type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// Outcome reports what happened to a best-effort record attempt. Callers
// inspect it for logging and then drop it.
type Outcome struct {
	Event    Event
	Recorded bool
	Err      error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Try records evt and never fails the caller. A nil recorder counts as
// recorded nothing and is not an error.
func Try(ctx context.Context, rec Recorder, evt Event) (out Outcome) {
	out.Event = evt
	if rec == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.Recorded = false
			out.Err = fmt.Errorf("activity recorder panic: %v", r)
		}
	}()
	if err := rec.Record(ctx, evt); err != nil {
		out.Err = err
		return out
	}
	out.Recorded = true
	return out
}

type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Multi writes to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, evt Event) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
