package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

// EventJournal appends domain events to user_events. It is subscribed to the
// event bus and is best-effort: a failed insert is returned to the bus, which
// logs it.
type EventJournal struct {
	conn    *Connection
	timeout time.Duration
}

// NewEventJournal creates an EventJournal.
func NewEventJournal(conn *Connection) *EventJournal {
	return &EventJournal{conn: conn, timeout: DefaultQueryTimeout}
}

// Handle implements shared.EventHandler.
func (j *EventJournal) Handle(event shared.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("event journal: marshal %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err = j.conn.Exec(ctx,
		`INSERT INTO user_events (user_id, event_type, payload, occurred_at) VALUES ($1, $2, $3, $4)`,
		event.AggregateID(), string(event.EventType()), payload, event.OccurredAt(),
	)
	if err != nil {
		return fmt.Errorf("event journal: insert %s: %w", event.EventType(), err)
	}
	return nil
}
