package shared

import (
	"time"
)

// EventType names a domain event; the prefix before the dot is its area.
type EventType string

// Domain event types. Every mutation of the user aggregate emits at least one
// of these after it has been persisted.
const (
	EventUserRegistered EventType = "user.registered"

	EventAlarmsChanged EventType = "alarm.changed"

	EventSleepStarted EventType = "sleep.started"
	EventSleepEnded   EventType = "sleep.ended"
	EventWakeUpSaved  EventType = "sleep.wakeup_saved"

	EventRewardCollected EventType = "progress.reward_collected"
	EventLevelUp         EventType = "progress.level_up"

	EventFriendRequestSent EventType = "social.friend_request_sent"
	EventFriendshipMade    EventType = "social.friendship_made"
	EventFriendshipEnded   EventType = "social.friendship_ended"
)

// Event is a fact about one user aggregate. Payload is what the journal
// stores and the Redis bus ships between instances.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent carries the fields every event shares. Embedders add Payload.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: time.Now().UTC(), AggregateId: aggregateID}
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted after signup.
type UserRegisteredEvent struct {
	BaseEvent
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":    e.Email,
		"username": e.Username,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, email, username string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID),
		Email:     email,
		Username:  username,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Alarm Events
// ═══════════════════════════════════════════════════════════════════════════

// AlarmAction names the kind of alarm mutation.
type AlarmAction string

const (
	AlarmCreated AlarmAction = "created"
	AlarmEdited  AlarmAction = "edited"
	AlarmToggled AlarmAction = "toggled"
	AlarmDeleted AlarmAction = "deleted"
)

// AlarmsChangedEvent is emitted whenever the user's alarm set changes.
// Subscribers replan the next wake-up from the aggregate, not from the event.
type AlarmsChangedEvent struct {
	BaseEvent
	AlarmID string      `json:"alarm_id"`
	Action  AlarmAction `json:"action"`
}

// Payload implements Event interface.
func (e AlarmsChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"alarm_id": e.AlarmID,
		"action":   string(e.Action),
	}
}

// NewAlarmsChangedEvent creates a new AlarmsChangedEvent.
func NewAlarmsChangedEvent(userID, alarmID string, action AlarmAction) AlarmsChangedEvent {
	return AlarmsChangedEvent{
		BaseEvent: NewBaseEvent(EventAlarmsChanged, userID),
		AlarmID:   alarmID,
		Action:    action,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Sleep Events
// ═══════════════════════════════════════════════════════════════════════════

// SleepStartedEvent is emitted when a sleep session is opened.
type SleepStartedEvent struct {
	BaseEvent
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
}

// Payload implements Event interface.
func (e SleepStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"start_time": e.StartTime,
	}
}

// NewSleepStartedEvent creates a new SleepStartedEvent.
func NewSleepStartedEvent(userID, sessionID string, start time.Time) SleepStartedEvent {
	return SleepStartedEvent{
		BaseEvent: NewBaseEvent(EventSleepStarted, userID),
		SessionID: sessionID,
		StartTime: start,
	}
}

// SleepEndedEvent is emitted when a sleep session is closed.
type SleepEndedEvent struct {
	BaseEvent
	SessionID string        `json:"session_id"`
	Duration  time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SleepEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"duration":   e.Duration.String(),
	}
}

// NewSleepEndedEvent creates a new SleepEndedEvent.
func NewSleepEndedEvent(userID, sessionID string, duration time.Duration) SleepEndedEvent {
	return SleepEndedEvent{
		BaseEvent: NewBaseEvent(EventSleepEnded, userID),
		SessionID: sessionID,
		Duration:  duration,
	}
}

// WakeUpSavedEvent is emitted when a wake-up mini-game result is stored.
type WakeUpSavedEvent struct {
	BaseEvent
	WakeUpID    string `json:"wakeup_id"`
	Game        string `json:"game"`
	SnoozeCount int    `json:"snooze_count"`
}

// Payload implements Event interface.
func (e WakeUpSavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"wakeup_id":    e.WakeUpID,
		"game":         e.Game,
		"snooze_count": e.SnoozeCount,
	}
}

// NewWakeUpSavedEvent creates a new WakeUpSavedEvent.
func NewWakeUpSavedEvent(userID, wakeUpID, game string, snoozeCount int) WakeUpSavedEvent {
	return WakeUpSavedEvent{
		BaseEvent:   NewBaseEvent(EventWakeUpSaved, userID),
		WakeUpID:    wakeUpID,
		Game:        game,
		SnoozeCount: snoozeCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardCollectedEvent is emitted when a challenge reward is credited.
type RewardCollectedEvent struct {
	BaseEvent
	Challenge string `json:"challenge"`
	Level     int    `json:"level"` // level that was completed
	XPAwarded int    `json:"xp_awarded"`
	NewTotal  int    `json:"new_total"`
}

// Payload implements Event interface.
func (e RewardCollectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge":  e.Challenge,
		"level":      e.Level,
		"xp_awarded": e.XPAwarded,
		"new_total":  e.NewTotal,
	}
}

// NewRewardCollectedEvent creates a new RewardCollectedEvent.
func NewRewardCollectedEvent(userID, challenge string, level, xp, newTotal int) RewardCollectedEvent {
	return RewardCollectedEvent{
		BaseEvent: NewBaseEvent(EventRewardCollected, userID),
		Challenge: challenge,
		Level:     level,
		XPAwarded: xp,
		NewTotal:  newTotal,
	}
}

// LevelUpEvent is emitted when collected XP crosses a level band.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Social Events
// ═══════════════════════════════════════════════════════════════════════════

// FriendEvent covers every friend-list transition between two users.
type FriendEvent struct {
	BaseEvent
	OtherUserID string `json:"other_user_id"`
}

// Payload implements Event interface.
func (e FriendEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"other_user_id": e.OtherUserID,
	}
}

// NewFriendEvent creates a social event of the given type.
func NewFriendEvent(eventType EventType, userID, otherUserID string) FriendEvent {
	return FriendEvent{
		BaseEvent:   NewBaseEvent(eventType, userID),
		OtherUserID: otherUserID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
