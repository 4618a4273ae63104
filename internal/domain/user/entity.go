// Package user contains the User aggregate root. Every mutation of alarms,
// sleep sessions, wake-ups and challenges goes through its methods so that
// the aggregate invariants are checked before anything is written.
package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/leveling"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
	"github.com/wakeup-hub/wakeup-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE ROOT
// ══════════════════════════════════════════════════════════════════════════════

// User owns alarms, sleep history, wake-ups, challenges, XP and friend lists.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	Timezone     string `json:"timezone"`

	XP         int            `json:"xp"`
	Alarms     []alarm.Alarm  `json:"alarms"`
	Sessions   sleep.History  `json:"sleep_sessions"`
	WakeUps    []sleep.WakeUp `json:"wakeups"`
	Challenges challenge.Set  `json:"challenges"`

	Friends          []string `json:"friends"`
	OutgoingRequests []string `json:"outgoing_requests"`
	IncomingRequests []string `json:"incoming_requests"`

	// Version is bumped by the store on every successful save.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	pending []shared.Event
}

// NewUserParams holds the fields needed to register a user.
type NewUserParams struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	DisplayName  string
	Timezone     string
}

// New validates params and creates a user with every challenge at level 1.
func New(params NewUserParams, now time.Time) (*User, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("user", "New", shared.ErrValidation, "user id is required")
	}

	email := NormalizeEmail(params.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, shared.WrapError("user", "New", shared.ErrValidation, "invalid email", err)
	}

	username := strings.TrimSpace(params.Username)
	if len(username) < 2 || len(username) > 32 || strings.ContainsAny(username, " \t\r\n") {
		return nil, shared.NewDomainError("user", "New", shared.ErrValidation, "username must be 2-32 chars without whitespace")
	}

	if !timeutil.ValidLocation(params.Timezone) {
		return nil, shared.NewDomainError("user", "New", shared.ErrValidation, fmt.Sprintf("unknown timezone %q", params.Timezone))
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName = username
	}

	u := &User{
		ID:               params.ID,
		Email:            email,
		Username:         username,
		PasswordHash:     params.PasswordHash,
		DisplayName:      displayName,
		Timezone:         strings.TrimSpace(params.Timezone),
		Alarms:           []alarm.Alarm{},
		Sessions:         sleep.History{},
		WakeUps:          []sleep.WakeUp{},
		Challenges:       challenge.NewSet(),
		Friends:          []string{},
		OutgoingRequests: []string{},
		IncomingRequests: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	u.record(shared.NewUserRegisteredEvent(u.ID, u.Email, u.Username))
	return u, nil
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Location returns the user's time zone, UTC when unset.
func (u *User) Location() *time.Location {
	return timeutil.LoadLocation(u.Timezone)
}

// Level returns the leveling band for the user's XP.
func (u *User) Level() leveling.Progress {
	return leveling.For(u.XP)
}

// PullEvents returns and clears events recorded since the last call.
func (u *User) PullEvents() []shared.Event {
	out := u.pending
	u.pending = nil
	return out
}

func (u *User) record(e shared.Event) {
	u.pending = append(u.pending, e)
}

func (u *User) touch(now time.Time) {
	u.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// ALARMS
// ══════════════════════════════════════════════════════════════════════════════

// AlarmChange describes an alarm edit. Nil fields are left unchanged.
type AlarmChange struct {
	Time  *alarm.TimeOfDay
	Days  *alarm.Days
	Label *string
}

// AddAlarm appends a new enabled alarm.
func (u *User) AddAlarm(id string, at alarm.TimeOfDay, days alarm.Days, label string, now time.Time) (alarm.Alarm, error) {
	a, err := alarm.New(id, at, days, label, now)
	if err != nil {
		return alarm.Alarm{}, err
	}
	u.Alarms = append(u.Alarms, *a)
	u.touch(now)
	u.record(shared.NewAlarmsChangedEvent(u.ID, id, shared.AlarmCreated))
	return *a, nil
}

// EditAlarm applies change to the alarm with the given id.
func (u *User) EditAlarm(id string, change AlarmChange, now time.Time) (alarm.Alarm, error) {
	i := u.alarmIndex(id)
	if i < 0 {
		return alarm.Alarm{}, shared.ErrAlarmNotFound
	}
	a := u.Alarms[i]
	at, days, label := a.Time, a.Days, a.Label
	if change.Time != nil {
		at = *change.Time
	}
	if change.Days != nil {
		days = *change.Days
	}
	if change.Label != nil {
		label = *change.Label
	}
	if err := a.Edit(at, days, label, now); err != nil {
		return alarm.Alarm{}, err
	}
	u.Alarms[i] = a
	u.touch(now)
	u.record(shared.NewAlarmsChangedEvent(u.ID, id, shared.AlarmEdited))
	return a, nil
}

// ToggleAlarm sets the enabled flag. A nil enabled flips the current value.
func (u *User) ToggleAlarm(id string, enabled *bool, now time.Time) (alarm.Alarm, error) {
	i := u.alarmIndex(id)
	if i < 0 {
		return alarm.Alarm{}, shared.ErrAlarmNotFound
	}
	want := !u.Alarms[i].Enabled
	if enabled != nil {
		want = *enabled
	}
	u.Alarms[i].SetEnabled(want, now)
	u.touch(now)
	u.record(shared.NewAlarmsChangedEvent(u.ID, id, shared.AlarmToggled))
	return u.Alarms[i], nil
}

// DeleteAlarm removes the alarm with the given id, keeping the order of the rest.
func (u *User) DeleteAlarm(id string, now time.Time) error {
	i := u.alarmIndex(id)
	if i < 0 {
		return shared.ErrAlarmNotFound
	}
	u.Alarms = append(u.Alarms[:i], u.Alarms[i+1:]...)
	u.touch(now)
	u.record(shared.NewAlarmsChangedEvent(u.ID, id, shared.AlarmDeleted))
	return nil
}

// NextAlarm returns the soonest firing instant strictly after now.
func (u *User) NextAlarm(now time.Time) (alarm.Occurrence, bool) {
	return alarm.Next(now, u.Location(), u.Alarms)
}

func (u *User) alarmIndex(id string) int {
	for i := range u.Alarms {
		if u.Alarms[i].ID == id {
			return i
		}
	}
	return -1
}

// ══════════════════════════════════════════════════════════════════════════════
// SLEEP
// ══════════════════════════════════════════════════════════════════════════════

// StartSleep opens a sleep session.
func (u *User) StartSleep(id string, now time.Time) (sleep.Session, error) {
	s, err := u.Sessions.Start(id, now)
	if err != nil {
		return sleep.Session{}, err
	}
	u.touch(now)
	u.record(shared.NewSleepStartedEvent(u.ID, s.ID, s.StartTime))
	return s, nil
}

// EndSleep closes the session and re-evaluates challenge progress.
func (u *User) EndSleep(id string, now time.Time) (sleep.Session, error) {
	s, err := u.Sessions.End(id, now)
	if err != nil {
		return sleep.Session{}, err
	}
	u.Challenges.Evaluate(u.Sessions, u.Location())
	u.touch(now)
	elapsed, _ := s.Elapsed()
	u.record(shared.NewSleepEndedEvent(u.ID, s.ID, elapsed))
	return s, nil
}

// CurrentSleep returns the open session, if any.
func (u *User) CurrentSleep() (sleep.Session, bool) {
	return u.Sessions.CurrentOpen()
}

// SaveWakeUp records a mini-game result against the given session, or the
// latest one when no session is named. A snoozed wake-up marks that session
// as snoozed and re-evaluates challenges.
func (u *User) SaveWakeUp(w sleep.WakeUp, now time.Time) (sleep.WakeUp, error) {
	if w.SessionID == "" {
		if latest, ok := u.Sessions.Latest(); ok {
			w.SessionID = latest.ID
		}
	} else if !u.Sessions.Has(w.SessionID) {
		return sleep.WakeUp{}, shared.ErrSessionNotFound
	}

	if w.Snoozed() && w.SessionID != "" {
		if err := u.Sessions.MarkSnoozed(w.SessionID); err != nil {
			return sleep.WakeUp{}, err
		}
		u.Challenges.Evaluate(u.Sessions, u.Location())
	}
	u.WakeUps = append(u.WakeUps, w)
	u.touch(now)
	u.record(shared.NewWakeUpSavedEvent(u.ID, w.ID, string(w.Game), w.SnoozeCount))
	return w, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

// CollectReward credits the reward of a completed challenge level.
func (u *User) CollectReward(name challenge.Name, expectedLevel *int, now time.Time) (challenge.Reward, error) {
	before := u.Level().Level

	r, err := u.Challenges.Collect(name, expectedLevel)
	if err != nil {
		return challenge.Reward{}, err
	}
	u.XP += r.XP
	u.touch(now)
	u.record(shared.NewRewardCollectedEvent(u.ID, string(r.Name), r.Level, r.XP, u.XP))

	if after := u.Level().Level; after > before {
		u.record(shared.NewLevelUpEvent(u.ID, before, after))
	}
	return r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FRIENDS
// ══════════════════════════════════════════════════════════════════════════════

// IsFriend reports whether other is in the friend list.
func (u *User) IsFriend(other string) bool {
	return contains(u.Friends, other)
}

// HasIncoming reports whether other sent a pending request to u.
func (u *User) HasIncoming(other string) bool {
	return contains(u.IncomingRequests, other)
}

// HasOutgoing reports whether u sent a pending request to other.
func (u *User) HasOutgoing(other string) bool {
	return contains(u.OutgoingRequests, other)
}

// CanRequest checks whether u may send a friend request to other.
func (u *User) CanRequest(other string) error {
	if other == u.ID {
		return shared.ErrSelfFriendRequest
	}
	if u.IsFriend(other) {
		return shared.ErrAlreadyFriends
	}
	return nil
}

// RecordFriendEvent queues a social event; friend lists themselves are
// updated through Repository set primitives.
func (u *User) RecordFriendEvent(t shared.EventType, other string) {
	u.record(shared.NewFriendEvent(t, u.ID, other))
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY
// ══════════════════════════════════════════════════════════════════════════════

// Clone returns a deep copy without pending events.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.pending = nil
	c.Alarms = append([]alarm.Alarm(nil), u.Alarms...)
	c.Sessions = u.Sessions.Clone()
	c.WakeUps = append([]sleep.WakeUp(nil), u.WakeUps...)
	c.Challenges = append(challenge.Set(nil), u.Challenges...)
	c.Friends = append([]string(nil), u.Friends...)
	c.OutgoingRequests = append([]string(nil), u.OutgoingRequests...)
	c.IncomingRequests = append([]string(nil), u.IncomingRequests...)
	return &c
}

// Normalize fills nil collections and missing challenges after loading.
func (u *User) Normalize() {
	if u.Alarms == nil {
		u.Alarms = []alarm.Alarm{}
	}
	if u.Sessions == nil {
		u.Sessions = sleep.History{}
	}
	if u.WakeUps == nil {
		u.WakeUps = []sleep.WakeUp{}
	}
	u.Challenges = u.Challenges.Normalize()
	if u.Friends == nil {
		u.Friends = []string{}
	}
	if u.OutgoingRequests == nil {
		u.OutgoingRequests = []string{}
	}
	if u.IncomingRequests == nil {
		u.IncomingRequests = []string{}
	}
}
