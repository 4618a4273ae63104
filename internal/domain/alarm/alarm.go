// Package alarm contains the alarm model and the weekly recurrence rules
// used to compute when the next alarm fires.
package alarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// NewTimeOfDay validates and creates a TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.IsValid() {
		return TimeOfDay{}, shared.ErrInvalidTimeOfDay
	}
	return t, nil
}

// IsValid checks the hour and minute ranges.
func (t TimeOfDay) IsValid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Days is the set of weekdays an alarm is enabled on, one bit per time.Weekday.
type Days uint8

// Everyday has all seven bits set.
const Everyday Days = 1<<7 - 1

var weekdayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// NewDays builds a set from weekdays.
func NewDays(days ...time.Weekday) Days {
	var d Days
	for _, wd := range days {
		d = d.With(wd)
	}
	return d
}

// ParseDays builds a set from names such as "mon" or "Monday".
func ParseDays(names []string) (Days, error) {
	var d Days
	for _, name := range names {
		wd, err := ParseWeekday(name)
		if err != nil {
			return 0, err
		}
		d = d.With(wd)
	}
	return d, nil
}

// ParseWeekday accepts three-letter or full English names, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) >= 3 {
		for i, short := range weekdayNames {
			if n == short || n == strings.ToLower(time.Weekday(i).String()) {
				return time.Weekday(i), nil
			}
		}
	}
	return 0, shared.WrapError("alarm", "ParseWeekday", shared.ErrInvalidWeekday, "unknown weekday", fmt.Errorf("%q", name))
}

// With returns the set with wd added.
func (d Days) With(wd time.Weekday) Days {
	return d | 1<<uint(wd)
}

// Has reports whether wd is in the set.
func (d Days) Has(wd time.Weekday) bool {
	return d&(1<<uint(wd)) != 0
}

// IsEmpty reports whether no day is selected.
func (d Days) IsEmpty() bool {
	return d&Everyday == 0
}

// Weekdays lists the selected days, Monday first.
func (d Days) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for i := 1; i <= 7; i++ {
		wd := time.Weekday(i % 7)
		if d.Has(wd) {
			out = append(out, wd)
		}
	}
	return out
}

// Names lists the selected days as short lowercase names, Monday first.
func (d Days) Names() []string {
	wds := d.Weekdays()
	out := make([]string, len(wds))
	for i, wd := range wds {
		out[i] = weekdayNames[wd]
	}
	return out
}

// MarshalJSON encodes the set as a list of day names.
func (d Days) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Names())
}

// UnmarshalJSON decodes a list of day names.
func (d *Days) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseDays(names)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ALARM
// ══════════════════════════════════════════════════════════════════════════════

// Alarm is a weekly recurring wake-up time owned by a user.
type Alarm struct {
	ID        string    `json:"id"`
	Time      TimeOfDay `json:"time"`
	Days      Days      `json:"days"`
	Enabled   bool      `json:"enabled"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxLabelLength bounds the free-text alarm label.
const MaxLabelLength = 64

// New validates and creates an enabled alarm.
func New(id string, at TimeOfDay, days Days, label string, now time.Time) (*Alarm, error) {
	a := &Alarm{
		ID:        id,
		Enabled:   true,
		CreatedAt: now,
	}
	if err := a.Edit(at, days, label, now); err != nil {
		return nil, err
	}
	return a, nil
}

// Edit replaces time, days and label after validating them.
func (a *Alarm) Edit(at TimeOfDay, days Days, label string, now time.Time) error {
	if !at.IsValid() {
		return shared.ErrInvalidTimeOfDay
	}
	label = strings.TrimSpace(label)
	if len(label) > MaxLabelLength {
		return shared.NewDomainError("alarm", "Validate", shared.ErrValidation, "label is too long")
	}
	a.Time = at
	a.Days = days & Everyday
	a.Label = label
	a.UpdatedAt = now
	return nil
}

// SetEnabled switches the alarm on or off.
func (a *Alarm) SetEnabled(enabled bool, now time.Time) {
	a.Enabled = enabled
	a.UpdatedAt = now
}

// IsActive reports whether the alarm can fire at all.
func (a Alarm) IsActive() bool {
	return a.Enabled && !a.Days.IsEmpty()
}
