package challenge

import (
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/sleep"
)

// Challenge is a user's standing in one challenge.
type Challenge struct {
	Name      Name `json:"name"`
	Level     int  `json:"level"`
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
	Mastered  bool `json:"mastered"`
}

// Current returns the table row the user is working toward.
func (c Challenge) Current() Level {
	return LevelInfo(c.Level)
}

// Reward is the XP credited by one collection.
type Reward struct {
	Name  Name `json:"name"`
	Level int  `json:"level"` // level that was completed
	XP    int  `json:"xp"`
}

// Set holds one Challenge per name in Names order.
type Set []Challenge

// NewSet returns every challenge at level 1.
func NewSet() Set {
	s := make(Set, len(Names))
	for i, n := range Names {
		s[i] = Challenge{Name: n, Level: 1}
	}
	return s
}

// Normalize adds challenges missing from a stored set and drops unknown ones,
// keeping existing levels.
func (s Set) Normalize() Set {
	out := NewSet()
	for i := range out {
		if c, ok := s.find(out[i].Name); ok {
			out[i] = c
			if out[i].Level < 1 {
				out[i].Level = 1
			}
		}
	}
	return out
}

// Get returns the challenge with the given name.
func (s Set) Get(name Name) (Challenge, bool) {
	return s.find(name)
}

// Evaluate recomputes progress from the sleep history and sets Completed when
// the streak reaches the current level's requirement. Call it after any change
// to the history, never after a collection.
func (s Set) Evaluate(history sleep.History, loc *time.Location) {
	closed := history.ClosedNewestFirst()
	for i := range s {
		c := &s[i]
		c.Progress = Streak(c.Name, closed, loc)
		if c.Mastered {
			c.Completed = false
			continue
		}
		c.Completed = c.Progress >= c.Current().RequiredStreak
	}
}

// Collect credits the reward of the current level and advances by one.
// expectedLevel, when set, must match the level being collected. Completed is
// cleared, so a second collection of the same completion fails.
func (s Set) Collect(name Name, expectedLevel *int) (Reward, error) {
	i := s.indexOf(name)
	if i < 0 {
		return Reward{}, shared.ErrUnknownChallenge
	}
	c := &s[i]

	if expectedLevel != nil && *expectedLevel != c.Level {
		return Reward{}, shared.ErrChallengeLevelChanged
	}
	if c.Mastered {
		return Reward{}, shared.ErrChallengeMastered
	}
	if !c.Completed {
		return Reward{}, shared.ErrChallengeNotCompleted
	}

	lvl := c.Current()
	r := Reward{Name: c.Name, Level: lvl.Level, XP: lvl.XPReward}

	c.Completed = false
	if c.Level >= MaxLevel {
		c.Mastered = true
	} else {
		c.Level++
	}
	return r, nil
}

func (s Set) find(name Name) (Challenge, bool) {
	if i := s.indexOf(name); i >= 0 {
		return s[i], true
	}
	return Challenge{}, false
}

func (s Set) indexOf(name Name) int {
	for i := range s {
		if s[i].Name == name {
			return i
		}
	}
	return -1
}
