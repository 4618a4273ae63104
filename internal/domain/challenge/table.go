// Package challenge computes streak-based challenge progress from sleep history
// and credits XP when a completed level is collected.
package challenge

// Name identifies one of the fixed challenges.
type Name string

const (
	EarlyBird          Name = "EarlyBird"
	ConsistentSchedule Name = "ConsistentSchedule"
	NoSnoozeMaster     Name = "NoSnoozeMaster"
	SleepChampion      Name = "SleepChampion"
)

// Names lists every challenge in display order.
var Names = []Name{EarlyBird, ConsistentSchedule, NoSnoozeMaster, SleepChampion}

// ParseName checks that s names a known challenge.
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Tier is the cosmetic label of a level.
type Tier string

const (
	Bronze  Tier = "BRONZE"
	Silver  Tier = "SILVER"
	Gold    Tier = "GOLD"
	Diamond Tier = "DIAMOND"
)

// Level is one row of the tier table.
type Level struct {
	Level          int  `json:"level"`
	RequiredStreak int  `json:"required_streak"`
	XPReward       int  `json:"xp_reward"`
	Tier           Tier `json:"tier"`
}

// Table is shared by every challenge. Required streak and reward strictly increase.
var Table = []Level{
	{Level: 1, RequiredStreak: 3, XPReward: 25, Tier: Bronze},
	{Level: 2, RequiredStreak: 5, XPReward: 50, Tier: Silver},
	{Level: 3, RequiredStreak: 7, XPReward: 75, Tier: Gold},
	{Level: 4, RequiredStreak: 14, XPReward: 100, Tier: Diamond},
	{Level: 5, RequiredStreak: 21, XPReward: 150, Tier: Diamond},
	{Level: 6, RequiredStreak: 30, XPReward: 200, Tier: Diamond},
}

// MaxLevel is the last level that can be collected.
var MaxLevel = Table[len(Table)-1].Level

// LevelInfo returns the table row for level, clamped into the table.
func LevelInfo(level int) Level {
	switch {
	case level < 1:
		return Table[0]
	case level > MaxLevel:
		return Table[len(Table)-1]
	}
	return Table[level-1]
}
