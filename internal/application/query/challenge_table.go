package query

import (
	"github.com/wakeup-hub/wakeup-hub/internal/domain/challenge"
	"github.com/wakeup-hub/wakeup-hub/internal/domain/leveling"
)

// ChallengeTableView is the static reward configuration shared with clients,
// so the app and the engine read the same numbers.
type ChallengeTableView struct {
	Challenges []challenge.Name  `json:"challenges"`
	Levels     []challenge.Level `json:"levels"`
	MaxLevel   int               `json:"max_level"`
	XPBands    []leveling.Band   `json:"xp_bands"`
}

// ChallengeTable returns the current tables.
func ChallengeTable() ChallengeTableView {
	return ChallengeTableView{
		Challenges: append([]challenge.Name(nil), challenge.Names...),
		Levels:     append([]challenge.Level(nil), challenge.Table...),
		MaxLevel:   challenge.MaxLevel,
		XPBands:    append([]leveling.Band(nil), leveling.Bands...),
	}
}
