// Package leveling maps cumulative XP to a level band.
package leveling

import "sort"

// Unbounded marks the upper edge of the top band.
const Unbounded = -1

// Band is the half-open XP range [Min, Max) of one level.
type Band struct {
	Level int `json:"level"`
	Min   int `json:"min"`
	Max   int `json:"max"` // Unbounded for the last band
}

// Bands are contiguous and exhaustive from 0 upward.
var Bands = []Band{
	{Level: 1, Min: 0, Max: 100},
	{Level: 2, Min: 100, Max: 200},
	{Level: 3, Min: 200, Max: 350},
	{Level: 4, Min: 350, Max: 550},
	{Level: 5, Min: 550, Max: 800},
	{Level: 6, Min: 800, Max: 1100},
	{Level: 7, Min: 1100, Max: 1500},
	{Level: 8, Min: 1500, Max: 2000},
	{Level: 9, Min: 2000, Max: 2600},
	{Level: 10, Min: 2600, Max: 3300},
	{Level: 11, Min: 3300, Max: Unbounded},
}

// MaxLevel is the level of the unbounded band.
var MaxLevel = Bands[len(Bands)-1].Level

// Progress is where an XP total sits inside its band.
type Progress struct {
	Level   int     `json:"level"`
	XP      int     `json:"xp"`
	Percent float64 `json:"percent"`
	Band    Band    `json:"band"`
	// ToNext is the XP still needed for the next level, 0 at the top.
	ToNext int `json:"to_next"`
}

// For returns the band containing xp. Negative xp is treated as 0.
func For(xp int) Progress {
	if xp < 0 {
		xp = 0
	}
	// first band whose Min exceeds xp, then step back one
	i := sort.Search(len(Bands), func(i int) bool { return Bands[i].Min > xp }) - 1
	b := Bands[i]

	p := Progress{Level: b.Level, XP: xp, Band: b, Percent: 100}
	if b.Max != Unbounded {
		p.Percent = float64(xp-b.Min) / float64(b.Max-b.Min) * 100
		p.ToNext = b.Max - xp
	}
	return p
}

// LevelFor is For(xp).Level.
func LevelFor(xp int) int {
	return For(xp).Level
}
