package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Feature names.
const (
	FeatureWakePush     = "wake.push"           // deliver due wake-ups through the push gateway
	FeatureEventJournal = "events.journal"      // append events to user_events
	FeatureActivityLog  = "events.activity_log" // log events as they arrive
	FeatureUserCache    = "storage.user_cache"  // read users through Redis
	FeatureReplanJob    = "scheduler.replan"    // periodic full replan
)

var defaultFeatures = []Feature{
	{Name: FeatureWakePush, Description: "Push due wake-ups to devices"},
	{Name: FeatureEventJournal, Description: "Persist domain events"},
	{Name: FeatureActivityLog, Description: "Log domain events"},
	{Name: FeatureUserCache, Description: "Cache user aggregates in Redis"},
	{Name: FeatureReplanJob, Description: "Replan every user's next wake-up on a schedule"},
}

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is one toggle. RolloutPercent below 100 enables it for a stable
// subset of users picked by hashing the user id with the feature name.
type Feature struct {
	Name           string
	Description    string
	Enabled        bool
	RolloutPercent int

	// Optional activation window.
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

func (f *Feature) set(percent int) {
	f.RolloutPercent = percent
	f.Enabled = percent > 0
}

// FeatureContext narrows an evaluation to one user.
type FeatureContext struct {
	UserID string
}

// FeatureFlags holds every feature plus per-user overrides.
type FeatureFlags struct {
	mu        sync.RWMutex
	features  map[string]*Feature
	overrides map[string]map[string]bool // user id -> feature -> enabled
	now       func() time.Time
}

// LoadFeatureFlags starts from the defaults (everything on), applies the YAML
// overlay and then FEATURE_* environment variables.
func LoadFeatureFlags(overlay map[string]string) *FeatureFlags {
	ff := newFeatureFlags()
	for name, val := range overlay {
		ff.apply(name, val)
	}
	for name := range ff.features {
		if val := os.Getenv(featureEnvKey(name)); val != "" {
			ff.apply(name, val)
		}
	}
	return ff
}

func newFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature, len(defaultFeatures)),
		overrides: make(map[string]map[string]bool),
		now:       time.Now,
	}
	for _, f := range defaultFeatures {
		f := f
		f.set(100)
		ff.features[f.Name] = &f
	}
	return ff
}

// apply accepts "true", "false", "25" or "25%". Unknown features and bad
// values are ignored.
func (ff *FeatureFlags) apply(name, val string) {
	f, ok := ff.features[name]
	if !ok {
		return
	}
	val = strings.TrimSpace(val)
	if on, err := strconv.ParseBool(val); err == nil {
		if on {
			f.set(100)
		} else {
			f.set(0)
		}
		return
	}
	if p, err := strconv.Atoi(strings.TrimSuffix(val, "%")); err == nil && p >= 0 && p <= 100 {
		f.set(p)
	}
}

// featureEnvKey maps "wake.push" to FEATURE_WAKE_PUSH.
func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled evaluates a feature. A user override wins over everything else.
// With a nil context a partial rollout counts as enabled.
func (ff *FeatureFlags) IsEnabled(name string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	userID := ""
	if ctx != nil {
		userID = ctx.UserID
	}
	if enabled, ok := ff.overrides[userID][name]; ok && userID != "" {
		return enabled
	}

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}
	now := ff.now()
	if (f.EnabledFrom != nil && now.Before(*f.EnabledFrom)) ||
		(f.EnabledUntil != nil && now.After(*f.EnabledUntil)) {
		return false
	}
	if f.RolloutPercent < 100 && userID != "" {
		return rolloutBucket(userID, name) < f.RolloutPercent
	}
	return f.RolloutPercent > 0
}

func rolloutBucket(userID, name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// SetUserOverride pins a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.overrides[userID] == nil {
		ff.overrides[userID] = make(map[string]bool)
	}
	ff.overrides[userID][name] = enabled
}

// ClearUserOverrides drops every override for userID.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, userID)
}

// SetRolloutPercent changes the rollout; 0 disables the feature.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	f, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	f.set(percent)
	return nil
}

// EnableFeature is SetRolloutPercent(name, 100).
func (ff *FeatureFlags) EnableFeature(name string) error {
	return ff.SetRolloutPercent(name, 100)
}

// DisableFeature is SetRolloutPercent(name, 0).
func (ff *FeatureFlags) DisableFeature(name string) error {
	return ff.SetRolloutPercent(name, 0)
}

// GetAllFeatures returns a snapshot keyed by name.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make(map[string]Feature, len(ff.features))
	for name, f := range ff.features {
		out[name] = *f
	}
	return out
}
