package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/alarm"
)

// ══════════════════════════════════════════════════════════════════════════════
// WAKE SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// planScript swaps a user's member in one step: KEYS[1] is the schedule,
// KEYS[2] the user -> member index.
var planScript = redis.NewScript(`
local prev = redis.call("HGET", KEYS[2], ARGV[1])
if prev and prev ~= ARGV[2] then
	redis.call("ZREM", KEYS[1], prev)
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[2])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// cancelScript removes whatever member the index holds for the user.
var cancelScript = redis.NewScript(`
local prev = redis.call("HGET", KEYS[2], ARGV[1])
if not prev then
	return 0
end
redis.call("ZREM", KEYS[1], prev)
redis.call("HDEL", KEYS[2], ARGV[1])
return 1
`)

// WakeSchedule implements alarm.WakeSchedule with a sorted set scored by
// unix seconds. Members are "userID|alarmID". The previous member is read and
// replaced inside one script, so concurrent replans leave each user with
// exactly one entry.
type WakeSchedule struct {
	client redis.UniversalClient
	key    string
}

// NewWakeSchedule creates a WakeSchedule on KeyWakeSchedule.
func NewWakeSchedule(cache *Cache) *WakeSchedule {
	return &WakeSchedule{client: cache.Client(), key: KeyWakeSchedule}
}

// indexKey maps user id to the current member.
func (s *WakeSchedule) indexKey() string {
	return s.key + ":members"
}

func wakeMember(userID, alarmID string) string {
	return userID + "|" + alarmID
}

func parseWakeMember(m string) (userID, alarmID string) {
	userID, alarmID, _ = strings.Cut(m, "|")
	return userID, alarmID
}

// Plan replaces the user's planned wake-up with occ.
func (s *WakeSchedule) Plan(ctx context.Context, userID string, occ alarm.Occurrence) error {
	keys := []string{s.key, s.indexKey()}
	err := planScript.Run(ctx, s.client, keys, userID, wakeMember(userID, occ.AlarmID), occ.At.Unix()).Err()
	if err != nil {
		return fmt.Errorf("plan wake-up for %s: %w", userID, err)
	}
	return nil
}

// Cancel removes the user's planned wake-up, if any.
func (s *WakeSchedule) Cancel(ctx context.Context, userID string) error {
	if err := cancelScript.Run(ctx, s.client, []string{s.key, s.indexKey()}, userID).Err(); err != nil {
		return fmt.Errorf("cancel wake-up for %s: %w", userID, err)
	}
	return nil
}

// Due returns wake-ups planned at or before now, earliest first.
func (s *WakeSchedule) Due(ctx context.Context, now time.Time, limit int) ([]alarm.PlannedWake, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("load due wake-ups: %w", err)
	}

	out := make([]alarm.PlannedWake, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		userID, alarmID := parseWakeMember(m)
		out = append(out, alarm.PlannedWake{
			UserID:  userID,
			AlarmID: alarmID,
			At:      time.Unix(int64(z.Score), 0).UTC(),
		})
	}
	return out, nil
}
