// apps/duel-server/internal/presence/redis.go
//
// Redis-backed Tracker, used when REDIS_URL is configured so several server
// instances share one view of who is online.
//
// Keys:
//   - presence:session:{id}  hash {handle, name, seen}  (expires after retention)
//   - presence:user:{handle} last heartbeat, unix millis (expires after retention)
//
// Expiry does the retention sweep, so Cleanup is a no-op.

package presence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisTracker keeps presence in Redis.
type RedisTracker struct {
	rdb       redis.UniversalClient
	clock     clockwork.Clock
	retention time.Duration
}

// NewRedisTracker builds a RedisTracker. A zero retention uses DefaultRetention.
func NewRedisTracker(rdb redis.UniversalClient, clock clockwork.Clock, retention time.Duration) *RedisTracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisTracker{rdb: rdb, clock: clock, retention: retention}
}

func sessionKey(id string) string   { return "presence:session:" + id }
func userKey(handle string) string { return "presence:user:" + handle }

// Heartbeat records the session and refreshes its user's last-seen stamp.
func (t *RedisTracker) Heartbeat(ctx context.Context, sessionID, userHandle, displayName string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNoSession
	}
	seen := t.clock.Now().UnixMilli()

	fields := map[string]any{"seen": seen}
	if userHandle != "" {
		fields["handle"] = userHandle
	}
	if displayName != "" {
		fields["name"] = displayName
	}

	// An anonymous heartbeat still refreshes the handle bound earlier.
	if userHandle == "" {
		h, err := t.rdb.HGet(ctx, sessionKey(sessionID), "handle").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return eris.Wrap(err, "read session handle")
		}
		userHandle = h
	}

	_, err := t.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, sessionKey(sessionID), fields)
		p.Expire(ctx, sessionKey(sessionID), t.retention)
		if userHandle != "" {
			p.Set(ctx, userKey(userHandle), seen, t.retention)
		}
		return nil
	})
	return eris.Wrap(err, "write heartbeat")
}

// OnlineStatus reads each handle's last heartbeat in one round trip.
func (t *RedisTracker) OnlineStatus(ctx context.Context, handles []string) (map[string]bool, error) {
	out := make(map[string]bool, len(handles))
	if len(handles) == 0 {
		return out, nil
	}
	keys := make([]string, len(handles))
	for i, h := range handles {
		keys[i] = userKey(h)
		out[h] = false
	}
	vals, err := t.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "mget presence")
	}
	now := t.clock.Now()
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if Online(time.UnixMilli(ms), now) {
			out[handles[i]] = true
		}
	}
	return out, nil
}

// Cleanup is handled by key expiry.
func (t *RedisTracker) Cleanup(context.Context) (int, error) { return 0, nil }

// Ping reports whether Redis is reachable.
func (t *RedisTracker) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}
