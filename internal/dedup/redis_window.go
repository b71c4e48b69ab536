package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"echoframe/internal/core"
)

// RedisWindow keeps the recent-alert history in a Redis sorted set per
// (pattern, sector) bucket, scored by acceptance time. It lets multiple
// engine instances share one near-duplicate history.
type RedisWindow struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisWindow creates a Redis-backed window covering the given duration.
func NewRedisWindow(client *redis.Client, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, window: window, now: time.Now}
}

func redisKey(patternID string, sector core.Sector) string {
	return "echoframe:dedup:" + patternID + ":" + string(sector)
}

// Add stores an accepted alert and prunes entries older than the window.
func (w *RedisWindow) Add(ctx context.Context, entry WindowEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal window entry: %w", err)
	}

	key := redisKey(entry.PatternID, core.Sector(entry.Sector))
	now := w.now()
	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(entry.CreatedAt.Unix()), Member: payload})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-w.window).Unix(), 10))
	pipe.Expire(ctx, key, w.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record window entry: %w", err)
	}
	return nil
}

// MaxSimilarity scans the bucket's entries within the window and returns the
// highest token-set similarity against the given tokens.
func (w *RedisWindow) MaxSimilarity(ctx context.Context, patternID string, sector core.Sector, tokens []string) (float64, error) {
	key := redisKey(patternID, sector)
	cutoff := strconv.FormatInt(w.now().Add(-w.window).Unix(), 10)

	members, err := w.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return 0, fmt.Errorf("read window entries: %w", err)
	}

	best := 0.0
	for _, member := range members {
		var entry WindowEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		if sim := Jaccard(tokens, entry.Tokens); sim > best {
			best = sim
		}
	}
	return best, nil
}
