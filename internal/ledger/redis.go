package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/storage"
)

const redisWatchRetries = 8

// RedisRepository stores each record as a hash and indexes locked members in
// a per-community sorted set scored by lock time. Update uses WATCH/MULTI and
// retries when another writer touched the key first.
type RedisRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisRepository(client, prefix), nil
}

// NewRedisRepository wraps an existing client.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "warden:ledger"
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

// Close closes the client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) recordKey(key Key) string {
	return r.prefix + ":record:" + key.CommunityID + ":" + key.UserID
}

func (r *RedisRepository) lockedKey(communityID string) string {
	return r.prefix + ":locked:" + communityID
}

func decodeRedisRecord(key Key, fields map[string]string) (*Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	attempts, err := strconv.Atoi(fields["attempt_count"])
	if err != nil {
		return nil, fmt.Errorf("decode attempt_count: %w", err)
	}
	state, err := ParseLockState(fields["lock_state"])
	if err != nil {
		return nil, err
	}
	return &Record{
		CommunityID:  key.CommunityID,
		UserID:       key.UserID,
		AttemptCount: attempts,
		LockState:    state,
		LastReason:   Reason(fields["last_reason"]),
		UpdatedAt:    storage.ParseTime(fields["updated_at"]),
		LockedAt:     storage.ParseTime(fields["locked_at"]),
	}, nil
}

func encodeRedisRecord(rec *Record) map[string]any {
	lockedAt := ""
	if !rec.LockedAt.IsZero() {
		lockedAt = storage.FormatTime(rec.LockedAt)
	}
	return map[string]any{
		"attempt_count": rec.AttemptCount,
		"lock_state":    string(rec.LockState),
		"last_reason":   string(rec.LastReason),
		"updated_at":    storage.FormatTime(rec.UpdatedAt),
		"locked_at":     lockedAt,
	}
}

func (r *RedisRepository) Get(ctx context.Context, key Key) (*Record, error) {
	fields, err := r.client.HGetAll(ctx, r.recordKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}
	return decodeRedisRecord(key, fields)
}

func (r *RedisRepository) Update(ctx context.Context, key Key, fn UpdateFunc) (*Record, error) {
	recordKey := r.recordKey(key)
	lockedKey := r.lockedKey(key.CommunityID)

	var result *Record
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, recordKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("load ledger record: %w", err)
		}
		rec, err := decodeRedisRecord(key, fields)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = NewRecord(key, r.now())
		}
		if err := fn(rec); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, encodeRedisRecord(rec))
			if rec.LockState.Locked() {
				pipe.ZAdd(ctx, lockedKey, redis.Z{Score: float64(rec.LockedAt.UnixMilli()), Member: key.UserID})
			} else {
				pipe.ZRem(ctx, lockedKey, key.UserID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = rec
		return nil
	}

	for attempt := 0; attempt < redisWatchRetries; attempt++ {
		err := r.client.Watch(ctx, txf, recordKey)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("store ledger record %s: too much contention", key)
}

func (r *RedisRepository) ListLocked(ctx context.Context, communityID string) ([]*Record, error) {
	users, err := r.client.ZRange(ctx, r.lockedKey(communityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list locked records: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(users))
	if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, user := range users {
			cmds[i] = pipe.HGetAll(ctx, r.recordKey(Key{CommunityID: communityID, UserID: user}))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load locked records: %w", err)
	}

	out := make([]*Record, 0, len(users))
	for i, user := range users {
		rec, err := decodeRedisRecord(Key{CommunityID: communityID, UserID: user}, cmds[i].Val())
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.LockState.Locked() {
			out = append(out, rec)
		}
	}
	sortLocked(out)
	return out, nil
}
