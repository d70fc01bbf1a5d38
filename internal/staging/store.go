package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jorgesolerrr/umet-reports/internal/logger"
)

var (
	// ErrStoreUnavailable means Redis could not be reached. Fatal for a run.
	ErrStoreUnavailable = errors.New("staging store unavailable")
	ErrNotFound         = errors.New("staging: key not found")
)

// Record is one staged hash. Values that are not plain strings are stored as
// JSON and decoded back on read, so nested slices and maps round-trip.
// Numbers come back as float64.
type Record map[string]any

type Options struct {
	Addr     string
	Password string
	DB       int

	ConnectAttempts int           // default 3
	ConnectBackoff  time.Duration // default 1s
	DialTimeout     time.Duration // default 5s

	Log *logger.Logger
}

// Store is the Redis-backed side store shared by all extraction workers.
// Every worker writes its own keys, so no locking is needed here.
type Store struct {
	rdb *goredis.Client
	log *logger.Logger
}

// Connect opens the client and checks connectivity with a fixed-backoff PING.
// Only this initial check is retried.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("staging: missing redis address")
	}
	attempts := opts.ConnectAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	log := logger.OrNop(opts.Log).With("component", "staging")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dial,
		MaxRetries:  -1,
	})

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if lastErr = rdb.Ping(ctx).Err(); lastErr == nil {
			return &Store{rdb: rdb, log: log}, nil
		}
		log.Warn("redis ping failed", "attempt", i, "of", attempts, "error", lastErr)
		if i == attempts {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			_ = rdb.Close()
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-t.C:
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, opts.Addr, lastErr)
}

// NewFromClient wraps an existing client without a connectivity check.
func NewFromClient(rdb *goredis.Client, log *logger.Logger) *Store {
	return &Store{rdb: rdb, log: logger.OrNop(log).With("component", "staging")}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Key builds "{scope}:{entity}:{YYYY-MM-DD}".
func Key(scope, entity string, date time.Time) string {
	return scope + ":" + entity + ":" + date.Format("2006-01-02")
}

// ScopePrefix is the prefix shared by every fragment of a batch.
func ScopePrefix(scope string) string { return scope + ":" }

// Put replaces the hash at key with rec.
func (s *Store) Put(ctx context.Context, key string, rec Record) error {
	if len(rec) == 0 {
		return fmt.Errorf("staging: empty record for %s", key)
	}
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		enc, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("staging: encode %s.%s: %w", key, k, err)
		}
		fields[k] = enc
	}
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fields)
		return nil
	})
	return s.wrap("put", key, err)
}

// Get reads the hash at key, decoding JSON-encoded values.
func (s *Store) Get(ctx context.Context, key string) (Record, error) {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(raw))
	for k, v := range raw {
		rec[k] = decodeValue(v)
	}
	return rec, nil
}

func (s *Store) getRaw(ctx context.Context, key string) (map[string]string, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return raw, nil
}

func (s *Store) getField(ctx context.Context, key, field string) (string, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("%w: %s[%s]", ErrNotFound, key, field)
	}
	return v, s.wrap("hget", key, err)
}

// KeysByPrefix lists every key starting with prefix using SCAN. Order is
// whatever Redis returns.
func (s *Store) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	seen := map[string]struct{}{}
	match := escapeGlob(prefix) + "*"
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			return nil, s.wrap("scan", prefix, err)
		}
		for _, k := range batch {
			// SCAN puede repetir claves entre iteraciones
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.wrap("del", strings.Join(keys, ","), s.rdb.Del(ctx, keys...).Err())
}

// FlushAll empties the configured database. Used to clear orphan fragments
// before a run and staged data after one.
func (s *Store) FlushAll(ctx context.Context) error {
	return s.wrap("flush", "*", s.rdb.FlushDB(ctx).Err())
}

// wrap maps transport failures to ErrStoreUnavailable; server replies keep
// their own error.
func (s *Store) wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var reply goredis.Error
	if errors.As(err, &reply) {
		return fmt.Errorf("staging %s %s: %w", op, key, err)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, op, key, err)
}

func encodeValue(v any) (string, error) {
	switch x := v.(type) {
	case json.RawMessage:
		return string(x), nil
	case string:
		// quoted when the raw text would decode as JSON ("12", "true", ...)
		if json.Valid([]byte(x)) {
			b, err := json.Marshal(x)
			return string(b), err
		}
		return x, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
