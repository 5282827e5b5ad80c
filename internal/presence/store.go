// Package presence mirrors live sessions into Redis so other processes (dashboards,
// lobby pages) can list them. It is write-mostly and never read back by the game loop.
package presence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cooldown-chess/internal/record"
)

const defaultTTL = 6 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Open dials REDIS_URL and verifies the connection.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for presence store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keyMeta(key string) string { return "cc:session:" + strings.TrimSpace(key) }
func (s *Store) keyIndex() string          { return "cc:sessions" }

// SaveMeta writes the session view and adds it to the index.
func (s *Store) SaveMeta(ctx context.Context, meta *record.SessionMeta) error {
	if s == nil || s.rdb == nil || meta == nil {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyMeta(meta.Key), raw, s.ttl)
	pipe.SAdd(ctx, s.keyIndex(), meta.Key)
	pipe.Expire(ctx, s.keyIndex(), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadMeta returns nil, nil when the session is unknown or expired.
func (s *Store) LoadMeta(ctx context.Context, key string) (*record.SessionMeta, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, s.keyMeta(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m record.SessionMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keyMeta(key))
	pipe.SRem(ctx, s.keyIndex(), key)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns every indexed session still present. Index entries whose meta expired
// are pruned.
func (s *Store) List(ctx context.Context) ([]*record.SessionMeta, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	keys, err := s.rdb.SMembers(ctx, s.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	var out []*record.SessionMeta
	for _, k := range keys {
		m, err := s.LoadMeta(ctx, k)
		if err != nil {
			return nil, err
		}
		if m == nil {
			_ = s.rdb.SRem(ctx, s.keyIndex(), k).Err()
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) Name() string { return "presence" }

// Handle applies lifecycle events.
func (s *Store) Handle(ctx context.Context, ev record.Event) error {
	switch ev.Kind {
	case record.KindSessionUpdated:
		return s.SaveMeta(ctx, ev.Meta)
	case record.KindSessionClosed:
		return s.Remove(ctx, ev.Key)
	default:
		return nil
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()}
	}
	return opts, nil
}
