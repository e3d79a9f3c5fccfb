package serverstate

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
)

const defaultRedisKey = "wspush:state"

// RedisStore implements Store backed by a Redis instance.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
}

// NewRedisStore connects to the given Redis URL and returns a Store. The key
// is initialized to not_ready when it does not exist yet.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	rs := &RedisStore{client: c, key: defaultRedisKey, timeout: 2 * time.Second}
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	b, _ := json.Marshal(State{Status: StatusNotReady})
	if err := c.SetNX(ctx, rs.key, b, 0).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis init state: %w", err)
	}
	return rs, nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// parseRedisURL parses addr into UniversalOptions supporting single, cluster,
// and sentinel deployments. Without a scheme addr is a plain host:port.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	opts.Addrs = strings.Split(u.Host, ",")

	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch u.Scheme {
	case "redis", "rediss":
		db := strings.TrimPrefix(u.Path, "/")
		if db == "" {
			db = q.Get("db")
		}
		if db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %w", err)
			}
			opts.DB = n
		}
		if u.Scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if db := q.Get("db"); db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %w", err)
			}
			opts.DB = n
		}
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
		if u.Scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}

	return opts, nil
}

func (r *RedisStore) Load() State {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{Status: StatusNotReady}
		}
		return State{Status: "unknown"}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{Status: "unknown"}
	}
	return st
}

func (r *RedisStore) Store(s State) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.client.Set(ctx, r.key, b, 0).Err()
}
