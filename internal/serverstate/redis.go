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

	"github.com/ainova/novagate/internal/logx"
)

// keyPrefix namespaces instance keys; the instance id completes the key.
const keyPrefix = "novagate:state:"

// redisTimeout bounds each state read or write.
const redisTimeout = 2 * time.Second

// RedisStore publishes the state of one gateway instance under its own key
// so a shared Redis can serve several replicas.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore connects to addr, which is host:port or a redis://,
// rediss://, redis-sentinel:// or rediss-sentinel:// URL. The instance key
// is initialized to not ready if it does not exist yet.
func NewRedisStore(ctx context.Context, addr, instance string) (*RedisStore, error) {
	if instance == "" {
		return nil, errors.New("redis: empty instance id")
	}
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	rs := &RedisStore{client: c, key: keyPrefix + instance}
	b, _ := json.Marshal(State{Status: StatusNotReady})
	if err := c.SetNX(ctx, rs.key, b, 0).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis init %s: %w", rs.key, err)
	}
	return rs, nil
}

// Key returns the Redis key holding this instance's state.
func (r *RedisStore) Key() string { return r.key }

// Close releases the connection pool.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) Load() State {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Status: StatusNotReady}
	}
	if err != nil {
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("load server state")
		return State{Status: StatusUnknown}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{Status: StatusUnknown}
	}
	return st
}

func (r *RedisStore) Store(s State) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("store server state")
	}
}

func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	opts := &redis.UniversalOptions{Addrs: strings.Split(u.Host, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	q := u.Query()
	dbFromQuery := func() error {
		v := q.Get("db")
		if v == "" {
			return nil
		}
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("redis: invalid db: %w", err)
		}
		opts.DB = db
		return nil
	}

	switch u.Scheme {
	case "redis", "rediss":
		if p := strings.TrimPrefix(u.Path, "/"); p != "" {
			db, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %w", err)
			}
			opts.DB = db
		} else if err := dbFromQuery(); err != nil {
			return nil, err
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if err := dbFromQuery(); err != nil {
			return nil, err
		}
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}
	if strings.HasPrefix(u.Scheme, "rediss") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
