package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "busybee:"

type redisConn struct{ rdb *redis.Client }

func dialRedis(ctx context.Context, redisURL string) (*redisConn, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisConn{rdb: rdb}, nil
}

func (c *redisConn) log(key string) *RedisLog { return NewRedisLog(c.rdb, key) }

func (c *redisConn) close() error { return c.rdb.Close() }

// RedisLog stores records in a redis list; RPUSH is atomic so appends never interleave.
type RedisLog struct {
	rdb *redis.Client
	key string
}

func NewRedisLog(rdb *redis.Client, key string) *RedisLog {
	return &RedisLog{rdb: rdb, key: redisKeyPrefix + strings.TrimSpace(key)}
}

func (r *RedisLog) Load(ctx context.Context) ([]string, error) {
	lines, err := r.rdb.LRange(ctx, r.key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", r.key, err)
	}
	return lines, nil
}

func (r *RedisLog) Append(ctx context.Context, line string) error {
	if err := validateLine(line); err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, r.key, line).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", r.key, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by the Opener.
func (r *RedisLog) Close() error { return nil }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
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
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":6379"
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
