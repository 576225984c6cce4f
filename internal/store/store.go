package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Log is an append-only sequence of text records stored under one key.
// Implementations must not interleave concurrent appends.
type Log interface {
	Load(ctx context.Context) ([]string, error)
	Append(ctx context.Context, line string) error
	Close() error
}

type Backend string

const (
	BackendFile     Backend = "file"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

var (
	ErrCorrupt      = errors.New("store: corrupt record")
	ErrInvalidLine  = errors.New("store: record must be a single non-empty line")
	ErrUnknownStore = errors.New("store: unknown backend")
)

// Options carries the connection settings every backend may need; unused fields are ignored.
type Options struct {
	DataDir     string
	RedisURL    string
	DatabaseURL string
}

// ParseBackend maps a config string onto a Backend, defaulting to file.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file":
		return BackendFile, nil
	case "redis":
		return BackendRedis, nil
	case "postgres", "postgresql", "pg":
		return BackendPostgres, nil
	case "memory", "mem":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStore, s)
	}
}

// Opener creates logs for one backend. Redis and postgres openers share a single
// connection across keys, so call Close on the opener once all logs are done.
type Opener struct {
	backend Backend
	opts    Options
	redis   *redisConn
	pg      *postgresConn
}

func NewOpener(ctx context.Context, backend Backend, opts Options) (*Opener, error) {
	o := &Opener{backend: backend, opts: opts}
	switch backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		c, err := dialRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		o.redis = c
	case BackendPostgres:
		c, err := openPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		o.pg = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, backend)
	}
	return o, nil
}

func (o *Opener) Backend() Backend { return o.backend }

// Open returns the log stored under key.
func (o *Opener) Open(ctx context.Context, key string) (Log, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("store: empty key")
	}
	switch o.backend {
	case BackendFile:
		return OpenFileLog(o.opts.DataDir, key)
	case BackendMemory:
		return NewMemoryLog(), nil
	case BackendRedis:
		return o.redis.log(key), nil
	case BackendPostgres:
		return o.pg.log(ctx, key)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStore, o.backend)
}

func (o *Opener) Close() error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.redis != nil {
		errs = append(errs, o.redis.close())
	}
	if o.pg != nil {
		errs = append(errs, o.pg.close())
	}
	return errors.Join(errs...)
}

func validateLine(line string) error {
	if strings.TrimSpace(line) == "" || strings.ContainsAny(line, "\r\n") {
		return ErrInvalidLine
	}
	return nil
}
