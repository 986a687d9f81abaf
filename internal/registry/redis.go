package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	// Addr like "localhost:6379".
	Addr     string `yaml:"addr" env:"HARVESTER_REDIS_ADDR" json:"addr,omitempty"`
	Password string `yaml:"password" env:"HARVESTER_REDIS_PASSWORD" json:"-"`
	DB       int    `yaml:"db" env:"HARVESTER_REDIS_DB" json:"db,omitempty"`
	// KeyPrefix for all keys, default "harvester:".
	KeyPrefix string `yaml:"key_prefix" env:"HARVESTER_REDIS_KEY_PREFIX" json:"key_prefix,omitempty"`
}

// Redis stores entries as JSON under <prefix>schema:<stream> and keeps the
// stream names in the set <prefix>streams. Entries survive restarts, so a
// service can resume harvesting from the last published schema.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	group     singleflight.Group
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisWithClient wraps an existing client. The Store owns the client
// and closes it on Close.
func NewRedisWithClient(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "harvester:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) schemaKey(stream string) string { return r.keyPrefix + "schema:" + stream }
func (r *Redis) streamsKey() string              { return r.keyPrefix + "streams" }

func (r *Redis) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.schemaKey(e.Stream), data, 0)
		p.SAdd(ctx, r.streamsKey(), e.Stream)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", e.Stream, err)
	}
	return nil
}

type getResult struct {
	entry Entry
	found bool
}

// Get coalesces concurrent lookups of the same stream into one round trip.
func (r *Redis) Get(ctx context.Context, stream string) (Entry, bool, error) {
	v, err, _ := r.group.Do(stream, func() (any, error) {
		data, err := r.client.Get(ctx, r.schemaKey(stream)).Bytes()
		if errors.Is(err, redis.Nil) {
			return getResult{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", stream, err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", stream, err)
		}
		return getResult{entry: e, found: true}, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	res := v.(getResult)
	return res.entry, res.found, nil
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	streams, err := r.client.SMembers(ctx, r.streamsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	sort.Strings(streams)
	return streams, nil
}

func (r *Redis) Close() error { return r.client.Close() }
