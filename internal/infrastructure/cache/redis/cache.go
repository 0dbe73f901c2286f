package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Cache is a ports.TextCache on Redis. Keys are namespaced by prefix.
type Cache struct {
	client rueidis.Client
	prefix string
}

func New(addrs []string, password, prefix string) (*Cache, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis addrs are required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

func NewWithClient(client rueidis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := c.client.B().Get().Key(c.prefix + key).Build()
	value, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value; a non-positive ttl keeps the key without expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(c.prefix + key).Value(value).ExSeconds(int64(ttl / time.Second)).Build()
	} else {
		cmd = c.client.B().Set().Key(c.prefix + key).Value(value).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Cache) Close() {
	c.client.Close()
}
