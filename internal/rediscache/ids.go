package rediscache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// IDCache remembers upstream-confirmed ids in one redis set per kind.
type IDCache struct {
	client redis.Cmdable
	prefix string
}

// NewIDCache creates an IDCache. Keys are prefixed with prefix.
func NewIDCache(client redis.Cmdable, prefix string) *IDCache {
	return &IDCache{client: client, prefix: prefix}
}

func (c *IDCache) key(kind string) string {
	return c.prefix + "ids:" + kind
}

// Known implements api.IDCache.
func (c *IDCache) Known(ctx context.Context, kind string, id int) (bool, error) {
	ok, err := c.client.SIsMember(ctx, c.key(kind), strconv.Itoa(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check %s id %d: %w", kind, id, err)
	}
	return ok, nil
}

// Remember implements api.IDCache.
func (c *IDCache) Remember(ctx context.Context, kind string, id int) error {
	if err := c.client.SAdd(ctx, c.key(kind), strconv.Itoa(id)).Err(); err != nil {
		return fmt.Errorf("remember %s id %d: %w", kind, id, err)
	}
	return nil
}
