package handlers

import (
	"context"
	"time"
)

// ViewCache is the read-through cache in front of the ranking and
// recurring views. *redis.Cache implements it; tests substitute an
// in-memory fake.
type ViewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
