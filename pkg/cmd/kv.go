package cmd

import (
	"context"
	"fmt"

	"github.com/chatback/chatback/pkg/kv"
)

// NewKV selects the key-value backend from the URL. A redis:// or rediss://
// URL gets the Redis backend; an empty URL gets the in-process store, which
// is only suitable for single-instance deployments.
func NewKV(ctx context.Context, url string) (kv.Store, error) {
	if url == "" {
		return kv.NewMemoryStore(), nil
	}

	store, err := kv.NewRedisStore(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis store: %w", err)
	}

	return store, nil
}
