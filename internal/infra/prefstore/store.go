package prefstore

import "context"

// Store is a small key/value store for device preferences such as the
// health authorization flag and the generated device identifier.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
