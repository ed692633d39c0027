// Package metadata persists small key-value items of the echofeed client:
// the session identity and the bearer token.
package metadata

import "context"

// Keys used by the session store. Both are set or cleared together;
// a store with only one of them present counts as no session.
const (
	KeySessionUser  = "session_user"
	KeySessionToken = "session_token"
)

// Repository is the durable local key-value store.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetAll(ctx context.Context, items map[string][]byte) error
	Clear(ctx context.Context) error
}
