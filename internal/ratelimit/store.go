// Package ratelimit provides sliding-window admission control keyed by
// client identity, with pluggable window storage.
package ratelimit

import "context"

// Store keeps the trailing admission window for each client identity.
type Store interface {
	// Admit purges window entries older than the trailing window, then
	// records the current request and admits it unless the client has
	// already used its quota. It must be safe for concurrent use.
	Admit(ctx context.Context, clientID string) (bool, error)
}
