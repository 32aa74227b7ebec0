package trace

import "context"

// Observer observes a running program and emits live events. Implementations
// are alternatives and are never active against the same process at once.
type Observer interface {
	// Start begins observation; setup failures are returned, observation continues in background
	Start(ctx context.Context, emit func(LiveEvent)) error
	// Stop ends observation; safe to call multiple times
	Stop()
}
