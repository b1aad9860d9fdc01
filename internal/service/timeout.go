package service

import (
	"context"
	"time"
)

// DefaultStorageTimeout bounds a single storage call.
const DefaultStorageTimeout = 5 * time.Second

// readContext bounds a read by d. Cancelling the parent still cancels the read.
func readContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// writeContext detaches a mutation from the caller's cancellation, so a dropped
// client cannot abort a cascade half way, and bounds it by d.
func writeContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}
