package signals

import (
	"context"
	"os/signal"
)

// NotifyContext returns a copy of parent that is cancelled when one of the
// ShutdownSignals arrives. Call stop to release the signal registration.
func NotifyContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals()...)
}
