package runtime

import (
	"context"
	"os/signal"
	"syscall"
)

// SignalContext returns the root context for a homebook process. SIGINT or
// SIGTERM cancels it, which stops the HTTP and gRPC servers, the outbox
// publisher and the notification consumer.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
