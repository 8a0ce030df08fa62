//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// shutdownSignals trigger a graceful drain of in-flight requests.
// syscall.SIGTERM is not delivered on Windows.
var shutdownSignals = []os.Signal{os.Interrupt}

// notifyContext returns a context canceled on the first shutdown signal.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
