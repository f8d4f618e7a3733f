package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/G-Research/dropingester/internal/common/appcontext"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// The logger of the returned context is taken from parent.
func CreateContextWithShutdown(parent *appcontext.Context) *appcontext.Context {
	ctx, cancel := appcontext.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			ctx.Log.Infof("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
