package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/G-Research/dropingester/internal/common/appcontext"
)

const shutdownTimeout = 5 * time.Second

// ListenAndServe runs server until ctx is cancelled and then shuts it down gracefully.
// It returns nil after a clean shutdown.
func ListenAndServe(ctx *appcontext.Context, server *http.Server) error {
	lis, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return errors.WithMessagef(err, "error listening on %s", server.Addr)
	}
	return Serve(ctx, lis, server)
}

// Serve is ListenAndServe with a caller-supplied listener.
func Serve(ctx *appcontext.Context, lis net.Listener, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		ctx.Log.Infof("Serving http on %s", lis.Addr())
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		ctx.Log.WithError(err).Warnf("Http server on %s didn't shut down cleanly", lis.Addr())
		return errors.WithStack(err)
	}
	return nil
}

// NewMetricsServer returns a server exposing the metrics in gatherer on /metrics.
func NewMetricsServer(port uint16, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
}
