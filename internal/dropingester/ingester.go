package dropingester

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/utils/clock"

	"github.com/G-Research/dropingester/internal/common/app"
	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/health"
	commonmetrics "github.com/G-Research/dropingester/internal/common/ingest/metrics"
	"github.com/G-Research/dropingester/internal/common/serve"
	"github.com/G-Research/dropingester/internal/common/task"
	"github.com/G-Research/dropingester/internal/dropingester/configuration"
	"github.com/G-Research/dropingester/internal/dropingester/dropfolder"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/pipeline"
	"github.com/G-Research/dropingester/internal/dropingester/store"
	"github.com/G-Research/dropingester/internal/dropingester/workerpool"
)

const (
	pendingFilesInterval    = 10 * time.Second
	backgroundTasksShutdown = 5 * time.Second
)

// Run starts the drop ingester and blocks until a SIGINT or SIGTERM is received and every worker has finished
// the file it was working on.
func Run(config configuration.DropIngesterConfiguration, registry *prometheus.Registry) error {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ctx := app.CreateContextWithShutdown(appcontext.Background())
	return run(ctx, config, registry, clock.RealClock{})
}

func run(ctx *appcontext.Context, config configuration.DropIngesterConfiguration, registry *prometheus.Registry, clock clock.Clock) error {
	ctx.Log.Info("Drop ingester starting")
	startupCompleteCheck := health.NewStartupCompleteChecker()
	checker := health.NewMultiChecker(startupCompleteCheck)
	m := metrics.New(registry)

	db, err := store.Open(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	checker.Add(health.CheckFunc(db.Check))

	claimer, err := dropfolder.NewClaimer(
		config.Listener.DropFolderPath,
		config.Listener.ArchiveFolderPath,
		config.Listener.ResolveFileExtension(),
		m,
	)
	if err != nil {
		return err
	}
	checker.Add(health.CheckFunc(func() error {
		_, err := claimer.Candidates()
		return errors.WithMessage(err, "drop folder is not readable")
	}))

	tasks := task.NewBackgroundTaskManager(commonmetrics.DropIngesterMetricsPrefix, registry, clock)
	tasks.Register(func() {
		candidates, err := claimer.Candidates()
		if err != nil {
			ctx.Log.WithError(err).Warn("Could not count pending files")
			return
		}
		m.SetPendingFiles(len(candidates))
	}, pendingFilesInterval, "pending_files")
	defer func() {
		if tasks.StopAll(backgroundTasksShutdown) {
			ctx.Log.Warn("Background tasks did not stop in time")
		}
	}()

	ingestionPipeline := pipeline.NewIngestionPipeline(
		claimer,
		db,
		store.NewBulkPersister(db, m),
		m,
		config.Listener.ResolveFinalizeTimeout(),
	)
	pool := workerpool.New(
		ingestionPipeline,
		config.Listener.ResolveWorkers(runtime.NumCPU()),
		config.Listener.ResolveIdleDelay(),
		clock,
		m,
	)

	g, ctx := appcontext.ErrGroup(ctx)
	if config.HttpPort > 0 {
		mux := http.NewServeMux()
		health.SetupHttpMux(mux, checker)
		server := &http.Server{Addr: fmt.Sprintf(":%d", config.HttpPort), Handler: mux}
		g.Go(func() error { return serve.ListenAndServe(ctx, server) })
	}
	if config.MetricsPort > 0 {
		server := serve.NewMetricsServer(config.MetricsPort, registry)
		g.Go(func() error { return serve.ListenAndServe(ctx, server) })
	}
	g.Go(func() error { return pool.Run(ctx) })

	startupCompleteCheck.MarkComplete()
	ctx.Log.Infof(
		"Watching %s for %s files, archiving to %s",
		claimer.DropFolder(), config.Listener.ResolveFileExtension(), claimer.ArchiveFolder(),
	)
	err = g.Wait()
	ctx.Log.Info("Drop ingester stopped")
	return err
}
