package workerpool

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/logging"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/pipeline"
)

// Runner processes at most one unit of work per call.
type Runner interface {
	RunOnce(ctx *appcontext.Context) (pipeline.Outcome, error)
}

// Pool runs a fixed number of identical worker loops against a shared Runner. A worker only sleeps when a call
// found nothing to do or failed; after useful work it asks for more straight away.
type Pool struct {
	runner    Runner
	workers   int
	idleDelay time.Duration
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func New(runner Runner, workers int, idleDelay time.Duration, clock clock.Clock, metrics *metrics.Metrics) *Pool {
	return &Pool{
		runner:    runner,
		workers:   max(1, workers),
		idleDelay: idleDelay,
		clock:     clock,
		metrics:   metrics,
	}
}

func (p *Pool) Workers() int {
	return p.workers
}

// Run blocks until ctx is cancelled and every worker has finished its current unit of work.
func (p *Pool) Run(ctx *appcontext.Context) error {
	ctx.Log.Infof("Starting %d workers with an idle delay of %s", p.workers, p.idleDelay)
	g, _ := appcontext.ErrGroup(ctx)
	for i := 0; i < p.workers; i++ {
		workerCtx := appcontext.WithLogField(ctx, "worker", fmt.Sprintf("worker-%d", i))
		g.Go(func() error {
			p.work(workerCtx)
			return nil
		})
	}
	err := g.Wait()
	ctx.Log.Info("All workers stopped")
	return err
}

func (p *Pool) work(ctx *appcontext.Context) {
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerStopped()
	for {
		outcome, err := p.runner.RunOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			p.metrics.RecordWorkerError()
			logging.WithStacktrace(ctx.Log, err).Error("Error processing drop folder")
		case !outcome.DidWork():
			p.metrics.RecordIdlePoll()
		default:
			continue
		}
		if !p.sleep(ctx) {
			return
		}
	}
}

// sleep waits for the idle delay and reports whether the worker should carry on.
func (p *Pool) sleep(ctx *appcontext.Context) bool {
	if p.idleDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := p.clock.NewTimer(p.idleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}
