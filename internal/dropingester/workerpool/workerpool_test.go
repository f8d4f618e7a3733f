package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/logging"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/pipeline"
)

const idleDelay = 5 * time.Second

type result struct {
	outcome pipeline.Outcome
	err     error
}

// scriptedRunner replays results in order and reports no work once they run out.
type scriptedRunner struct {
	mu      sync.Mutex
	results []result
	calls   int
}

func (r *scriptedRunner) RunOnce(_ *appcontext.Context) (pipeline.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.results) == 0 {
		return pipeline.Outcome{Kind: pipeline.OutcomeNoWork}, nil
	}
	next := r.results[0]
	r.results = r.results[1:]
	return next.outcome, next.err
}

func (r *scriptedRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testContext() *appcontext.Context {
	return appcontext.New(appcontext.Background(), logging.NullEntry())
}

func ingested() result {
	return result{outcome: pipeline.Outcome{Kind: pipeline.OutcomeIngested, FileId: "f", Records: 1}}
}

func startPool(t *testing.T, pool *Pool) (func(), <-chan error) {
	t.Helper()
	ctx, cancel := appcontext.WithCancel(testContext())
	done := make(chan error, 1)
	go func() {
		done <- pool.Run(ctx)
	}()
	return cancel, done
}

func waitForStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_BusyWorkerDoesNotSleep(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	runner := &scriptedRunner{results: []result{ingested(), ingested(), ingested()}}
	pool := New(runner, 1, idleDelay, fakeClock, metrics.New(prometheus.NewRegistry()))

	cancel, done := startPool(t, pool)
	defer cancel()

	require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
	// three files then one empty poll, which is where the worker starts waiting
	assert.Equal(t, 4, runner.Calls())

	cancel()
	waitForStop(t, done)
}

func TestPool_IdleWorkerWaitsForDelay(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	runner := &scriptedRunner{}
	pool := New(runner, 1, idleDelay, fakeClock, metrics.New(prometheus.NewRegistry()))

	cancel, done := startPool(t, pool)
	defer cancel()

	require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, runner.Calls())

	fakeClock.Step(idleDelay - time.Millisecond)
	assert.Equal(t, 1, runner.Calls())

	fakeClock.Step(time.Millisecond)
	require.Eventually(t, func() bool { return runner.Calls() == 2 }, time.Second, time.Millisecond)

	cancel()
	waitForStop(t, done)
}

func TestPool_ErrorsAreNotFatal(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	runner := &scriptedRunner{results: []result{
		{outcome: pipeline.Outcome{Kind: pipeline.OutcomeNoWork}, err: errors.New("permission denied")},
		ingested(),
	}}
	pool := New(runner, 1, idleDelay, fakeClock, metrics.New(prometheus.NewRegistry()))

	cancel, done := startPool(t, pool)
	defer cancel()

	require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, runner.Calls(), "a failed call sleeps before retrying")

	fakeClock.Step(idleDelay)
	// the retry ingests a file, then polls once more and goes idle
	require.Eventually(t, func() bool { return runner.Calls() == 3 && fakeClock.HasWaiters() }, time.Second, time.Millisecond)

	cancel()
	waitForStop(t, done)
}

func TestPool_CancelWakesSleepingWorkers(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	runner := &scriptedRunner{}
	pool := New(runner, 4, time.Hour, fakeClock, metrics.New(prometheus.NewRegistry()))

	cancel, done := startPool(t, pool)
	require.Eventually(t, func() bool { return runner.Calls() == 4 }, time.Second, time.Millisecond)

	cancel()
	waitForStop(t, done)
	assert.Equal(t, 4, runner.Calls())
}

func TestPool_ZeroDelayPollsContinuously(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Now())
	runner := &scriptedRunner{}
	pool := New(runner, 1, 0, fakeClock, metrics.New(prometheus.NewRegistry()))

	cancel, done := startPool(t, pool)
	require.Eventually(t, func() bool { return runner.Calls() > 10 }, time.Second, time.Millisecond)
	assert.False(t, fakeClock.HasWaiters())

	cancel()
	waitForStop(t, done)
}

func TestNew_AtLeastOneWorker(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	assert.Equal(t, 1, New(&scriptedRunner{}, 0, idleDelay, clock.NewFakeClock(time.Now()), m).Workers())
	assert.Equal(t, 1, New(&scriptedRunner{}, -3, idleDelay, clock.NewFakeClock(time.Now()), m).Workers())
	assert.Equal(t, 6, New(&scriptedRunner{}, 6, idleDelay, clock.NewFakeClock(time.Now()), m).Workers())
}
