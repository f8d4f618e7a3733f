package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"
)

type task struct {
	function    func()
	interval    time.Duration
	latency     prometheus.Observer
	stopChannel chan struct{}
}

// BackgroundTaskManager runs functions periodically until stopped.
// It is not threadsafe and should only be accessed from a single goroutine.
type BackgroundTaskManager struct {
	tasks     []*task
	latencies *prometheus.HistogramVec
	clock     clock.Clock
	wg        sync.WaitGroup
}

func NewBackgroundTaskManager(metricsPrefix string, registerer prometheus.Registerer, clock clock.Clock) *BackgroundTaskManager {
	latencies := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricsPrefix + "background_task_latency_seconds",
			Help:    "Background task latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"task"},
	)
	if registerer != nil {
		registerer.MustRegister(latencies)
	}
	return &BackgroundTaskManager{
		latencies: latencies,
		clock:     clock,
	}
}

// Register starts backgroundTask immediately and then runs it every interval.
func (m *BackgroundTaskManager) Register(backgroundTask func(), interval time.Duration, name string) {
	t := &task{
		function:    backgroundTask,
		interval:    interval,
		latency:     m.latencies.WithLabelValues(name),
		stopChannel: make(chan struct{}),
	}
	m.startBackgroundTask(t)
	m.tasks = append(m.tasks, t)
}

// StopAll stops every task and reports whether waiting for them timed out.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	m.stopTasks()
	return m.waitForShutdownCompletion(timeout)
}

func (m *BackgroundTaskManager) startBackgroundTask(t *task) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runTimed(t)
		for {
			timer := m.clock.NewTimer(t.interval)
			select {
			case <-timer.C():
			case <-t.stopChannel:
				timer.Stop()
				return
			}
			m.runTimed(t)
		}
	}()
}

func (m *BackgroundTaskManager) runTimed(t *task) {
	start := m.clock.Now()
	t.function()
	t.latency.Observe(m.clock.Since(start).Seconds())
}

func (m *BackgroundTaskManager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false // completed normally
	case <-time.After(timeout):
		return true // timed out
	}
}

func (m *BackgroundTaskManager) stopTasks() {
	for _, t := range m.tasks {
		close(t.stopChannel)
	}
	m.tasks = nil
}
