// Package autoscaler periodically compares observed listing throughput
// against the current Worker population and decides whether to grow
// or shrink it.
package autoscaler

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/metrics"
)

const (
	defaultInterval     = time.Second
	defaultScaleUp      = 1.2
	defaultScaleDown    = 0.8
	rollingSampleWindow = 60
)

// Spawner is the Coordinator's hook for actually starting new Worker
// tasks; the Autoscaler never touches the Worker pool directly.
type Spawner interface {
	SpawnWorkers(n int)
}

// Autoscaler runs the periodic scaling-decision loop described in the
// component's contract. Scale-down is cooperative: Target is read by
// Workers at their own loop head, the Autoscaler never cancels one.
type Autoscaler struct {
	interval  time.Duration
	scaleUp   float64
	scaleDown float64
	metrics   *metrics.Metrics
	spawner   Spawner
	logger    *zap.Logger

	mu      sync.Mutex
	samples []int64 // rolling ops/sec samples, newest last
	lastOps int64

	target        atomic.Int64
	activeWorkers atomic.Int64
}

// Option configures an Autoscaler.
type Option func(*Autoscaler)

// WithInterval overrides the default 1s scaling period.
func WithInterval(d time.Duration) Option {
	return func(a *Autoscaler) { a.interval = d }
}

// WithScaleFactors overrides the default 1.2/0.8 up/down factors.
func WithScaleFactors(up, down float64) Option {
	return func(a *Autoscaler) { a.scaleUp = up; a.scaleDown = down }
}

// New returns an Autoscaler observing m and driving spawner, starting
// from initialWorkers already running.
func New(m *metrics.Metrics, spawner Spawner, logger *zap.Logger, initialWorkers int, opts ...Option) *Autoscaler {
	a := &Autoscaler{
		interval:  defaultInterval,
		scaleUp:   defaultScaleUp,
		scaleDown: defaultScaleDown,
		metrics:   m,
		spawner:   spawner,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.activeWorkers.Store(int64(initialWorkers))
	a.target.Store(int64(max(initialWorkers, 1)))
	return a
}

// Target returns the current desired worker count; Workers compare
// their own count against this at loop head to decide whether to
// self-exit.
func (a *Autoscaler) Target() int {
	return int(a.target.Load())
}

// NotifyWorkerCount lets a Worker population change (spawn or
// voluntary exit) update what the Autoscaler believes W is.
func (a *Autoscaler) NotifyWorkerCount(n int) {
	a.activeWorkers.Store(int64(n))
}

// SetScaleFactors updates the up/down factors in place, for the config
// Watcher's hot-reload path; the scaling interval itself is read once
// at Run and is not hot-reloadable (changing a running ticker's period
// has no clean atomic equivalent worth the complexity here).
func (a *Autoscaler) SetScaleFactors(up, down float64) {
	a.mu.Lock()
	a.scaleUp, a.scaleDown = up, down
	a.mu.Unlock()
}

// Run drives the periodic loop until ctx is cancelled.
func (a *Autoscaler) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.tick()
		case <-ctx.Done():
			return
		}
	}
}

func (a *Autoscaler) tick() {
	total := a.metrics.TotalOps.Load()
	delta := total - a.lastOps
	a.lastOps = total

	opsPerSec := int64(float64(delta) / a.interval.Seconds())

	a.mu.Lock()
	a.samples = append(a.samples, opsPerSec)
	if len(a.samples) > rollingSampleWindow {
		a.samples = a.samples[len(a.samples)-rollingSampleWindow:]
	}
	var sum int64
	for _, s := range a.samples {
		sum += s
	}
	rolling := float64(sum) / float64(len(a.samples))
	scaleUp, scaleDown := a.scaleUp, a.scaleDown
	a.mu.Unlock()

	w := float64(a.activeWorkers.Load())
	target := Decide(w, rolling, scaleUp, scaleDown)
	a.target.Store(int64(target))
	a.metrics.SetActiveWorkers(int(w))
	a.metrics.SetTargetWorkers(target)

	if target > int(w) {
		grow := target - int(w)
		a.logger.Debug("scaling up",
			zap.Float64("workers", w), zap.Float64("rolling_ops", rolling), zap.Int("grow", grow))
		a.spawner.SpawnWorkers(grow)
	}
}

// Decide implements the scaling rule: R<1.0 floors at max(W,10);
// worker-bound (W<R) scales up toward ceil(max(W*U,R)); idle (W>1.5R)
// scales down toward ceil(max(W*D,R)); otherwise unchanged. The result
// is always clamped to at least 1.
func Decide(w, r, scaleUp, scaleDown float64) int {
	var target float64
	switch {
	case r < 1.0:
		target = math.Max(w, 10)
	case w < r:
		target = math.Ceil(math.Max(w*scaleUp, r))
	case w > 1.5*r:
		target = math.Ceil(math.Max(w*scaleDown, r))
	default:
		target = w
	}
	if target < 1 {
		target = 1
	}
	return int(target)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
