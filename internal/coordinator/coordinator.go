// Package coordinator wires together the frontier, listing client,
// resolver, metrics, autoscaler, writer, and worker pool, and drives
// the crawl from seed to shutdown.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/autoscaler"
	"github.com/FairForge/s3sweep/internal/checkpoint"
	"github.com/FairForge/s3sweep/internal/config"
	"github.com/FairForge/s3sweep/internal/frontier"
	"github.com/FairForge/s3sweep/internal/metrics"
	"github.com/FairForge/s3sweep/internal/plugin"
	"github.com/FairForge/s3sweep/internal/ratelimit"
	"github.com/FairForge/s3sweep/internal/resolver"
	"github.com/FairForge/s3sweep/internal/s3client"
	"github.com/FairForge/s3sweep/internal/signer"
	"github.com/FairForge/s3sweep/internal/tlsconfig"
	"github.com/FairForge/s3sweep/internal/worker"
	"github.com/FairForge/s3sweep/internal/writer"
)

// shutdownPollInterval is how often the Coordinator checks whether the
// crawl has drained.
const shutdownPollInterval = time.Second

// checkpointInterval is how often a configured Journal persists a
// frontier snapshot.
const checkpointInterval = 30 * time.Second

// Options configures a Coordinator's run.
type Options struct {
	Bucket         string
	Endpoint       string // hostname to resolve and dial; a ":port" suffix is not split off, and Workers dial port 443
	Scheme         string // "http" or "https"
	Delimiter      string
	EncodingType   string
	MaxKeys        int
	UseV2          bool
	Format         writer.Format
	InitialWorkers int
	RatePerSecond  int
	RateBurst      int
	ScalingOpts    []autoscaler.Option

	// CheckpointPath, when non-empty, enables periodic encrypted
	// frontier snapshots to this file. CheckpointKey is the process's
	// secret key material the journal derives its encryption key from.
	CheckpointPath string
	CheckpointKey  []byte
	Resume         bool

	// Knobs, when non-nil, is polled on every shutdown-poll tick and
	// pushed into the Autoscaler and Limiter. It is the same pointer
	// the control-plane PUT handler and a config.Watcher publish to, so
	// whichever last stored a snapshot wins; the Coordinator itself
	// never mutates it.
	Knobs *atomic.Pointer[config.TuningKnobs]

	// PluginPath, when non-empty, names a .wasm key-filter module every
	// Worker pipes discovered keys through before they reach the Writer.
	PluginPath string
}

// Coordinator owns the whole crawl's lifetime: construction, seeding,
// scale-driven worker spawning, and the drain-detecting shutdown loop.
type Coordinator struct {
	opts      Options
	logger    *zap.Logger
	frontier  *frontier.Frontier
	metrics   *metrics.Metrics
	resolver  *resolver.Resolver
	client    *s3client.Client
	writer    *writer.Writer
	scaler    *autoscaler.Autoscaler
	limiter   *ratelimit.Limiter
	journal   *checkpoint.Journal
	filter    *plugin.Filter // optional; nil when Options.PluginPath is empty
	active    atomic.Int64
	nextID    atomic.Int64

	runCtx context.Context // set by Run; read by spawnOneWorker when the Autoscaler asks for more workers

	wg sync.WaitGroup
	mu sync.Mutex // guards spawning against concurrent Autoscaler ticks
}

// New constructs a Coordinator. creds signs every listing request the
// crawl issues; sink is the output destination the Writer drains to.
func New(ctx context.Context, opts Options, creds signer.Credentials, sink io.Writer, logger *zap.Logger, registry *prometheus.Registry) (*Coordinator, error) {
	var journal *checkpoint.Journal
	f := frontier.New()

	if opts.CheckpointPath != "" {
		j, err := checkpoint.NewJournal(opts.CheckpointPath, opts.CheckpointKey)
		if err != nil {
			return nil, fmt.Errorf("coordinator: build checkpoint journal: %w", err)
		}
		journal = j

		if opts.Resume {
			entries, err := journal.Load()
			if err != nil {
				return nil, fmt.Errorf("coordinator: load checkpoint: %w", err)
			}
			if entries != nil {
				f = frontier.NewFromSnapshot(entries)
				logger.Info("resumed crawl from checkpoint", zap.String("path", opts.CheckpointPath))
			}
		}
	}

	m := metrics.New(registry)
	m.SetTargetWorkers(max(opts.InitialWorkers, 1))

	host := opts.Endpoint
	r := resolver.New(ctx, host)

	s := signer.New(creds)
	c := s3client.New(s, tlsconfig.Default())

	w := writer.New(sink, logger)
	limiter := ratelimit.New(opts.RatePerSecond, opts.RateBurst)

	var keyFilter *plugin.Filter
	if opts.PluginPath != "" {
		kf, err := plugin.Load(ctx, opts.PluginPath)
		if err != nil {
			return nil, fmt.Errorf("coordinator: load key-filter plugin: %w", err)
		}
		keyFilter = kf
	}

	co := &Coordinator{
		opts:     opts,
		logger:   logger,
		frontier: f,
		metrics:  m,
		resolver: r,
		client:   c,
		writer:   w,
		limiter:  limiter,
		journal:  journal,
		filter:   keyFilter,
	}
	co.metrics.AddQueueLength(f.Len()) // the seeded frontier, root or resumed
	co.scaler = autoscaler.New(m, co, logger, opts.InitialWorkers, opts.ScalingOpts...)
	return co, nil
}

// Metrics returns the Coordinator's Metrics instance, for wiring into
// the control-plane HTTP surface.
func (co *Coordinator) Metrics() *metrics.Metrics {
	return co.metrics
}

// SpawnWorkers implements autoscaler.Spawner.
func (co *Coordinator) SpawnWorkers(n int) {
	co.mu.Lock()
	defer co.mu.Unlock()
	for i := 0; i < n; i++ {
		co.spawnOneWorker()
	}
}

func (co *Coordinator) spawnOneWorker() {
	id := int(co.nextID.Add(1))
	co.active.Add(1)
	cfg := worker.Config{
		Bucket:       co.opts.Bucket,
		Delimiter:    co.opts.Delimiter,
		EncodingType: co.opts.EncodingType,
		MaxKeys:      co.opts.MaxKeys,
		UseV2:        co.opts.UseV2,
		Format:       co.opts.Format,
		Scheme:       co.opts.Scheme,
	}
	// co.filter is passed through a worker.KeyFilter interface; when nil
	// it must be passed as a literal untyped nil, not a nil *plugin.Filter,
	// or the interface value would be non-nil and worker's nil check
	// would miss it.
	var kf worker.KeyFilter
	if co.filter != nil {
		kf = co.filter
	}
	w := worker.New(id, cfg, co.frontier, co.client, co.resolver, co.metrics, co.writer, co.limiter, co.scaler, kf, &co.active, co.logger)

	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		w.Run(co.runCtx)
	}()
}

// Run seeds the initial worker population, starts the Autoscaler and
// Writer, and blocks until the crawl has fully drained or ctx is
// cancelled.
func (co *Coordinator) Run(ctx context.Context) {
	crawlCtx, cancel := context.WithCancel(ctx)
	co.runCtx = crawlCtx
	defer cancel()
	if co.filter != nil {
		defer func() {
			if err := co.filter.Close(context.Background()); err != nil {
				co.logger.Warn("key-filter plugin close failed", zap.Error(err))
			}
		}()
	}

	writerCtx, cancelWriter := context.WithCancel(context.Background())
	go co.writer.Run(writerCtx)

	scalerCtx, cancelScaler := context.WithCancel(context.Background())
	go co.scaler.Run(scalerCtx)

	co.SpawnWorkers(max(co.opts.InitialWorkers, 1))
	co.scaler.NotifyWorkerCount(int(co.active.Load()))

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()

	var checkpointTick <-chan time.Time
	if co.journal != nil {
		checkpointTicker := time.NewTicker(checkpointInterval)
		defer checkpointTicker.Stop()
		checkpointTick = checkpointTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			cancel()
			cancelScaler()
			co.wg.Wait()
			cancelWriter()
			return
		case <-checkpointTick:
			if err := co.journal.Save(co.frontier.Snapshot()); err != nil {
				co.logger.Error("checkpoint save failed", zap.Error(err))
			}
		case <-ticker.C:
			co.scaler.NotifyWorkerCount(int(co.active.Load()))
			co.applyKnobs()
			if co.drained() {
				co.logger.Info("crawl drained, shutting down")
				cancel()
				cancelScaler()
				co.wg.Wait()
				cancelWriter()
				return
			}
		}
	}
}

// drained implements the Coordinator's shutdown test:
// total_queue_length == 0 && active_workers == 0. Frontier.PopOne drops
// an entry as soon as its last path is taken, so there are no empty
// entries left to clean up here.
func (co *Coordinator) drained() bool {
	if co.frontier.Len() != 0 || co.active.Load() != 0 {
		return false
	}
	if n := co.frontier.Len(); n != 0 {
		co.logger.Error("frontier non-empty after drain signal, this indicates a bug",
			zap.Int("queue_length", n))
	}
	return true
}

// applyKnobs pushes the current Knobs snapshot, if configured, into the
// Autoscaler and Limiter. Both setters are cheap no-ops when the values
// are unchanged, so polling every tick rather than diffing is fine.
func (co *Coordinator) applyKnobs() {
	if co.opts.Knobs == nil {
		return
	}
	k := co.opts.Knobs.Load()
	if k == nil {
		return
	}
	co.scaler.SetScaleFactors(k.ScaleUpFactor, k.ScaleDownFactor)
	co.limiter.SetLimit(k.RateLimit, k.RateBurst)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
