// Package worker implements the crawler's per-task traversal loop: pop
// a prefix, paginate it to completion against the listing client,
// push discovered sub-prefixes back onto the frontier, and hand
// discovered objects to the Writer.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/frontier"
	"github.com/FairForge/s3sweep/internal/metrics"
	"github.com/FairForge/s3sweep/internal/ratelimit"
	"github.com/FairForge/s3sweep/internal/resolver"
	"github.com/FairForge/s3sweep/internal/s3client"
	"github.com/FairForge/s3sweep/internal/writer"
)

const (
	emptyFrontierBackoff = 100 * time.Millisecond
	transportRetryDelay  = time.Second
	maxTransportAttempts = 5
)

// TargetProvider is the Autoscaler's exposed surface: the worker loop
// reads Target() at loop head to decide whether it should self-exit on
// scale-down.
type TargetProvider interface {
	Target() int
}

// Lister is the subset of *s3client.Client a Worker depends on. A
// narrow interface here lets the traversal loop itself be tested
// against a fake without standing up a real socket.
type Lister interface {
	ListV1(ctx context.Context, ep s3client.Endpoint, p s3client.Params) (s3client.ListingResult, error)
	ListV2(ctx context.Context, ep s3client.Endpoint, p s3client.Params) (s3client.ListingResult, error)
}

// EndpointResolver is the subset of *resolver.Resolver a Worker needs.
type EndpointResolver interface {
	Get(ctx context.Context) (*resolver.ResolvedEndpoint, error)
}

// KeyFilter is the subset of *plugin.Filter a Worker needs. Left nil,
// every discovered key is kept.
type KeyFilter interface {
	Keep(ctx context.Context, key string) (bool, error)
}

// Config bundles everything a Worker needs that is shared across the
// whole pool.
type Config struct {
	Bucket       string
	Delimiter    string
	EncodingType string
	MaxKeys      int
	UseV2        bool
	Format       writer.Format
	Scheme       string // "http" or "https"
	Port         int
}

// Worker runs the traversal loop described by the component contract.
// It holds no state of its own beyond what the loop needs locally —
// everything shared (frontier, client, metrics, writer) is a borrowed
// reference owned by the Coordinator.
type Worker struct {
	id       int
	cfg      Config
	frontier *frontier.Frontier
	client   Lister
	resolver EndpointResolver
	metrics  *metrics.Metrics
	writer   *writer.Writer
	limiter  *ratelimit.Limiter
	target   TargetProvider
	filter   KeyFilter // optional; nil keeps every key
	logger   *zap.Logger

	active *atomic.Int64 // shared active-worker counter, owned by the Coordinator
}

// New returns a Worker. active is the Coordinator's shared counter of
// currently-running Workers; New does not increment it — the caller
// does that at spawn time, symmetrically with the decrement the Worker
// performs on its own exit. filter may be nil, in which case every
// discovered key is written.
func New(id int, cfg Config, f *frontier.Frontier, c Lister, r EndpointResolver,
	m *metrics.Metrics, w *writer.Writer, limiter *ratelimit.Limiter, target TargetProvider,
	filter KeyFilter, active *atomic.Int64, logger *zap.Logger) *Worker {
	return &Worker{
		id: id, cfg: cfg, frontier: f, client: c, resolver: r,
		metrics: m, writer: w, limiter: limiter, target: target, filter: filter,
		active: active, logger: logger.With(zap.Int("worker_id", id)),
	}
}

// Run executes the traversal loop until the Worker decides to exit:
// scale-down (active_workers > target_workers), or the frontier is
// globally drained (empty, with no listing op in flight anywhere in
// the pool). Either condition is enough on its own; this is a Worker's
// own, cooperative decision — the Coordinator never cancels a Worker
// for either reason, it only reads active_workers back down to zero.
func (w *Worker) Run(ctx context.Context) {
	defer w.active.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if int(w.active.Load()) > w.target.Target() {
			w.logger.Debug("scale-down observed, exiting")
			return
		}

		path, depth, ok := w.frontier.PopOne()
		if !ok {
			if w.metrics.TotalQueueLength.Load() == 0 && w.metrics.OpsInFlight.Load() == 0 {
				w.logger.Debug("frontier globally drained, exiting")
				return
			}
			select {
			case <-time.After(emptyFrontierBackoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		w.metrics.AddQueueLength(-1)

		w.crawlPrefix(ctx, path, depth)
	}
}

// crawlPrefix drives pagination for one popped prefix to completion.
// Every log line emitted for this prefix carries the same request_id,
// so one prefix's pagination history can be grepped out of
// interleaved concurrent Worker output.
func (w *Worker) crawlPrefix(ctx context.Context, prefix string, depth int) {
	var cursor string
	logger := w.logger.With(zap.String("request_id", uuid.NewString()))

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		result, err := w.listWithRetry(ctx, logger, prefix, cursor)
		if err != nil {
			logger.Error("abandoning prefix after repeated transport failures",
				zap.String("prefix", prefix), zap.Error(err))
			return
		}
		if result == nil {
			return // parse error already logged by listWithRetry
		}

		if result.IsTruncated && result.NextToken == cursor && cursor != "" {
			logger.Warn("server echoed input token, abandoning prefix to avoid looping",
				zap.String("prefix", prefix), zap.String("token", cursor))
			return
		}

		w.metrics.RecordObjectsFound(len(result.Objects))
		objects := w.applyFilter(ctx, logger, result.Objects)
		if len(objects) > 0 {
			buf := writer.FormatBatch(objects, w.cfg.Format, logger)
			w.writer.Push(buf)
			w.metrics.RecordKeysWritten(len(objects))
		}

		if len(result.SubPrefixes) > 0 {
			for _, sp := range result.SubPrefixes {
				w.frontier.Push(depth+1, sp)
			}
			w.metrics.AddQueueLength(len(result.SubPrefixes))
		}

		if !result.IsTruncated {
			return
		}
		cursor = result.NextToken
	}
}

// listWithRetry issues one page of listing, retrying transport errors
// up to maxTransportAttempts times with a fixed 1s backoff. A parse
// error is never retried (it is a deterministic failure). A nil,nil
// return means the page failed deterministically and was already
// logged; a non-nil error means every retry was exhausted.
func (w *Worker) listWithRetry(ctx context.Context, logger *zap.Logger, prefix, cursor string) (*s3client.ListingResult, error) {
	params := s3client.Params{
		Bucket:       w.cfg.Bucket,
		Prefix:       prefix,
		Delimiter:    w.cfg.Delimiter,
		EncodingType: w.cfg.EncodingType,
		MaxKeys:      w.cfg.MaxKeys,
	}
	if w.cfg.UseV2 {
		params.ContinuationToken = cursor
	} else {
		params.Marker = cursor
	}

	var lastErr error
	for attempt := 1; attempt <= maxTransportAttempts; attempt++ {
		ep, err := w.endpoint(ctx)
		if err != nil {
			lastErr = err
		} else {
			w.metrics.BeginOp()
			var result s3client.ListingResult
			if w.cfg.UseV2 {
				result, err = w.client.ListV2(ctx, ep, params)
			} else {
				result, err = w.client.ListV1(ctx, ep, params)
			}
			w.metrics.EndOp(err)

			if err == nil {
				return &result, nil
			}

			if _, isParse := err.(*s3client.ParseError); isParse {
				logger.Error("listing response failed to parse, abandoning page",
					zap.String("prefix", prefix), zap.Error(err))
				return nil, nil
			}
			lastErr = err
		}

		if attempt == maxTransportAttempts {
			break
		}
		select {
		case <-time.After(transportRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// applyFilter runs the optional key-filter plugin over a page of
// discovered objects, dropping any key it rejects. A plugin call error
// fails open (the key is kept) and is logged, since silently dropping
// keys on a plugin fault would corrupt the enumeration.
func (w *Worker) applyFilter(ctx context.Context, logger *zap.Logger, objects []s3client.Object) []s3client.Object {
	if w.filter == nil {
		return objects
	}
	kept := objects[:0:0]
	for _, obj := range objects {
		keep, err := w.filter.Keep(ctx, obj.Key)
		if err != nil {
			logger.Warn("key filter call failed, keeping key", zap.String("key", obj.Key), zap.Error(err))
			keep = true
		}
		if keep {
			kept = append(kept, obj)
		}
	}
	return kept
}

func (w *Worker) endpoint(ctx context.Context) (s3client.Endpoint, error) {
	re, err := w.resolver.Get(ctx)
	if err != nil {
		return s3client.Endpoint{}, err
	}
	port := w.cfg.Port
	if port == 0 {
		port = 443
	}
	addr := fmt.Sprintf("%s:%d", re.Host, port)
	if len(re.Addrs) > 0 {
		addr = fmt.Sprintf("%s:%d", re.Addrs[0], port)
	}
	scheme := w.cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return s3client.Endpoint{Host: re.Host, Addr: addr, Scheme: scheme}, nil
}
