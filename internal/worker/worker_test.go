package worker

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/frontier"
	"github.com/FairForge/s3sweep/internal/metrics"
	"github.com/FairForge/s3sweep/internal/ratelimit"
	"github.com/FairForge/s3sweep/internal/resolver"
	"github.com/FairForge/s3sweep/internal/s3client"
	"github.com/FairForge/s3sweep/internal/writer"
	"github.com/prometheus/client_golang/prometheus"
)

type fixedTarget int

func (f fixedTarget) Target() int { return int(f) }

type fakeResolver struct{}

func (fakeResolver) Get(ctx context.Context) (*resolver.ResolvedEndpoint, error) {
	return &resolver.ResolvedEndpoint{Host: "bucket.s3.amazonaws.com", Addrs: []string{"127.0.0.1"}}, nil
}

// fakeLister replays one page per continuation token supplied, so
// TestCrawlPrefix_Pagination can exercise S4.
type fakeLister struct {
	pages map[string]s3client.ListingResult // keyed by input cursor ("" for first page)
	err   error
}

func (f *fakeLister) ListV1(ctx context.Context, ep s3client.Endpoint, p s3client.Params) (s3client.ListingResult, error) {
	return f.lookup(p.Marker)
}

func (f *fakeLister) ListV2(ctx context.Context, ep s3client.Endpoint, p s3client.Params) (s3client.ListingResult, error) {
	return f.lookup(p.ContinuationToken)
}

func (f *fakeLister) lookup(cursor string) (s3client.ListingResult, error) {
	if f.err != nil {
		return s3client.ListingResult{}, f.err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return s3client.ListingResult{}, nil
	}
	return page, nil
}

func newTestWorker(t *testing.T, lister Lister) (*Worker, *bytes.Buffer) {
	t.Helper()
	var sink bytes.Buffer
	w := writer.New(&sink, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	f := frontier.New()
	limiter := ratelimit.New(0, 0)
	var active atomic.Int64
	active.Store(1)

	cfg := Config{Bucket: "b", UseV2: true, MaxKeys: 1000, Format: writer.Plain}
	wk := New(1, cfg, f, lister, fakeResolver{}, m, w, limiter, fixedTarget(1), nil, &active, zap.NewNop())
	return wk, &sink
}

// TestCrawlPrefix_Pagination reproduces spec scenario S4: a truncated
// first page with NextContinuationToken "T1" must be re-queried with
// that cursor until IsTruncated is false, with all keys across pages
// appearing in the output.
func TestCrawlPrefix_Pagination(t *testing.T) {
	lister := &fakeLister{pages: map[string]s3client.ListingResult{
		"": {
			Objects:     []s3client.Object{{Key: "a"}},
			IsTruncated: true,
			NextToken:   "T1",
		},
		"T1": {
			Objects:     []s3client.Object{{Key: "b"}},
			IsTruncated: false,
		},
	}}
	wk, sink := newTestWorker(t, lister)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		wk.writer.Run(ctx)
		close(done)
	}()

	wk.crawlPrefix(context.Background(), "", 0)
	time.Sleep(30 * time.Millisecond) // let the writer's next tick drain
	cancel()
	<-done

	got := sink.String()
	if got != "a\nb\n" {
		t.Fatalf("output = %q, want both pages' keys", got)
	}
}

// TestCrawlPrefix_RepeatedTokenAbandoned reproduces spec scenario S5: a
// response that echoes its own input token as NextContinuationToken
// must be abandoned rather than retried forever.
func TestCrawlPrefix_RepeatedTokenAbandoned(t *testing.T) {
	lister := &fakeLister{pages: map[string]s3client.ListingResult{
		"": {
			Objects:     []s3client.Object{{Key: "a"}},
			IsTruncated: true,
			NextToken:   "T1",
		},
		"T1": {
			IsTruncated: true,
			NextToken:   "T1", // echoes its own input token
		},
	}}
	wk, _ := newTestWorker(t, lister)

	done := make(chan struct{})
	go func() {
		wk.crawlPrefix(context.Background(), "", 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("crawlPrefix did not return — repeated-token defense failed to break the loop")
	}
}

// TestWorker_ExitsOnGlobalDrain reproduces spec.md §4.5 step 1's second
// termination condition: an empty frontier with no op in flight, not
// just scale-down. Without it, Run backs off on PopOne forever and
// active_workers can never reach zero.
func TestWorker_ExitsOnGlobalDrain(t *testing.T) {
	var sink bytes.Buffer
	w := writer.New(&sink, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	f := frontier.New() // freshly seeded with one root entry
	limiter := ratelimit.New(0, 0)
	var active atomic.Int64
	active.Store(1)

	if _, _, ok := f.PopOne(); !ok {
		t.Fatal("expected to pop the seeded root entry")
	}
	m.AddQueueLength(-1) // mirror what Run itself does on a successful pop

	cfg := Config{Bucket: "b", UseV2: true, MaxKeys: 1000, Format: writer.Plain}
	wk := New(1, cfg, f, &fakeLister{}, fakeResolver{}, m, w, limiter, fixedTarget(1), nil, &active, zap.NewNop())

	done := make(chan struct{})
	go func() {
		wk.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit on a globally drained frontier")
	}
}

func TestWorker_ExitsOnScaleDown(t *testing.T) {
	var sink bytes.Buffer
	w := writer.New(&sink, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	f := frontier.New()
	limiter := ratelimit.New(0, 0)
	var active atomic.Int64
	active.Store(2) // active > target(1) from the first loop iteration

	cfg := Config{Bucket: "b", UseV2: true, MaxKeys: 1000, Format: writer.Plain}
	wk := New(1, cfg, f, &fakeLister{}, fakeResolver{}, m, w, limiter, fixedTarget(1), nil, &active, zap.NewNop())

	done := make(chan struct{})
	go func() {
		wk.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit on scale-down")
	}
}
