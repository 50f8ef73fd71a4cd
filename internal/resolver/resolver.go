// Package resolver caches DNS resolution of a listing endpoint so a
// Worker population doing thousands of requests per second doesn't
// serialize behind one lookup call each time. It is a single-flight,
// non-blocking TTL cache: a stale entry is always handed out rather
// than making callers wait on a refresh in flight.
package resolver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ttl is how long a resolved entry is trusted before a refresh is
// attempted. Serving a request against a DNS record that is a few
// seconds stale is always preferable to stalling thousands of
// in-flight listings behind one resolver call.
const ttl = 60 * time.Second

// ResolvedEndpoint is one successful resolution: the host's addresses
// as of CreatedAt.
type ResolvedEndpoint struct {
	Host      string
	Addrs     []string
	CreatedAt time.Time
}

func (e *ResolvedEndpoint) stale() bool {
	return e == nil || time.Since(e.CreatedAt) > ttl
}

// Resolver caches one host's resolution. Construct one per distinct
// endpoint hostname the crawler targets.
type Resolver struct {
	host string

	mu        sync.RWMutex
	current   *ResolvedEndpoint
	lastError error

	refreshing atomic.Bool
	lookup     func(ctx context.Context, host string) ([]string, error)
}

// New returns a Resolver for host. An initial synchronous lookup seeds
// the cache so the first Get never returns an empty-cache error unless
// that lookup itself fails.
func New(ctx context.Context, host string) *Resolver {
	r := &Resolver{host: host, lookup: defaultLookup}
	r.refresh(ctx)
	return r
}

func defaultLookup(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// Get returns the current ResolvedEndpoint, triggering an asynchronous
// single-flight refresh if the entry has aged past the TTL. Exactly one
// caller at a time performs the refresh; everyone else gets the stale
// entry immediately rather than blocking on it. Get only returns an
// error when no entry has ever been resolved successfully.
func (r *Resolver) Get(ctx context.Context) (*ResolvedEndpoint, error) {
	r.mu.RLock()
	current := r.current
	lastErr := r.lastError
	r.mu.RUnlock()

	if current.stale() {
		if r.refreshing.CompareAndSwap(false, true) {
			go func() {
				defer r.refreshing.Store(false)
				r.refresh(ctx)
			}()
		}
	}

	if current == nil {
		return nil, lastErr
	}
	return current, nil
}

// refresh performs the lookup and swaps it into current on success. On
// failure the stale entry (if any) is left in place and lastError is
// recorded for callers with no entry at all yet.
func (r *Resolver) refresh(ctx context.Context) {
	addrs, err := r.lookup(ctx, r.host)
	if err != nil || len(addrs) == 0 {
		r.mu.Lock()
		if err == nil {
			err = errNoAddresses
		}
		r.lastError = err
		r.mu.Unlock()
		return
	}

	entry := &ResolvedEndpoint{Host: r.host, Addrs: addrs, CreatedAt: time.Now()}
	r.mu.Lock()
	r.current = entry
	r.mu.Unlock()
}

var errNoAddresses = &noAddressesError{}

type noAddressesError struct{}

func (*noAddressesError) Error() string { return "resolver: no addresses returned" }
