package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolver_SeedsOnConstruction(t *testing.T) {
	r := &Resolver{host: "example.com", lookup: func(ctx context.Context, host string) ([]string, error) {
		return []string{"10.0.0.1"}, nil
	}}
	r.refresh(context.Background())

	ep, err := r.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(ep.Addrs) != 1 || ep.Addrs[0] != "10.0.0.1" {
		t.Fatalf("Addrs = %v", ep.Addrs)
	}
}

func TestResolver_StaleEntryServedWithoutBlocking(t *testing.T) {
	var calls atomic.Int32
	block := make(chan struct{})
	r := &Resolver{host: "example.com", lookup: func(ctx context.Context, host string) ([]string, error) {
		calls.Add(1)
		<-block // the refresh never returns during this test
		return nil, nil
	}}
	r.current = &ResolvedEndpoint{
		Host:      "example.com",
		Addrs:     []string{"10.0.0.9"},
		CreatedAt: time.Now().Add(-2 * ttl), // force staleness
	}

	start := time.Now()
	ep, err := r.Get(context.Background())
	elapsed := time.Since(start)
	close(block)

	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if elapsed > 50*time.Millisecond {
		t.Fatalf("Get blocked on refresh: took %v", elapsed)
	}
	if ep.Addrs[0] != "10.0.0.9" {
		t.Fatalf("expected stale entry to be served, got %v", ep.Addrs)
	}
}

func TestResolver_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	r := &Resolver{host: "example.com", lookup: func(ctx context.Context, host string) ([]string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []string{"10.0.0.1"}, nil
	}}
	r.current = &ResolvedEndpoint{
		Host:      "example.com",
		Addrs:     []string{"10.0.0.9"},
		CreatedAt: time.Now().Add(-2 * ttl),
	}

	for i := 0; i < 5; i++ {
		if _, err := r.Get(context.Background()); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
}

func TestResolver_NoEntryReturnsLastError(t *testing.T) {
	wantErr := errNoAddresses
	r := &Resolver{host: "example.com", lookup: func(ctx context.Context, host string) ([]string, error) {
		return nil, wantErr
	}}
	r.refresh(context.Background())

	_, err := r.Get(context.Background())
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
