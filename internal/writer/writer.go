// Package writer implements the crawler's single output-writing task.
// Workers format their own batches (to keep contention on the shared
// stack to a single push per listing response) and hand the Writer an
// already-serialized buffer; the Writer's only job is draining that
// stack to the output sink on a fixed tick.
package writer

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tickPeriod is the Writer's drain interval.
const tickPeriod = 10 * time.Millisecond

// Writer owns the output sink exclusively; no other component ever
// writes to it. The backing stack is mutex-guarded rather than truly
// lock-free — Go's standard library has no lock-free MPMC primitive,
// and a short critical section around an append/drain pair is
// indistinguishable in practice at this tick rate.
type Writer struct {
	sink   io.Writer
	logger *zap.Logger

	mu    sync.Mutex
	stack [][]byte
}

// New returns a Writer draining into sink.
func New(sink io.Writer, logger *zap.Logger) *Writer {
	return &Writer{sink: sink, logger: logger}
}

// Push queues an already-formatted buffer for the next drain. Workers
// call this once per listing response.
func (w *Writer) Push(buf []byte) {
	if len(buf) == 0 {
		return
	}
	w.mu.Lock()
	w.stack = append(w.stack, buf)
	w.mu.Unlock()
}

// Run drains the stack every tickPeriod until ctx is cancelled, then
// performs one final drain so nothing pushed just before shutdown is
// lost.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.drain()
		case <-ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	w.mu.Lock()
	batch := w.stack
	w.stack = nil
	w.mu.Unlock()

	for _, buf := range batch {
		if _, err := w.sink.Write(buf); err != nil {
			w.logger.Error("output write failed", zap.Error(err))
		}
	}
}
