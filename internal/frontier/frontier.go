// Package frontier implements the crawler's traversal queue: a
// min-priority queue keyed by depth so shallower prefixes are always
// explored before deeper ones. Keeping the frontier BFS-leaning bounds
// its size in bushy buckets — a bucket with a million top-level
// prefixes never gets a chance to explode depth-first before the
// Autoscaler has had a chance to add workers.
package frontier

import (
	"container/heap"
	"sync"
)

// FrontierEntry groups every sibling prefix discovered at the same
// depth. Paths is mutable: pop_one removes one path and, once the
// slice is empty, the entry is discarded.
type FrontierEntry struct {
	Depth int
	Paths []string
}

// Frontier is the depth-ordered queue described above. All mutation is
// serialized by one mutex — the queue is shared by every Worker and
// contention here is expected to be the crawler's hottest lock.
type Frontier struct {
	mu  sync.Mutex
	pq  entryHeap
	len int // total_queue_length: sum of len(entry.Paths) across pq
}

// New returns a Frontier seeded with one entry at depth 0 holding the
// root prefix, represented as the empty string.
func New() *Frontier {
	f := &Frontier{}
	heap.Init(&f.pq)
	f.pushLocked(0, []string{""})
	return f
}

// NewFromSnapshot returns a Frontier seeded from a prior Snapshot,
// for checkpoint/resume: entries are restored at their original
// depths instead of starting over from the root prefix.
func NewFromSnapshot(entries []FrontierEntry) *Frontier {
	f := &Frontier{}
	heap.Init(&f.pq)
	for _, e := range entries {
		if len(e.Paths) == 0 {
			continue
		}
		f.pushLocked(e.Depth, append([]string(nil), e.Paths...))
	}
	return f
}

// Snapshot returns a copy of every remaining frontier entry, safe for
// the caller to serialize without racing concurrent Push/PopOne calls.
func (f *Frontier) Snapshot() []FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FrontierEntry, 0, len(f.pq))
	for _, e := range f.pq {
		if len(e.Paths) == 0 {
			continue
		}
		out = append(out, FrontierEntry{Depth: e.Depth, Paths: append([]string(nil), e.Paths...)})
	}
	return out
}

// Push adds path at depth to the frontier, merging into an existing
// entry at that depth when one is present.
func (f *Frontier) Push(depth int, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushLocked(depth, []string{path})
}

func (f *Frontier) pushLocked(depth int, paths []string) {
	for _, e := range f.pq {
		if e.Depth == depth {
			e.Paths = append(e.Paths, paths...)
			f.len += len(paths)
			return
		}
	}
	heap.Push(&f.pq, &FrontierEntry{Depth: depth, Paths: paths})
	f.len += len(paths)
}

// PopOne removes and returns one path from the shallowest non-empty
// entry, along with the depth it was popped at. ok is false when the
// frontier is empty.
func (f *Frontier) PopOne() (path string, depth int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.pq.Len() > 0 {
		top := f.pq[0]
		if len(top.Paths) == 0 {
			heap.Pop(&f.pq)
			continue
		}
		path = top.Paths[0]
		top.Paths = top.Paths[1:]
		f.len--
		depth = top.Depth
		if len(top.Paths) == 0 {
			heap.Pop(&f.pq)
		} else {
			heap.Fix(&f.pq, 0)
		}
		return path, depth, true
	}
	return "", 0, false
}

// Len reports total_queue_length: the sum of every entry's remaining
// path count.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.len
}

// entryHeap implements container/heap.Interface, ordering by Depth
// ascending so Pop/index 0 always yields the shallowest entry.
type entryHeap []*FrontierEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Depth < h[j].Depth }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*FrontierEntry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
