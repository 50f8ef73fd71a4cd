package frontier

import "testing"

// TestFrontier_DepthOrdering reproduces spec scenario S3: seed with the
// root, push sub-prefixes ["a/","b/","c/"] at depth 1 from one
// response and ["x/","y/"] at depth 1 from a second response, then pop
// the root followed by three more — the three after the root must all
// be at depth 1.
func TestFrontier_DepthOrdering(t *testing.T) {
	f := New()

	root, depth, ok := f.PopOne()
	if !ok || root != "" || depth != 0 {
		t.Fatalf("expected root pop at depth 0, got %q depth %d ok=%v", root, depth, ok)
	}

	for _, p := range []string{"a/", "b/", "c/"} {
		f.Push(1, p)
	}
	for _, p := range []string{"x/", "y/"} {
		f.Push(1, p)
	}

	for i := 0; i < 3; i++ {
		_, depth, ok := f.PopOne()
		if !ok {
			t.Fatalf("pop %d: frontier unexpectedly empty", i)
		}
		if depth != 1 {
			t.Fatalf("pop %d: depth = %d, want 1", i, depth)
		}
	}
}

func TestFrontier_LenTracksRemainingPaths(t *testing.T) {
	f := New()
	if got := f.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1 (seeded root)", got)
	}

	f.PopOne()
	if got := f.Len(); got != 0 {
		t.Fatalf("Len() after popping root = %d, want 0", got)
	}

	f.Push(1, "a/")
	f.Push(1, "b/")
	if got := f.Len(); got != 2 {
		t.Fatalf("Len() after two pushes = %d, want 2", got)
	}

	f.PopOne()
	if got := f.Len(); got != 1 {
		t.Fatalf("Len() after one pop = %d, want 1", got)
	}
}

func TestFrontier_EmptyWhenExhausted(t *testing.T) {
	f := New()
	f.PopOne()
	if _, _, ok := f.PopOne(); ok {
		t.Fatal("expected frontier to report empty after draining")
	}
}

func TestFrontier_ShallowerAlwaysPoppedFirst(t *testing.T) {
	f := New()
	f.PopOne() // drain the seeded root

	f.Push(3, "deep/")
	f.Push(1, "shallow/")
	f.Push(2, "mid/")

	path, depth, ok := f.PopOne()
	if !ok || depth != 1 || path != "shallow/" {
		t.Fatalf("expected depth-1 path first, got %q depth %d ok=%v", path, depth, ok)
	}
}
