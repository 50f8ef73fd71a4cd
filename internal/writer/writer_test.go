package writer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/s3sweep/internal/s3client"
)

func TestWriter_DrainsPushedBuffers(t *testing.T) {
	var sink bytes.Buffer
	w := New(&sink, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Push([]byte("a/one.txt\n"))
	w.Push([]byte("a/two.txt\n"))

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	got := sink.String()
	if got != "a/one.txt\na/two.txt\n" {
		t.Fatalf("sink = %q", got)
	}
}

func TestWriter_FinalDrainOnCancel(t *testing.T) {
	var sink bytes.Buffer
	w := New(&sink, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Push([]byte("late.txt\n"))
	cancel()
	<-done

	if sink.String() != "late.txt\n" {
		t.Fatalf("expected final drain to flush pending push, got %q", sink.String())
	}
}

func TestFormatBatch_Plain(t *testing.T) {
	objs := []s3client.Object{{Key: "a"}, {Key: ""}, {Key: "b"}}
	got := FormatBatch(objs, Plain, zap.NewNop())
	if string(got) != "a\nb\n" {
		t.Fatalf("FormatBatch(Plain) = %q", got)
	}
}

func TestFormatBatch_JSONOmitsAbsentFields(t *testing.T) {
	objs := []s3client.Object{{Key: "a"}}
	got := FormatBatch(objs, JSON, zap.NewNop())
	want := `{"key":"a"}` + "\n"
	if string(got) != want {
		t.Fatalf("FormatBatch(JSON) = %q, want %q", got, want)
	}
}

func TestFormatBatch_JSONIncludesPopulatedFields(t *testing.T) {
	etag := `"abc"`
	size := int64(42)
	objs := []s3client.Object{{Key: "a", ETag: &etag, Size: &size}}
	got := FormatBatch(objs, JSON, zap.NewNop())
	want := `{"key":"a","etag":"\"abc\"","size":42}` + "\n"
	if string(got) != want {
		t.Fatalf("FormatBatch(JSON) = %q, want %q", got, want)
	}
}
