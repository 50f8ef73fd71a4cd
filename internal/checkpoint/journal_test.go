package checkpoint

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/FairForge/s3sweep/internal/frontier"
)

func TestJournal_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	j, err := NewJournal(path, key)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	want := []frontier.FrontierEntry{
		{Depth: 0, Paths: []string{""}},
		{Depth: 1, Paths: []string{"a/", "b/"}},
	}
	if err := j.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := j.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestJournal_LoadReplaysLatestFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")
	key := make([]byte, 32)

	j, err := NewJournal(path, key)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	first := []frontier.FrontierEntry{{Depth: 0, Paths: []string{"stale/"}}}
	second := []frontier.FrontierEntry{{Depth: 2, Paths: []string{"fresh/"}}}
	if err := j.Save(first); err != nil {
		t.Fatalf("Save(first): %v", err)
	}
	if err := j.Save(second); err != nil {
		t.Fatalf("Save(second): %v", err)
	}

	got, err := j.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Fatalf("Load() = %+v, want the most recently saved snapshot %+v", got, second)
	}
}

func TestJournal_LoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.bin")
	key := make([]byte, 32)

	j, err := NewJournal(path, key)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	got, err := j.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("Load() = %+v, want nil for a missing journal file", got)
	}
}
