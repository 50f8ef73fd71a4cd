package plugin

import (
	"context"
	"testing"
)

// A real filter(ptr,len)/allocate/deallocate module requires a compiled
// .wasm fixture, the same way the teacher's own wasm_test.go depends on
// prebuilt testdata/*.wasm rather than constructing modules in Go. That
// fixture can't be produced here without invoking a WASM toolchain, so
// this only covers the load-time error path; the guest-call path is
// exercised by hand against a real module before shipping a plugin.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), "testdata/does-not-exist.wasm")
	if err == nil {
		t.Fatal("expected an error loading a nonexistent wasm file")
	}
}
