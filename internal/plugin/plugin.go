// Package plugin hosts an optional sandboxed WASM key-filter, following
// the teacher's drivers.WASMPlugin pattern but repurposed from a byte
// transform into a key-filter predicate: the guest module exports
// filter(ptr,len) -> i32, called once per discovered key. A non-zero
// return keeps the key; zero drops it before it reaches the Output
// Writer.
package plugin

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Filter is a loaded key-filter module. It is safe for concurrent use
// by multiple Workers: each Keep call is handed over a channel to one
// goroutine that runs guest calls one at a time, since wazero modules
// are not reentrant.
type Filter struct {
	runtime    wazero.Runtime
	module     api.Module
	filterFn   api.Function
	allocateFn api.Function
	freeFn     api.Function

	call chan func()
	done chan struct{}
}

// Load compiles and instantiates the WASM module at path. The module
// must export "filter", "allocate", and "deallocate"; this matches the
// conventional TinyGo host/guest memory-passing protocol, where the
// guest owns its own linear memory and the host must ask it to reserve
// space before writing into it.
func Load(ctx context.Context, path string) (*Filter, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read wasm file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin: instantiate WASI: %w", err)
	}

	module, err := r.Instantiate(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin: instantiate module: %w", err)
	}

	filterFn := module.ExportedFunction("filter")
	if filterFn == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin: module %s does not export filter(ptr,len) i32", path)
	}
	allocateFn := module.ExportedFunction("allocate")
	freeFn := module.ExportedFunction("deallocate")
	if allocateFn == nil || freeFn == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin: module %s does not export allocate/deallocate", path)
	}

	f := &Filter{
		runtime:    r,
		module:     module,
		filterFn:   filterFn,
		allocateFn: allocateFn,
		freeFn:     freeFn,
		call:       make(chan func()),
		done:       make(chan struct{}),
	}
	go f.serialize()
	return f, nil
}

// serialize runs every guest call on a single goroutine, since a
// wazero api.Module's memory is not safe for concurrent calls from
// multiple goroutines.
func (f *Filter) serialize() {
	for fn := range f.call {
		fn()
	}
	close(f.done)
}

// Keep reports whether key should be written to the output, running
// the guest's filter export. A call error fails open: the key is kept
// and the error is returned for the caller to log, since dropping keys
// silently on a plugin fault would corrupt the enumeration.
func (f *Filter) Keep(ctx context.Context, key string) (bool, error) {
	type result struct {
		keep bool
		err  error
	}
	resultCh := make(chan result, 1)

	f.call <- func() {
		keep, err := f.keepLocked(ctx, key)
		resultCh <- result{keep, err}
	}

	select {
	case res := <-resultCh:
		return res.keep, res.err
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

func (f *Filter) keepLocked(ctx context.Context, key string) (bool, error) {
	keyBytes := []byte(key)
	size := uint64(len(keyBytes))

	allocRes, err := f.allocateFn.Call(ctx, size)
	if err != nil {
		return true, fmt.Errorf("plugin: allocate: %w", err)
	}
	ptr := allocRes[0]
	defer f.freeFn.Call(ctx, ptr, size)

	if !f.module.Memory().Write(uint32(ptr), keyBytes) {
		return true, fmt.Errorf("plugin: write %d bytes at offset %d out of range", size, ptr)
	}

	res, err := f.filterFn.Call(ctx, ptr, size)
	if err != nil {
		return true, fmt.Errorf("plugin: filter call: %w", err)
	}
	return int32(res[0]) != 0, nil
}

// Close releases the WASM runtime. It must only be called after every
// Worker using this Filter has stopped.
func (f *Filter) Close(ctx context.Context) error {
	close(f.call)
	<-f.done
	return f.runtime.Close(ctx)
}
