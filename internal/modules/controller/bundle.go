package controller

import (
	"sync"

	"vbackup/internal/modules"
)

// Bundle wraps a single underlying controller instance shared by
// multiple sync units. Its Begin is memoized: the first call actually
// drives the underlying controller; every later call returns the
// cached result. End and Clear are deferred until all contained syncs
// have been attempted — the executor calls Done() exactly once, which
// in turn invokes the real End then Clear. Grounded on the original's
// modules/controller/bundle.rs ControllerBundle.
type Bundle struct {
	mu          sync.Mutex
	underlying  modules.Controller
	beginOnce   sync.Once
	beginResult bool
	beginErr    error
	began       bool
}

// NewBundle wraps underlying in a memoized-begin shell.
func NewBundle(underlying modules.Controller) *Bundle {
	return &Bundle{underlying: underlying}
}

func (b *Bundle) Init() error { return b.underlying.Init() }

// Begin drives the underlying controller exactly once; every contained
// sync unit observes the same (result, error) pair.
func (b *Bundle) Begin() (bool, error) {
	b.beginOnce.Do(func() {
		b.mu.Lock()
		b.began = true
		b.mu.Unlock()
		b.beginResult, b.beginErr = b.underlying.Begin()
	})
	return b.beginResult, b.beginErr
}

// End is a no-op here; the real end happens in Done.
func (b *Bundle) End() error { return nil }

// Clear is a no-op here; the real clear happens in Done.
func (b *Bundle) Clear() error { return nil }

// Done invokes the real End then Clear on the underlying controller,
// called by the executor once every contained sync has been attempted.
// If Begin was never called, End is skipped and only Clear runs.
func (b *Bundle) Done() error {
	b.mu.Lock()
	began := b.began
	b.mu.Unlock()
	if !began {
		return b.underlying.Clear()
	}
	if err := b.underlying.End(); err != nil {
		_ = b.underlying.Clear()
		return err
	}
	return b.underlying.Clear()
}
