package headless

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

var (
	errFenceSignaled  = errors.New("headless: submit with a signaled fence")
	errFencePending   = errors.New("headless: fence reset while its submission is pending")
	errSemaphoreFull  = errors.New("headless: semaphore signaled twice without a wait")
	errForeignObject  = errors.New("headless: object belongs to another backend")
	errStreamNotEnded = errors.New("headless: stream submitted before End")
	errFenceIdle      = errors.New("headless: wait on a reset fence that was never submitted")
)

// Fence is a host-waitable completion flag.
type Fence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
	pending  bool
	waits    atomic.Int64
}

var _ gpu.Fence = &Fence{}

func newFence(signaled bool) *Fence {
	f := &Fence{signaled: signaled}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fence) Wait() error {
	f.waits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled && !f.pending {
		return errFenceIdle
	}
	for !f.signaled {
		f.cond.Wait()
	}
	return nil
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return errFencePending
	}
	f.signaled = false
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Waits returns how many times Wait has been called.
func (f *Fence) Waits() int64 { return f.waits.Load() }

func (f *Fence) Release() {}

func (f *Fence) arm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return errFenceSignaled
	}
	f.pending = true
	return nil
}

func (f *Fence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.pending = false
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Semaphore is a binary semaphore on the simulated device timeline.
type Semaphore struct {
	ch chan struct{}
}

var _ gpu.Semaphore = &Semaphore{}

func newSemaphore() *Semaphore {
	return &Semaphore{ch: make(chan struct{}, 1)}
}

func (s *Semaphore) signal() error {
	select {
	case s.ch <- struct{}{}:
		return nil
	default:
		return errSemaphoreFull
	}
}

func (s *Semaphore) wait() {
	<-s.ch
}

// Pending reports whether the semaphore is signaled and not yet waited on.
func (s *Semaphore) Pending() bool { return len(s.ch) > 0 }

func (s *Semaphore) Release() {}
