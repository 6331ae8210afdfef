package headless

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

// Surface is an offscreen swap chain. Staleness can be injected to exercise rebuild handling.
type Surface struct {
	device *Device

	mu            sync.Mutex
	extent        common.Extent2D
	imageCount    int
	next          int
	staleAcquires int
	stalePresents int
	rebuilds      int
	invalid       bool
	acquires      int
	presents      []gpu.ImageIndex
	released      bool
}

var _ gpu.Surface = &Surface{}

// NewSurface creates a surface with imageCount images of the given extent.
func (d *Device) NewSurface(extent common.Extent2D, imageCount int) *Surface {
	if imageCount < 1 {
		imageCount = 1
	}
	return &Surface{device: d, extent: extent, imageCount: imageCount}
}

// InjectStaleAcquire makes the next n Acquire calls return gpu.ErrSurfaceStale.
func (s *Surface) InjectStaleAcquire(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleAcquires += n
}

// Invalidate marks the surface stale until the next Rebuild, as a window resize does.
func (s *Surface) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = true
}

// InjectStalePresent makes the next n Present calls return gpu.ErrSurfaceStale.
func (s *Surface) InjectStalePresent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalePresents += n
}

func (s *Surface) Acquire(signal gpu.Semaphore) (gpu.ImageIndex, error) {
	sem, err := semaphoreOf(signal)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, gpu.ErrReleased
	}
	if s.staleAcquires > 0 {
		s.staleAcquires--
		return 0, gpu.ErrSurfaceStale
	}
	if s.invalid || s.extent.Empty() {
		return 0, gpu.ErrSurfaceStale
	}
	if sem != nil {
		if err := sem.signal(); err != nil {
			return 0, err
		}
	}
	img := gpu.ImageIndex(s.next)
	s.next = (s.next + 1) % s.imageCount
	s.acquires++
	return img, nil
}

func (s *Surface) Present(image gpu.ImageIndex, wait gpu.Semaphore) error {
	sem, err := semaphoreOf(wait)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stale := s.stalePresents > 0
	if stale {
		s.stalePresents--
	}
	s.mu.Unlock()

	// A stale present still consumes the wait, like a real swap chain does.
	target := s
	if stale {
		target = nil
	}
	if err := s.device.present(&pendingPresent{surface: target, image: image, wait: sem}); err != nil {
		return err
	}
	if stale {
		return gpu.ErrSurfaceStale
	}
	return nil
}

func (s *Surface) presented(image gpu.ImageIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presents = append(s.presents, image)
}

func (s *Surface) Rebuild(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extent = common.Extent2D{Width: width, Height: height}
	s.next = 0
	s.invalid = false
	s.rebuilds++
	return nil
}

func (s *Surface) Extent() common.Extent2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *Surface) ImageCount() int { return s.imageCount }

// Rebuilds returns how many times Rebuild has been called.
func (s *Surface) Rebuilds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuilds
}

// Presented returns the images presented so far, in presentation order.
func (s *Surface) Presented() []gpu.ImageIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gpu.ImageIndex(nil), s.presents...)
}

func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}
