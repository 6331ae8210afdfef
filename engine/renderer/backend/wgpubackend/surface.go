package wgpubackend

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// swapchainImages is the image count reported to the frame ring. WebGPU does not expose the
// length of the swap chain, and wgpu-native configures three images for every present mode.
const swapchainImages = 3

// Surface is the window swap chain plus the depth attachment sized to it.
type Surface struct {
	device  *Device
	surface *wgpu.Surface
	format  wgpu.TextureFormat
	extent  common.Extent2D

	depth     *wgpu.Texture
	depthView *wgpu.TextureView

	current     *wgpu.Texture
	currentView *wgpu.TextureView
	image       gpu.ImageIndex
	next        uint32
	stale       atomic.Bool
}

var _ gpu.Surface = &Surface{}

// configure (re)creates the swap chain and depth attachment. A zero size leaves the surface
// unconfigured until the next call.
func (s *Surface) configure(width, height uint32) error {
	s.releaseDepth()
	s.extent = common.Extent2D{Width: width, Height: height}
	if s.extent.Empty() {
		return nil
	}

	d := s.device
	capabilities := s.surface.GetCapabilities(d.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("wgpu: surface is not supported by the adapter")
	}
	s.format = capabilities.Formats[0]

	s.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	depth, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("wgpu: depth texture: %w", err)
	}
	view, err := depth.CreateView(nil)
	if err != nil {
		depth.Release()
		return fmt.Errorf("wgpu: depth view: %w", err)
	}
	s.depth, s.depthView = depth, view
	s.next = 0
	s.stale.Store(false)
	return nil
}

// Invalidate marks the surface stale until the next Rebuild. The window calls it on resize.
func (s *Surface) Invalidate() { s.stale.Store(true) }

// Acquire takes the next swap chain texture. Ordering against the upcoming submission is
// implicit in WebGPU, so signal is not used.
func (s *Surface) Acquire(_ gpu.Semaphore) (gpu.ImageIndex, error) {
	if s.stale.Load() || s.extent.Empty() {
		return 0, gpu.ErrSurfaceStale
	}
	if s.current != nil {
		return 0, errors.New("wgpu: acquire before the previous image was presented")
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", gpu.ErrSurfaceStale, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("wgpu: surface view: %w", err)
	}

	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.current, s.currentView = tex, view
	s.image = gpu.ImageIndex(s.next % swapchainImages)
	s.next++
	return s.image, nil
}

// Present shows the acquired image. A resize that arrived while the frame was in flight is
// reported as gpu.ErrSurfaceStale after the image has been handed back.
func (s *Surface) Present(image gpu.ImageIndex, _ gpu.Semaphore) error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.current == nil || image != s.image {
		return fmt.Errorf("wgpu: present of image %d, which is not acquired", image)
	}
	s.surface.Present()
	s.currentView.Release()
	s.current.Release()
	s.current, s.currentView = nil, nil
	if s.stale.Load() {
		return gpu.ErrSurfaceStale
	}
	return nil
}

func (s *Surface) Rebuild(width, height uint32) error {
	if err := s.device.WaitIdle(); err != nil {
		return err
	}
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.current != nil {
		s.currentView.Release()
		s.current.Release()
		s.current, s.currentView = nil, nil
	}
	return s.configure(width, height)
}

func (s *Surface) Extent() common.Extent2D { return s.extent }

// ImageCount returns a fixed three. wgpu exposes no swap chain length in its surface
// capabilities, and wgpu-native configures three images for every present mode.
func (s *Surface) ImageCount() int { return swapchainImages }

func (s *Surface) Release() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.release()
}

func (s *Surface) release() {
	s.releaseDepth()
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}

func (s *Surface) releaseDepth() {
	if s.depthView != nil {
		s.depthView.Release()
		s.depth.Release()
		s.depth, s.depthView = nil, nil
	}
}
