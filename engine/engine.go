package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// Orbit step applied per key press, in radians.
const keyOrbitStep = 0.05

// Orbit applied per dragged pixel, in radians.
const dragOrbitScale = 0.005

// engine implements the Engine interface.
// Drives the camera, the renderer and the optional window from one loop.
type engine struct {
	renderer renderer.Renderer
	camera   camera.Camera
	window   window.Window
	logger   log.Logger

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	mu               sync.Mutex
	profiler         *profiler.Profiler
	profilingEnabled bool
	orbitPaused      bool
	tickCallback     func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	maxFrames uint64
	frame     uint64
	now       func() time.Time
}

// Engine is the main entry point for the engine.
// It owns the frame counter and runs the camera, renderer and window until asked to stop.
type Engine interface {
	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Profiler returns the profiler fed with the stats of every submitted frame while profiling
	// is enabled.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called once per loop iteration before the frame is
	// drawn. Use this for scene logic and input processing.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run draws frames until the context is cancelled, Quit is called, the window closes or the
	// frame limit set with WithMaxFrames is reached. It waits for the device to go idle before
	// returning.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: the fatal frame error that stopped the loop, or nil
	Run(ctx context.Context) error

	// Frames returns the number of frames submitted so far.
	Frames() uint64

	// Quit signals the loop to stop after the current frame.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine drawing r from the point of view of cam.
// Window input is bound to the camera controller when a window is configured.
//
// Parameters:
//   - r: the renderer that draws every frame
//   - cam: the camera the frames are drawn from
//   - options: functional options for engine configuration (window, profiling, frame limits)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, cam camera.Camera, options ...EngineBuilderOption) Engine {
	if r == nil || cam == nil {
		panic("engine: renderer and camera are required")
	}
	e := &engine{
		renderer:    r,
		camera:      cam,
		logger:      log.New("engine"),
		quitChannel: make(chan struct{}),
		now:         time.Now,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithClock(e.now))
	}
	if e.window != nil {
		e.bindWindow()
	}

	return e
}

// bindWindow routes window input to the camera controller and window resizes to the surface.
func (e *engine) bindWindow() {
	e.window.SetResizeCallback(func(width, height int) {
		e.logger.Debugf("window resized to %dx%d", width, height)
		if s, ok := e.renderer.Surface().(interface{ Invalidate() }); ok {
			s.Invalidate()
		}
	})
	e.window.SetScrollCallback(func(delta float32) {
		if ctrl := e.camera.Controller(); ctrl != nil {
			ctrl.Zoom(delta)
		}
	})
	e.window.SetDragCallback(func(dx, dy float32) {
		if ctrl := e.camera.Controller(); ctrl != nil {
			ctrl.Orbit(-dx*dragOrbitScale, dy*dragOrbitScale)
		}
	})
	e.window.SetKeyDownCallback(e.handleKey)
}

func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeyP:
		e.mu.Lock()
		e.profilingEnabled = !e.profilingEnabled
		e.mu.Unlock()
		return
	case common.KeySpace:
		e.mu.Lock()
		e.orbitPaused = !e.orbitPaused
		e.mu.Unlock()
		return
	case common.KeyEsc:
		e.Quit()
		return
	}

	ctrl := e.camera.Controller()
	if ctrl == nil {
		return
	}
	switch keyCode {
	case common.KeyW:
		ctrl.Zoom(1)
	case common.KeyS:
		ctrl.Zoom(-1)
	case common.KeyA, common.KeyLeft:
		ctrl.Orbit(-keyOrbitStep, 0)
	case common.KeyD, common.KeyRight:
		ctrl.Orbit(keyOrbitStep, 0)
	case common.KeyQ, common.KeyDown:
		ctrl.Orbit(0, -keyOrbitStep)
	case common.KeyE, common.KeyUp:
		ctrl.Orbit(0, keyOrbitStep)
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Quit signals the loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the loop to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	e.logger.Infof("engine started with %d frames in flight", e.renderer.FramesInFlight())
	err := e.loop(ctx)
	if werr := e.renderer.WaitIdle(); werr != nil {
		err = errors.Join(err, werr)
	}
	e.logger.Infof("engine stopped after %d frames", e.Frames())
	return err
}

// loop runs until a stop condition or a fatal frame error.
func (e *engine) loop(ctx context.Context) error {
	lastTick := e.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quitChannel:
			return nil
		default:
		}

		if e.window != nil {
			e.window.PollEvents()
			if !e.window.IsRunning() {
				return nil
			}
		}

		frameStart := e.now()
		dt := float32(frameStart.Sub(lastTick).Seconds())
		lastTick = frameStart

		e.mu.Lock()
		tick, paused, limit := e.tickCallback, e.orbitPaused, e.renderFrameLimit
		frame := e.frame
		e.mu.Unlock()

		if tick != nil {
			tick(dt)
		}
		if ctrl := e.camera.Controller(); ctrl != nil && !paused {
			ctrl.Advance(dt)
		}
		e.camera.Update()

		res, err := e.renderer.DrawFrame(frame, renderer.ViewFromCamera(e.camera))
		if err != nil {
			e.logger.Errorf("frame %d: %v", frame, err)
			return err
		}
		if res.Rebuilt {
			e.logger.Debugf("surface rebuilt at frame %d", frame)
		}

		if res.Submitted {
			e.mu.Lock()
			e.frame++
			frame = e.frame
			profiling := e.profilingEnabled
			e.mu.Unlock()

			if profiling {
				e.profiler.Tick(res.Stats)
			}
			if e.maxFrames > 0 && frame >= e.maxFrames {
				return nil
			}
		}

		// Frame rate limiting
		if limit > 0 {
			elapsed := e.now().Sub(frameStart)
			if remaining := limit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickCallback registers the function called each loop iteration.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
