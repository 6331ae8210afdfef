package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device   *headless.Device
	surface  *headless.Surface
	renderer renderer.Renderer
	camera   camera.Camera
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := headless.NewDevice()
	t.Cleanup(d.Release)

	reg, err := scene.GenerateGrid(d, scene.GridConfig{Counts: [3]int{4, 2, 4}, Spacing: 3, CubeSize: 1, Palette: 2})
	require.NoError(t, err)
	sc, err := scene.Build(reg)
	require.NoError(t, err)
	pipeline, err := d.CreatePipeline("opaque", gpu.PipelineOpaque)
	require.NoError(t, err)

	surface := d.NewSurface(common.Extent2D{Width: 320, Height: 240}, 3)
	r, err := renderer.NewRenderer(d, surface, sc, renderer.WithPasses(pass.NewOpaquePass(pipeline)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	cam := camera.NewCamera(
		camera.WithAspect(surface.Extent().Aspect()),
		camera.WithController(camera.NewOrbitController(camera.WithRadius(20), camera.WithAzimuth(1), camera.WithAutoOrbit(0.5))),
	)
	return &fixture{device: d, surface: surface, renderer: r, camera: cam}
}

func quietProfiler() *profiler.Profiler {
	return profiler.NewProfiler(profiler.WithInterval(time.Hour), profiler.WithMemoryStats(false))
}

func TestRunStopsAtMaxFrames(t *testing.T) {
	f := newFixture(t)
	p := quietProfiler()
	e := NewEngine(f.renderer, f.camera, WithMaxFrames(12), WithProfiling(true), WithProfiler(p))

	require.NoError(t, e.Run(context.Background()))
	assert.EqualValues(t, 12, e.Frames())
	assert.EqualValues(t, 12, f.device.SubmitCount())
	assert.Equal(t, 12, p.Total().Frames)
	assert.Greater(t, p.Total().Draws, 0.0)
}

func TestProfilerOnlyFedWhenEnabled(t *testing.T) {
	f := newFixture(t)
	p := quietProfiler()
	e := NewEngine(f.renderer, f.camera, WithMaxFrames(5), WithProfiler(p))

	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, p.Total().Frames)
}

func TestQuitBeforeRun(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.renderer, f.camera)
	e.Quit()
	e.Quit()

	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, e.Frames())
	assert.Zero(t, f.device.SubmitCount())
}

func TestContextCancelStopsAfterCurrentFrame(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	e := NewEngine(f.renderer, f.camera, WithTickCallback(func(dt float32) {
		assert.GreaterOrEqual(t, dt, float32(0))
		ticks++
		if ticks == 5 {
			cancel()
		}
	}))

	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 5, ticks)
	assert.EqualValues(t, 5, e.Frames())
}

func TestAutoOrbitAdvancesCamera(t *testing.T) {
	f := newFixture(t)
	start := f.camera.Controller().Azimuth()

	var clock time.Time
	e := NewEngine(f.renderer, f.camera, WithMaxFrames(4), WithClock(func() time.Time {
		clock = clock.Add(100 * time.Millisecond)
		return clock
	}))

	require.NoError(t, e.Run(context.Background()))
	assert.Greater(t, f.camera.Controller().Azimuth(), start)
}

func TestFatalErrorStopsLoop(t *testing.T) {
	f := newFixture(t)
	f.device.FailNextSubmit(errors.New("device lost"))
	e := NewEngine(f.renderer, f.camera, WithMaxFrames(10))

	err := e.Run(context.Background())
	require.ErrorIs(t, err, renderer.ErrSubmit)
	assert.ErrorContains(t, err, "device lost")
	assert.Zero(t, e.Frames())
}

func TestSetRenderFrameLimit(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.renderer, f.camera, WithRenderFrameLimit(50)).(*engine)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)

	e.SetRenderFrameLimit(0)
	assert.Zero(t, e.renderFrameLimit)
	e.SetRenderFrameLimit(-5)
	assert.Zero(t, e.renderFrameLimit)
}

// fakeWindow replays scripted input, one step per poll.
type fakeWindow struct {
	polls   int
	running bool
	script  map[int]func(w *fakeWindow)

	resize func(width, height int)
	scroll func(delta float32)
	key    func(keyCode uint32)
	drag   func(dx, dy float32)
}

func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.resize = cb }
func (w *fakeWindow) SetScrollCallback(cb func(delta float32)) { w.scroll = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(keyCode uint32)) { w.key = cb }
func (w *fakeWindow) SetDragCallback(cb func(dx, dy float32)) { w.drag = cb }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) FramebufferSize() (uint32, uint32) { return 320, 240 }
func (w *fakeWindow) IsRunning() bool { return w.running }
func (w *fakeWindow) RequestClose() { w.running = false }
func (w *fakeWindow) Close() error { return nil }
func (w *fakeWindow) Width() int { return 320 }
func (w *fakeWindow) Height() int { return 240 }

func (w *fakeWindow) PollEvents() {
	w.polls++
	if step, ok := w.script[w.polls]; ok {
		step(w)
	}
}

func TestWindowResizeRebuildsSurface(t *testing.T) {
	f := newFixture(t)
	w := &fakeWindow{running: true, script: map[int]func(*fakeWindow){
		3: func(w *fakeWindow) { w.resize(320, 240) },
		6: func(w *fakeWindow) { w.RequestClose() },
	}}
	e := NewEngine(f.renderer, f.camera, WithWindow(w))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 6, w.polls)
	assert.Equal(t, 1, f.surface.Rebuilds())
	// The third iteration only rebuilt the surface.
	assert.EqualValues(t, 4, e.Frames())
}

func TestWindowInputDrivesController(t *testing.T) {
	f := newFixture(t)
	ctrl := f.camera.Controller()
	w := &fakeWindow{running: true}
	p := quietProfiler()
	e := NewEngine(f.renderer, f.camera, WithWindow(w), WithProfiler(p))

	radius := ctrl.Radius()
	w.scroll(1)
	assert.Less(t, ctrl.Radius(), radius)

	azimuth := ctrl.Azimuth()
	w.key(common.KeyD)
	assert.InDelta(t, azimuth+keyOrbitStep, ctrl.Azimuth(), 1e-5)
	w.drag(20, 0)
	assert.InDelta(t, azimuth+keyOrbitStep-20*dragOrbitScale, ctrl.Azimuth(), 1e-5)

	w.key(common.KeySpace)
	w.key(common.KeyP)
	w.script = map[int]func(*fakeWindow){3: func(w *fakeWindow) { w.key(common.KeyEsc) }}
	azimuth = ctrl.Azimuth()

	require.NoError(t, e.Run(context.Background()))
	assert.EqualValues(t, 3, e.Frames())
	assert.Equal(t, 3, p.Total().Frames, "P enabled the profiler")
	assert.Equal(t, azimuth, ctrl.Azimuth(), "Space paused the automatic orbit")
}
