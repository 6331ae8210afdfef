package renderer

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extent = common.Extent2D{Width: 640, Height: 360}

type harness struct {
	device  *headless.Device
	surface *headless.Surface
	scene   *scene.Scene
	opaque  pass.Pass
	skybox  pass.Pass
}

func newHarness(t *testing.T, opts ...headless.DeviceBuilderOption) *harness {
	t.Helper()
	d := headless.NewDevice(append([]headless.DeviceBuilderOption{headless.WithHistory(-1)}, opts...)...)
	t.Cleanup(d.Release)

	reg, err := scene.GenerateGrid(d, scene.GridConfig{Counts: [3]int{8, 2, 8}, Spacing: 3, CubeSize: 1, Palette: 3})
	require.NoError(t, err)
	sc, err := scene.Build(reg)
	require.NoError(t, err)

	opaquePipeline, err := d.CreatePipeline("opaque", gpu.PipelineOpaque)
	require.NoError(t, err)
	skyboxPipeline, err := d.CreatePipeline("skybox", gpu.PipelineSkybox)
	require.NoError(t, err)
	cube, err := scene.Upload(d, "sky", scene.Cube(2))
	require.NoError(t, err)
	skyTex, err := d.CreateTexture("sky", 1, 1, []byte{0, 0, 255, 255})
	require.NoError(t, err)

	return &harness{
		device:  d,
		surface: d.NewSurface(extent, 3),
		scene:   sc,
		opaque:  pass.NewOpaquePass(opaquePipeline),
		skybox: pass.NewSkyboxPass(skyboxPipeline, pass.SkyboxMesh{
			VertexBuffer: cube.VertexBuffer,
			IndexBuffer:  cube.IndexBuffer,
			IndexCount:   cube.IndexCount,
			IndexFormat:  gpu.IndexFormatUint32,
		}, skyTex),
	}
}

func (h *harness) renderer(t *testing.T, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	opts = append([]RendererBuilderOption{WithPasses(h.opaque, h.skybox)}, opts...)
	r, err := NewRenderer(h.device, h.surface, h.scene, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// orbitView circles the grid so consecutive frames see different subsets of it.
func orbitView(frame uint64) FrameView {
	angle := float32(frame) * 0.4
	s, c := math32.Sincos(angle)
	eye := mgl32.Vec3{30 * s, 8, 30 * c}
	return FrameView{
		View:       mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(50), extent.Aspect(), 0.1, 200),
		Position:   eye,
	}
}

func drawFrames(t *testing.T, r Renderer, n int) []FrameResult {
	t.Helper()
	var out []FrameResult
	for f := uint64(0); f < uint64(n); f++ {
		res, err := r.DrawFrame(f, orbitView(f))
		require.NoError(t, err)
		require.True(t, res.Submitted)
		out = append(out, res)
	}
	return out
}

// delayedPass sleeps before recording to force a chosen completion order.
type delayedPass struct {
	pass.Pass
	delay time.Duration
}

func (p delayedPass) Record(in *pass.Inputs, out pass.Output) error {
	time.Sleep(p.delay)
	return p.Pass.Record(in, out)
}

type failingPass struct {
	name  string
	err   error
	panic bool
	calls atomic.Int32
}

func (p *failingPass) Name() string { return p.name }

func (p *failingPass) Record(in *pass.Inputs, out pass.Output) error {
	p.calls.Add(1)
	if p.panic {
		panic("broken pass")
	}
	return p.err
}

func TestDrawFrameIsDeterministicUnderReorderedCompletion(t *testing.T) {
	run := func(opaqueDelay, skyboxDelay time.Duration) []headless.Submission {
		h := newHarness(t)
		r := h.renderer(t, WithPasses(
			delayedPass{Pass: h.opaque, delay: opaqueDelay},
			delayedPass{Pass: h.skybox, delay: skyboxDelay},
		))
		drawFrames(t, r, 6)
		require.NoError(t, r.WaitIdle())
		return h.device.Submissions()
	}

	first := run(15*time.Millisecond, 0)
	second := run(0, 15*time.Millisecond)
	require.Len(t, first, 6)
	require.Len(t, second, 6)
	for i := range first {
		assert.Equal(t, first[i].Commands, second[i].Commands, "frame %d", i)
		assert.Equal(t, first[i].Draws, second[i].Draws, "frame %d", i)
	}
}

func TestDrawFrameRespectsFramesInFlight(t *testing.T) {
	h := newHarness(t, headless.WithLatency(10*time.Millisecond))
	r := h.renderer(t, WithFramesInFlight(2))
	assert.Equal(t, 2, r.FramesInFlight())

	// Resetting a stream before its fence completes fails in the headless backend, so a clean run
	// means every slot was waited on before reuse.
	results := drawFrames(t, r, 8)
	require.NoError(t, r.WaitIdle())

	assert.Equal(t, uint64(8), h.device.SubmitCount())
	assert.Equal(t, []gpu.ImageIndex{0, 1, 2, 0, 1, 2, 0, 1}, h.surface.Presented())
	for _, res := range results {
		assert.Positive(t, res.Stats.Draws)
		assert.Equal(t, res.Stats.Visit.ObjectsEmitted+1, res.Stats.Draws, "one skybox draw per frame")
	}
}

func TestDrawFrameWritesFrameUniforms(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t, WithFramesInFlight(3))
	drawFrames(t, r, 4)
	require.NoError(t, r.WaitIdle())

	for i, sub := range h.device.Submissions() {
		require.Len(t, sub.Uniforms, 1, "only the opaque pass binds the frame uniforms")
		view := orbitView(uint64(i))
		want := make([]byte, 64)
		common.PutMat4(want, view.View)
		assert.Equal(t, want, sub.Uniforms[0][:64], "frame %d", i)
	}
}

func TestRecordingErrorPreventsSubmission(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")
	bad := &failingPass{name: "broken", err: boom}
	r := h.renderer(t, WithPasses(h.opaque, bad))

	res, err := r.DrawFrame(0, orbitView(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecording)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pass broken")
	assert.False(t, res.Submitted)
	assert.Equal(t, uint64(0), h.device.SubmitCount())
	assert.Equal(t, int32(1), bad.calls.Load())
}

func TestRecordingErrorsJoinInPassOrder(t *testing.T) {
	h := newHarness(t)
	first := &failingPass{name: "first", err: errors.New("first failed")}
	second := &failingPass{name: "second", err: errors.New("second failed")}
	r := h.renderer(t, WithPasses(delayedPass{Pass: first, delay: 10 * time.Millisecond}, second))

	_, err := r.DrawFrame(0, orbitView(0))
	require.Error(t, err)
	msg := err.Error()
	assert.Less(t, strings.Index(msg, "first failed"), strings.Index(msg, "second failed"))
}

func TestPassPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t, WithPasses(h.opaque, &failingPass{name: "panicky", panic: true}))

	_, err := r.DrawFrame(0, orbitView(0))
	require.ErrorIs(t, err, ErrRecording)
	assert.Contains(t, err.Error(), "panic: broken pass")
	assert.Equal(t, uint64(0), h.device.SubmitCount())
}

// openPass begins its stream and panics before ending it.
type openPass struct{}

func (openPass) Name() string { return "open" }

func (openPass) Record(in *pass.Inputs, out pass.Output) error {
	if err := out.Stream.Begin(in.Target); err != nil {
		return err
	}
	panic("failed mid recording")
}

func TestFailedPassEndsItsStream(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t, WithFramesInFlight(1), WithPasses(h.opaque, openPass{}))

	_, err := r.DrawFrame(0, orbitView(0))
	require.ErrorIs(t, err, ErrRecording)
	assert.Contains(t, err.Error(), "failed mid recording")

	slot := r.(*renderer).ring.At(0)
	assert.False(t, slot.Workers[1].Stream.(*command.Recorder).Recording())
	assert.NoError(t, slot.Reset(), "the slot resets without a concurrent recording error")
}

func TestStaleAcquireRebuildsWithoutSubmitting(t *testing.T) {
	h := newHarness(t)
	var hooked []common.Extent2D
	resized := common.Extent2D{Width: 800, Height: 600}
	r := h.renderer(t,
		WithSurfaceSize(func() (uint32, uint32) { return resized.Width, resized.Height }),
		WithRebuildHook(func(e common.Extent2D) { hooked = append(hooked, e) }),
	)
	h.surface.InjectStaleAcquire(2)

	var frameNum uint64
	attempts := 0
	for frameNum < 3 {
		attempts++
		res, err := r.DrawFrame(frameNum, orbitView(frameNum))
		require.NoError(t, err)
		if !res.Submitted {
			assert.True(t, res.Rebuilt)
			continue
		}
		frameNum++
	}

	assert.Equal(t, 5, attempts)
	assert.Equal(t, 2, h.surface.Rebuilds())
	assert.Equal(t, []common.Extent2D{resized, resized}, hooked)
	assert.Equal(t, resized, h.surface.Extent())
	require.NoError(t, r.WaitIdle())
	assert.Equal(t, uint64(3), h.device.SubmitCount())
}

func TestStalePresentStillCountsAsSubmitted(t *testing.T) {
	h := newHarness(t)
	rebuilt := 0
	r := h.renderer(t, WithRebuildHook(func(common.Extent2D) { rebuilt++ }))
	h.surface.InjectStalePresent(1)

	res, err := r.DrawFrame(0, orbitView(0))
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, 1, rebuilt)

	drawFrames(t, r, 3)
	require.NoError(t, r.WaitIdle())
	assert.Equal(t, uint64(4), h.device.SubmitCount())
}

func TestTooManyRebuilds(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t, WithMaxConsecutiveRebuilds(2))
	h.surface.InjectStaleAcquire(10)

	for i := 0; i < 2; i++ {
		res, err := r.DrawFrame(0, orbitView(0))
		require.NoError(t, err)
		require.True(t, res.Rebuilt)
	}
	_, err := r.DrawFrame(0, orbitView(0))
	assert.ErrorIs(t, err, ErrTooManyRebuilds)
}

func TestSubmitFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t)
	lost := errors.New("device lost")
	h.device.FailNextSubmit(lost)

	_, err := r.DrawFrame(0, orbitView(0))
	assert.ErrorIs(t, err, ErrSubmit)
	assert.ErrorIs(t, err, lost)
}

func TestCloseAfterFailedSubmit(t *testing.T) {
	h := newHarness(t, headless.WithLatency(20*time.Millisecond))
	r := h.renderer(t, WithFramesInFlight(3))
	drawFrames(t, r, 2)
	h.device.FailNextSubmit(errors.New("device lost"))

	_, err := r.DrawFrame(2, orbitView(2))
	require.ErrorIs(t, err, ErrSubmit)

	require.NoError(t, r.WaitIdle(), "the unsubmitted slot does not block the drain")
	require.NoError(t, r.Close())
	assert.Equal(t, uint64(2), h.device.SubmitCount())
	assert.Len(t, h.surface.Presented(), 2, "both submitted frames completed before Close returned")
}

func TestDrawFrameAfterClose(t *testing.T) {
	h := newHarness(t)
	r := h.renderer(t)
	drawFrames(t, r, 2)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.DrawFrame(2, orbitView(2))
	assert.ErrorIs(t, err, gpu.ErrReleased)
}

func TestNewRendererPanics(t *testing.T) {
	h := newHarness(t)
	assert.PanicsWithValue(t, "renderer: at least one pass is required", func() {
		_, _ = NewRenderer(h.device, h.surface, h.scene)
	})
	assert.Panics(t, func() {
		_, _ = NewRenderer(h.device, h.surface, h.scene, WithPasses(h.opaque), WithFramesInFlight(0))
	})
}

func TestPassTargetsSplitRenderPasses(t *testing.T) {
	h := newHarness(t)
	pipeline, err := h.device.CreatePipeline("shadow", gpu.PipelineShadow)
	require.NoError(t, err)
	shadowMap, err := h.device.CreateShadowMap("shadow", 256)
	require.NoError(t, err)
	shadow := pass.NewShadowPass(pipeline, shadowMap, 256, pass.FitDirectionalLight(h.scene.Bounds, mgl32.Vec3{0, 1, 0}))
	shadowTarget := shadow.Target()

	r := h.renderer(t, WithPasses(shadow, h.opaque, h.skybox))
	res := drawFrames(t, r, 1)[0]
	require.NoError(t, r.WaitIdle())

	sub := h.device.Submissions()
	require.Len(t, sub, 1)
	require.Len(t, sub[0].Targets, 2, "consecutive passes on the surface share one render pass")
	assert.Equal(t, shadowTarget, sub[0].Targets[0])
	assert.Zero(t, sub[0].Targets[1].ShadowMap)
	assert.Equal(t, extent, sub[0].Targets[1].Extent)

	require.Len(t, res.Stats.Passes, 3)
	assert.Equal(t, []string{"shadow", "opaque", "skybox"}, []string{
		res.Stats.Passes[0].Name, res.Stats.Passes[1].Name, res.Stats.Passes[2].Name,
	})
	assert.Equal(t, h.scene.Registry.Len(), res.Stats.Passes[0].Draws)
	assert.Equal(t, res.Stats.Visit.ObjectsEmitted+1, res.Stats.Draws)

	h = newHarness(t)
	pipeline, err = h.device.CreatePipeline("shadow", gpu.PipelineShadow)
	require.NoError(t, err)
	shadowMap, err = h.device.CreateShadowMap("shadow", 256)
	require.NoError(t, err)
	shadow = pass.NewShadowPass(pipeline, shadowMap, 256, mgl32.Ortho(-20, 20, -20, 20, 0.1, 100))
	r = h.renderer(t, WithPasses(h.opaque, shadow, h.skybox))
	drawFrames(t, r, 1)
	require.NoError(t, r.WaitIdle())
	assert.Len(t, h.device.Submissions()[0].Targets, 3, "a pass between two surface passes splits them")
}
