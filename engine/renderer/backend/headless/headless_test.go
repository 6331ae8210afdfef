package headless

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extent = common.Extent2D{Width: 320, Height: 200}

type frame struct {
	primary   gpu.PrimaryStream
	secondary gpu.SecondaryStream
	fence     gpu.Fence
	acquired  gpu.Semaphore
	finished  gpu.Semaphore
	uniform   gpu.UniformBuffer
}

func newFrame(t *testing.T, d *Device) *frame {
	t.Helper()
	f := &frame{}
	var err error
	f.primary, err = d.NewPrimaryStream("primary")
	require.NoError(t, err)
	f.secondary, err = d.NewSecondaryStream("secondary")
	require.NoError(t, err)
	f.fence, err = d.NewFence(true)
	require.NoError(t, err)
	f.acquired, err = d.NewSemaphore()
	require.NoError(t, err)
	f.finished, err = d.NewSemaphore()
	require.NoError(t, err)
	f.uniform, err = d.NewUniformBuffer("uniform", 64)
	require.NoError(t, err)
	return f
}

func record(t *testing.T, f *frame, image gpu.ImageIndex, draws int) {
	t.Helper()
	target := gpu.RenderTarget{Image: image, Extent: extent}
	require.NoError(t, f.secondary.Begin(target))
	f.secondary.SetViewport(gpu.FullViewport(extent))
	f.secondary.BindPipeline(1)
	f.secondary.BindFrameUniforms(f.uniform)
	f.secondary.BindIndexBuffer(2, gpu.IndexFormatUint32)
	for i := 0; i < draws; i++ {
		f.secondary.DrawIndexed(36, 1)
	}
	require.NoError(t, f.secondary.End())

	require.NoError(t, f.primary.Begin())
	f.primary.BeginRenderPass(target)
	f.primary.ExecuteSecondary(f.secondary)
	f.primary.EndRenderPass()
	require.NoError(t, f.primary.End())
}

func TestFrameRoundTrip(t *testing.T) {
	d := NewDevice(WithHistory(-1))
	defer d.Release()
	s := d.NewSurface(extent, 3)
	f := newFrame(t, d)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.fence.Wait())
		img, err := s.Acquire(f.acquired)
		require.NoError(t, err)
		require.NoError(t, f.primary.Reset())
		require.NoError(t, f.secondary.Reset())
		require.NoError(t, f.uniform.Write([]byte{byte(i)}))
		record(t, f, img, i+1)
		require.NoError(t, f.fence.Reset())
		require.NoError(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Wait: f.acquired, Signal: f.finished, Fence: f.fence}))
		require.NoError(t, s.Present(img, f.finished))
	}
	require.NoError(t, d.WaitIdle())

	subs := d.Submissions()
	require.Len(t, subs, 5)
	for i, sub := range subs {
		assert.Equal(t, uint64(i), sub.Seq)
		assert.Equal(t, i+1, sub.Draws)
		require.Len(t, sub.Uniforms, 1)
		assert.Equal(t, byte(i), sub.Uniforms[0][0])
	}
	assert.Equal(t, []gpu.ImageIndex{0, 1, 2, 0, 1}, s.Presented())
	assert.True(t, f.fence.Signaled())
}

func TestInFlightMisuseIsReported(t *testing.T) {
	d := NewDevice(WithLatency(50 * time.Millisecond))
	defer d.Release()
	f := newFrame(t, d)

	record(t, f, 0, 1)
	require.NoError(t, f.fence.Reset())
	require.NoError(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Fence: f.fence}))

	assert.ErrorIs(t, f.primary.Reset(), gpu.ErrStreamInFlight)
	assert.ErrorIs(t, f.secondary.Reset(), gpu.ErrStreamInFlight)
	assert.ErrorIs(t, f.secondary.Begin(gpu.RenderTarget{Extent: extent}), gpu.ErrStreamInFlight)
	assert.ErrorIs(t, f.uniform.Write([]byte{1}), gpu.ErrBufferInFlight)
	assert.ErrorIs(t, f.fence.Reset(), errFencePending)

	require.NoError(t, f.fence.Wait())
	assert.NoError(t, f.primary.Reset())
	assert.NoError(t, f.secondary.Reset())
	assert.NoError(t, f.uniform.Write([]byte{1}))
}

func TestSubmitValidation(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	f := newFrame(t, d)

	assert.ErrorIs(t, d.Submit(gpu.SubmitInfo{Stream: f.primary}), errStreamNotEnded)

	record(t, f, 0, 1)
	assert.ErrorIs(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Fence: f.fence}), errFenceSignaled)

	boom := errors.New("device lost")
	d.FailNextSubmit(boom)
	require.NoError(t, f.fence.Reset())
	assert.ErrorIs(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Fence: f.fence}), boom)
	assert.NoError(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Fence: f.fence}))
	assert.NoError(t, f.fence.Wait())
	assert.Equal(t, uint64(1), d.SubmitCount())
}

func TestSemaphoreOrdersTimeline(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	f := newFrame(t, d)

	record(t, f, 0, 1)
	require.NoError(t, f.fence.Reset())
	require.NoError(t, d.Submit(gpu.SubmitInfo{Stream: f.primary, Wait: f.acquired, Fence: f.fence}))

	// The submission waits on a semaphore nobody has signaled yet.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, f.fence.Signaled())

	s := d.NewSurface(extent, 2)
	_, err := s.Acquire(f.acquired)
	require.NoError(t, err)
	require.NoError(t, f.fence.Wait())
	assert.True(t, f.fence.Signaled())
}

func TestSurfaceStaleInjection(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	s := d.NewSurface(extent, 2)
	sem, err := d.NewSemaphore()
	require.NoError(t, err)

	s.InjectStaleAcquire(2)
	_, err = s.Acquire(sem)
	assert.ErrorIs(t, err, gpu.ErrSurfaceStale)
	_, err = s.Acquire(sem)
	assert.ErrorIs(t, err, gpu.ErrSurfaceStale)
	assert.False(t, sem.(*Semaphore).Pending(), "a stale acquire signals nothing")

	img, err := s.Acquire(sem)
	require.NoError(t, err)
	_, err = s.Acquire(sem)
	assert.ErrorIs(t, err, errSemaphoreFull)

	s.InjectStalePresent(1)
	assert.ErrorIs(t, s.Present(img, sem), gpu.ErrSurfaceStale)
	require.NoError(t, d.WaitIdle())
	assert.False(t, sem.(*Semaphore).Pending(), "a stale present still consumes its wait")
	assert.Empty(t, s.Presented())

	require.NoError(t, s.Rebuild(0, 0))
	_, err = s.Acquire(sem)
	assert.ErrorIs(t, err, gpu.ErrSurfaceStale, "an empty surface cannot be acquired")
	assert.Equal(t, 1, s.Rebuilds())
}

func TestAllocator(t *testing.T) {
	d := NewDevice()
	defer d.Release()

	b, err := d.CreateBuffer("vb", gpu.BufferUsageVertex, make([]byte, 96))
	require.NoError(t, err)
	assert.Equal(t, 96, d.BufferSize(b))
	_, err = d.CreateBuffer("empty", gpu.BufferUsageIndex, nil)
	assert.Error(t, err)

	_, err = d.CreateTexture("bad", 2, 2, make([]byte, 4))
	assert.Error(t, err)
	tex, err := d.CreateTexture("ok", 2, 2, make([]byte, 16))
	require.NoError(t, err)
	assert.NotZero(t, tex)

	p, err := d.CreatePipeline("opaque", gpu.PipelineOpaque)
	require.NoError(t, err)
	assert.NotZero(t, p)
	_, err = d.CreatePipeline("bogus", gpu.PipelineKind(99))
	assert.Error(t, err)
}

func TestWaitOnUnsubmittedFence(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	fence, err := d.NewFence(true)
	require.NoError(t, err)

	require.NoError(t, fence.Wait())
	require.NoError(t, fence.Reset())
	assert.ErrorIs(t, fence.Wait(), errFenceIdle, "waiting would never return")
	assert.EqualValues(t, 2, fence.(*Fence).Waits())
}

func TestInvalidateHoldsUntilRebuild(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	s := d.NewSurface(extent, 2)
	sem, err := d.NewSemaphore()
	require.NoError(t, err)

	s.Invalidate()
	for i := 0; i < 3; i++ {
		_, err = s.Acquire(sem)
		assert.ErrorIs(t, err, gpu.ErrSurfaceStale)
	}
	require.NoError(t, s.Rebuild(640, 480))
	_, err = s.Acquire(sem)
	require.NoError(t, err)
	assert.Equal(t, common.Extent2D{Width: 640, Height: 480}, s.Extent())
}

func TestShadowMapTargets(t *testing.T) {
	d := NewDevice()
	defer d.Release()
	_, err := d.CreateShadowMap("empty", 0)
	assert.Error(t, err)
	shadowMap, err := d.CreateShadowMap("shadow", 512)
	require.NoError(t, err)
	_, err = d.CreatePipeline("shadow", gpu.PipelineShadow)
	require.NoError(t, err)

	submit := func(target gpu.RenderTarget) error {
		p, err := d.NewPrimaryStream("primary")
		require.NoError(t, err)
		require.NoError(t, p.Begin())
		p.BeginRenderPass(target)
		p.EndRenderPass()
		require.NoError(t, p.End())
		return d.Submit(gpu.SubmitInfo{Stream: p})
	}

	square := common.Extent2D{Width: 512, Height: 512}
	assert.NoError(t, submit(gpu.RenderTarget{Extent: square, ShadowMap: shadowMap}))
	assert.ErrorContains(t, submit(gpu.RenderTarget{Extent: extent, ShadowMap: shadowMap}), "does not exist at that size")
	assert.ErrorContains(t, submit(gpu.RenderTarget{Extent: square, ShadowMap: shadowMap + 1}), "does not exist")
	require.NoError(t, d.WaitIdle())
	assert.EqualValues(t, 1, d.SubmitCount())
}
