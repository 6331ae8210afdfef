package command

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUniform struct{ size uint64 }

func (u *fakeUniform) Write([]byte) error { return nil }
func (u *fakeUniform) Size() uint64 { return u.size }
func (u *fakeUniform) Release() {}

var target = gpu.RenderTarget{Image: 1, Extent: common.Extent2D{Width: 640, Height: 480}}

func recordDraws(t *testing.T, r *Recorder, u gpu.UniformBuffer, params ...byte) {
	t.Helper()
	require.NoError(t, r.Begin(target))
	r.SetViewport(gpu.FullViewport(target.Extent))
	r.BindPipeline(3)
	r.BindFrameUniforms(u)
	for _, p := range params {
		r.BindVertexBuffer(gpu.BufferHandle(p))
		r.BindIndexBuffer(gpu.BufferHandle(p)+100, gpu.IndexFormatUint32)
		r.PushParams([]byte{p, p, p, p})
		r.DrawIndexed(36, 1)
	}
	require.NoError(t, r.End())
}

type opLog struct{ ops []Op }

func (o *opLog) SetViewport(gpu.Viewport) { o.ops = append(o.ops, OpSetViewport) }
func (o *opLog) BindPipeline(gpu.PipelineHandle) { o.ops = append(o.ops, OpBindPipeline) }
func (o *opLog) BindFrameUniforms(gpu.UniformBuffer) { o.ops = append(o.ops, OpBindFrameUniforms) }
func (o *opLog) BindTexture(uint32, gpu.TextureHandle) { o.ops = append(o.ops, OpBindTexture) }
func (o *opLog) BindVertexBuffer(gpu.BufferHandle) { o.ops = append(o.ops, OpBindVertexBuffer) }
func (o *opLog) BindIndexBuffer(gpu.BufferHandle, gpu.IndexFormat) { o.ops = append(o.ops, OpBindIndexBuffer) }
func (o *opLog) PushParams([]byte) { o.ops = append(o.ops, OpPushParams) }
func (o *opLog) DrawIndexed(uint32, uint32) { o.ops = append(o.ops, OpDrawIndexed) }

func TestRecorderReplayOrder(t *testing.T) {
	r := NewRecorder("test")
	recordDraws(t, r, &fakeUniform{size: 256}, 1, 2)

	var log opLog
	r.List().Replay(&log)
	assert.Equal(t, []Op{
		OpSetViewport, OpBindPipeline, OpBindFrameUniforms,
		OpBindVertexBuffer, OpBindIndexBuffer, OpPushParams, OpDrawIndexed,
		OpBindVertexBuffer, OpBindIndexBuffer, OpPushParams, OpDrawIndexed,
	}, log.ops)
	assert.Equal(t, 2, r.List().Draws())
}

func TestEncodeIsStable(t *testing.T) {
	u := &fakeUniform{size: 256}
	a, b := NewRecorder("a"), NewRecorder("b")
	recordDraws(t, a, u, 1, 2, 3)
	recordDraws(t, b, u, 1, 2, 3)
	assert.Equal(t, a.List().Encode(nil), b.List().Encode(nil))

	// Re-recording the same commands after a reset yields identical bytes.
	first := a.List().Encode(nil)
	require.NoError(t, a.Reset())
	recordDraws(t, a, u, 1, 2, 3)
	assert.Equal(t, first, a.List().Encode(nil))

	recordDraws(t, b, u, 1, 3, 2)
	assert.NotEqual(t, a.List().Encode(nil), b.List().Encode(nil))
}

func TestPushParamsCopiesData(t *testing.T) {
	r := NewRecorder("copy")
	require.NoError(t, r.Begin(target))
	buf := []byte{1, 2, 3}
	r.PushParams(buf)
	buf[0] = 9
	require.NoError(t, r.End())

	cmd := r.List().Commands()[0]
	assert.Equal(t, []byte{1, 2, 3}, r.List().Params(cmd))
}

func TestRecorderErrors(t *testing.T) {
	tests := []struct {
		name   string
		record func(r *Recorder)
		want   error
	}{
		{"draw without pipeline", func(r *Recorder) {
			r.SetViewport(gpu.FullViewport(target.Extent))
			r.BindIndexBuffer(1, gpu.IndexFormatUint16)
			r.DrawIndexed(3, 1)
		}, errNoPipeline},
		{"draw without index buffer", func(r *Recorder) {
			r.SetViewport(gpu.FullViewport(target.Extent))
			r.BindPipeline(1)
			r.DrawIndexed(3, 1)
		}, errNoIndexBuffer},
		{"draw without viewport", func(r *Recorder) {
			r.BindPipeline(1)
			r.BindIndexBuffer(1, gpu.IndexFormatUint16)
			r.DrawIndexed(3, 1)
		}, errNoViewport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(tt.name)
			require.NoError(t, r.Begin(target))
			tt.record(r)
			assert.ErrorIs(t, r.End(), tt.want)
			assert.Equal(t, 0, r.List().Draws())
		})
	}
}

func TestRecorderLifecycle(t *testing.T) {
	r := NewRecorder("life")

	r.BindPipeline(1)
	assert.ErrorIs(t, r.End(), gpu.ErrNotRecording)

	require.NoError(t, r.Begin(target))
	assert.ErrorIs(t, r.Begin(target), gpu.ErrConcurrentRecording)
	assert.ErrorIs(t, r.Reset(), gpu.ErrConcurrentRecording)
	require.NoError(t, r.End())

	r.MarkInFlight()
	assert.ErrorIs(t, r.Reset(), gpu.ErrStreamInFlight)
	assert.ErrorIs(t, r.Begin(target), gpu.ErrStreamInFlight)
	r.MarkComplete()
	assert.NoError(t, r.Reset())
	assert.Equal(t, 0, r.List().Len())

	r.Release()
	assert.ErrorIs(t, r.Begin(target), gpu.ErrReleased)
}
