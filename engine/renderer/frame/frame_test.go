package frame

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	legal := map[[2]State]bool{
		{Idle, Recording}:      true,
		{Recording, Submitted}: true,
		{Recording, Idle}:      true,
		{Submitted, Presented}: true,
		{Presented, Idle}:      true,
	}
	states := []State{Idle, Recording, Submitted, Presented}
	for _, from := range states {
		for _, to := range states {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, legal[[2]State{from, to}], from.CanTransition(to))
			})
		}
	}
	assert.Equal(t, "State(9)", State(9).String())
}

func TestSlotTransitionPanicsWhenIllegal(t *testing.T) {
	s := &Slot{Index: 2}
	assert.PanicsWithValue(t, "frame: slot 2: illegal transition Idle -> Submitted", func() {
		s.Transition(Submitted)
	})

	s.Transition(Recording)
	s.Transition(Submitted)
	s.Transition(Presented)
	s.Transition(Idle)
	assert.Equal(t, Idle, s.State())
}

func TestNewRing(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()

	r, err := NewRing(d, 3, 2, WithUniformSize(208), WithTraversalCapacity(8))
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, 3, r.Len())
	for i := 0; i < r.Len(); i++ {
		s := r.At(i)
		assert.Equal(t, i, s.Index)
		assert.Equal(t, Idle, s.State())
		assert.True(t, s.Fence.Signaled(), "fences start signaled")
		assert.Equal(t, uint64(208), s.Uniforms.Size())
		require.Len(t, s.Workers, 2)
		assert.NotSame(t, s.Workers[0].Traversal, s.Workers[1].Traversal)
		assert.Equal(t, 8, s.Workers[0].Traversal.Cap())
		assert.Len(t, s.Secondaries(nil), 2)
	}
	assert.NotSame(t, r.At(0).Workers[0].Traversal, r.At(1).Workers[0].Traversal)
	require.NoError(t, r.WaitIdle())
}

func TestRingSlotCycles(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()
	r, err := NewRing(d, 3, 1)
	require.NoError(t, err)
	defer r.Release()

	var got []int
	for f := uint64(0); f < 7; f++ {
		got = append(got, r.Slot(f).Index)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
	assert.Same(t, r.Slot(1), r.Slot(3<<40+1), "large frame numbers wrap")
}

func TestNewRingPanics(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()
	assert.Panics(t, func() { _, _ = NewRing(d, 0, 1) })
	assert.Panics(t, func() { _, _ = NewRing(d, 2, 0) })
}

func TestSlotResetRequiresIdleStreams(t *testing.T) {
	d := headless.NewDevice(headless.WithLatency(40 * time.Millisecond))
	defer d.Release()
	r, err := NewRing(d, 1, 1)
	require.NoError(t, err)
	defer r.Release()

	s := r.Slot(0)
	target := gpu.RenderTarget{Extent: common.Extent2D{Width: 4, Height: 4}}
	w := &s.Workers[0]
	require.NoError(t, w.Stream.Begin(target))
	w.Stream.SetViewport(gpu.FullViewport(target.Extent))
	require.NoError(t, w.Stream.End())
	w.Stats.Draws = 5

	require.NoError(t, s.Primary.Begin())
	s.Primary.BeginRenderPass(target)
	s.Primary.ExecuteSecondary(s.Secondaries(nil)...)
	s.Primary.EndRenderPass()
	require.NoError(t, s.Primary.End())
	require.NoError(t, s.Fence.Reset())
	require.NoError(t, d.Submit(gpu.SubmitInfo{Stream: s.Primary, Fence: s.Fence}))

	err = s.Reset()
	assert.ErrorIs(t, err, gpu.ErrStreamInFlight)

	require.NoError(t, s.Fence.Wait())
	require.NoError(t, s.Reset())
	assert.Zero(t, w.Stats.Draws)
}

func TestWorkerOutput(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()
	r, err := NewRing(d, 1, 1)
	require.NoError(t, err)
	defer r.Release()

	w := &r.Slot(0).Workers[0]
	out := w.Output()
	out.Stats.Draws = 3
	assert.Equal(t, 3, w.Stats.Draws)
	assert.Same(t, w.Traversal, out.Traversal)
}

func TestRestoreFenceAfterUnsubmittedReset(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()
	r, err := NewRing(d, 2, 1)
	require.NoError(t, err)
	defer r.Release()

	s := r.Slot(0)
	old := s.Fence
	require.NoError(t, s.Fence.Reset())
	err = r.WaitIdle()
	assert.ErrorContains(t, err, "slot 0")
	assert.NotContains(t, err.Error(), "slot 1")
	assert.EqualValues(t, 1, r.Slot(1).Fence.(*headless.Fence).Waits(), "later slots are still waited on")

	require.NoError(t, s.RestoreFence(d))
	assert.NotSame(t, old, s.Fence)
	assert.True(t, s.Fence.Signaled())
	require.NoError(t, r.WaitIdle())

	restored := s.Fence
	require.NoError(t, s.RestoreFence(d))
	assert.Same(t, restored, s.Fence, "a signaled fence is kept")
}
