package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func frameStats(visible int) renderer.FrameStats {
	return renderer.FrameStats{
		Visit:  octree.VisitStats{NodesVisited: 10, NodesCulled: 4, ObjectsEmitted: visible},
		Draws:  visible + 1,
		Record: 2 * time.Millisecond,
	}
}

func TestTickReportsPerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithMemoryStats(false))

	for i := 0; i < 3; i++ {
		clock.t = clock.t.Add(200 * time.Millisecond)
		_, logged := p.Tick(frameStats(10 * (i + 1)))
		assert.False(t, logged)
	}
	clock.t = clock.t.Add(400 * time.Millisecond)
	r, logged := p.Tick(frameStats(40))
	require.True(t, logged)

	assert.Equal(t, 4, r.Frames)
	assert.InDelta(t, 4.0, r.FPS, 1e-9)
	assert.InDelta(t, 25.0, r.Visible, 1e-9)
	assert.InDelta(t, 26.0, r.Draws, 1e-9)
	assert.InDelta(t, 4.0, r.Culled, 1e-9)
	assert.Equal(t, 2*time.Millisecond, r.RecordTime)
	assert.Equal(t, 250*time.Millisecond, r.FrameTime)

	clock.t = clock.t.Add(100 * time.Millisecond)
	_, logged = p.Tick(frameStats(0))
	assert.False(t, logged, "the interval restarts after a report")
}

func TestTotal(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Hour))
	assert.Zero(t, p.Total().Frames)

	for i := 0; i < 5; i++ {
		clock.t = clock.t.Add(10 * time.Millisecond)
		p.Tick(frameStats(i * 2))
	}
	total := p.Total()
	assert.Equal(t, 5, total.Frames)
	assert.InDelta(t, 4.0, total.Visible, 1e-9)
	assert.InDelta(t, 100.0, total.FPS, 1e-6)
	assert.Equal(t, 10*time.Millisecond, total.FrameTime)
}

func TestMemoryStats(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Millisecond))
	clock.t = clock.t.Add(time.Second)
	r, logged := p.Tick(frameStats(1))
	require.True(t, logged)
	assert.Positive(t, r.HeapMB)
	assert.Positive(t, r.SysMB)
}
