package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// Report summarises the frames of one profiling interval.
type Report struct {
	Frames int
	FPS    float64

	// Per-frame averages over the interval.
	Visible     float64
	Visited     float64
	Culled      float64
	Draws       float64
	RecordTime  time.Duration
	FrameTime   time.Duration
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64

	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, culling efficiency and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	logger         log.Logger
	now            func() time.Time
	updateInterval time.Duration
	readMem        bool

	frameCount int
	lastTime   time.Time
	sums       renderer.FrameStats

	total      Report
	totalStart time.Time

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         log.New("profiler"),
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	p.totalStart = p.lastTime
	return p
}

// Tick should be called once per submitted frame with that frame's stats.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, visible objects, nodes visited and culled, draws, recording time,
// heap usage, allocation rate and GC pauses.
//
// Parameters:
//   - stats: the stats of the frame just drawn
//
// Returns:
//   - Report: the interval report, valid only when the bool is true
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats renderer.FrameStats) (Report, bool) {
	p.frameCount++
	p.accumulate(&p.sums, stats)
	p.total.Frames++
	p.total.Visible += float64(stats.Visit.ObjectsEmitted)
	p.total.Visited += float64(stats.Visit.NodesVisited)
	p.total.Culled += float64(stats.Visit.NodesCulled)
	p.total.Draws += float64(stats.Draws)
	p.total.RecordTime += stats.Record

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Report{}, false
	}

	r := p.report(p.frameCount, p.sums, elapsed)
	if p.readMem {
		p.readMemory(&r, elapsed)
	}
	p.logger.Infof("FPS: %.2f | Visible: %.0f | Nodes: %.0f visited, %.0f culled | Draws: %.0f | Record: %v | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		r.FPS, r.Visible, r.Visited, r.Culled, r.Draws, r.RecordTime, r.HeapMB, r.AllocRateMB,
		r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)

	p.frameCount = 0
	p.sums = renderer.FrameStats{}
	p.lastTime = currentTime
	return r, true
}

// Total returns the averages over every frame since the profiler was created.
func (p *Profiler) Total() Report {
	t := p.total
	if t.Frames == 0 {
		return t
	}
	n := float64(t.Frames)
	elapsed := p.now().Sub(p.totalStart)
	t.Visible /= n
	t.Visited /= n
	t.Culled /= n
	t.Draws /= n
	t.RecordTime /= time.Duration(t.Frames)
	if elapsed > 0 {
		t.FPS = n / elapsed.Seconds()
		t.FrameTime = elapsed / time.Duration(t.Frames)
	}
	return t
}

func (p *Profiler) accumulate(sum *renderer.FrameStats, s renderer.FrameStats) {
	sum.Visit.Add(s.Visit)
	sum.Draws += s.Draws
	sum.Record += s.Record
}

func (p *Profiler) report(frames int, sums renderer.FrameStats, elapsed time.Duration) Report {
	n := float64(frames)
	return Report{
		Frames:     frames,
		FPS:        n / elapsed.Seconds(),
		Visible:    float64(sums.Visit.ObjectsEmitted) / n,
		Visited:    float64(sums.Visit.NodesVisited) / n,
		Culled:     float64(sums.Visit.NodesCulled) / n,
		Draws:      float64(sums.Draws) / n,
		RecordTime: sums.Record / time.Duration(frames),
		FrameTime:  elapsed / time.Duration(frames),
	}
}

func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (tracks churn)
	// Sys: Total bytes of memory obtained from the OS
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
