package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// BenchFlags are the flags of the bench command.
var BenchFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "frames, n",
		Value: 600,
		Usage: "number of frames to draw",
	},
	cli.DurationFlag{
		Name:  "latency",
		Value: 2 * time.Millisecond,
		Usage: "simulated device execution time per frame",
	},
	cli.DurationFlag{
		Name:  "interval",
		Value: time.Second,
		Usage: "profiler report interval",
	},
}

// Bench draws frames of the generated grid on the headless device and reports culling and
// recording throughput.
func Bench(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	frames := ctx.Int("frames")
	if frames <= 0 {
		return fmt.Errorf("bench: frames must be positive, got %d", frames)
	}

	device := headless.NewDevice(headless.WithLatency(ctx.Duration("latency")))
	defer device.Release()
	extent := common.Extent2D{Width: uint32(cfg.Window.Width), Height: uint32(cfg.Window.Height)}
	st, err := newStack(device, device.NewSurface(extent, 3), cfg)
	if err != nil {
		return err
	}
	defer st.renderer.Close()

	p := profiler.NewProfiler(profiler.WithInterval(ctx.Duration("interval")))
	e := engine.NewEngine(st.renderer, st.camera,
		engine.WithMaxFrames(uint64(frames)),
		engine.WithProfiler(p),
		engine.WithProfiling(true),
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Noticef("drawing %d frames of %d objects", frames, st.scene.Registry.Len())
	start := time.Now()
	if err := e.Run(runCtx); err != nil {
		return err
	}
	displayBenchStats(p.Total(), time.Since(start))
	return nil
}

func displayBenchStats(r profiler.Report, elapsed time.Duration) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Frames", "FPS", "Frame time", "Record time", "Visible", "Nodes visited", "Nodes culled", "Draws"})
	table.Append([]string{
		fmt.Sprintf("%d", r.Frames),
		fmt.Sprintf("%.1f", r.FPS),
		r.FrameTime.String(),
		r.RecordTime.String(),
		fmt.Sprintf("%.1f", r.Visible),
		fmt.Sprintf("%.1f", r.Visited),
		fmt.Sprintf("%.1f", r.Culled),
		fmt.Sprintf("%.1f", r.Draws),
	})
	table.SetFooter([]string{"", "", "", "", "", "", "TOTAL", elapsed.Round(time.Millisecond).String()})

	table.Render()
	logger.Noticef("bench statistics (per-frame averages)\n%s", buf.String())
}
