package cmd

import (
	"context"

	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/wgpubackend"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
	"github.com/urfave/cli"
)

// ViewFlags are the flags of the view command.
var ViewFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "profile",
		Usage: "log profiler statistics every second (toggle with P)",
	},
	cli.Float64Flag{
		Name:  "fps-limit",
		Usage: "cap the render loop at this many frames per second",
	},
	cli.BoolFlag{
		Name:  "fallback-adapter",
		Usage: "force the software adapter",
	},
}

// View opens a window and renders the generated grid with the WebGPU backend until the window is
// closed.
func View(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)
	if cfg.Renderer.Backend != config.BackendWebGPU {
		logger.Noticef("view always uses the %s backend", config.BackendWebGPU)
	}

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithResizable(true),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	width, height := win.FramebufferSize()
	device, surface, err := wgpubackend.Open(win.SurfaceDescriptor(), width, height,
		wgpubackend.WithVSync(cfg.Renderer.PresentMode == config.PresentVSync),
		wgpubackend.WithForceFallbackAdapter(ctx.Bool("fallback-adapter")),
		wgpubackend.WithClearColor(0.05, 0.05, 0.08),
	)
	if err != nil {
		return err
	}
	defer device.Release()

	st, err := newStack(device, surface, cfg, renderer.WithSurfaceSize(win.FramebufferSize))
	if err != nil {
		return err
	}
	defer st.renderer.Close()

	e := engine.NewEngine(st.renderer, st.camera,
		engine.WithWindow(win),
		engine.WithProfiler(profiler.NewProfiler()),
		engine.WithProfiling(ctx.Bool("profile")),
		engine.WithRenderFrameLimit(ctx.Float64("fps-limit")),
	)
	logger.Notice("W/S zoom, A/D/Q/E or arrows orbit, drag to orbit, Space pauses, P toggles profiling, Esc quits")
	return e.Run(context.Background())
}
