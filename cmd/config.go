package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/urfave/cli"
)

// GlobalFlags are the settings shared by every command. Non-zero values override the config file.
var GlobalFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "v",
		Usage: "enable verbose logging",
	},
	cli.BoolFlag{
		Name:  "vv",
		Usage: "enable even more verbose logging",
	},
	cli.StringFlag{
		Name:  "config, c",
		Usage: "TOML settings file",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, notice, warning or error",
	},
	cli.StringFlag{
		Name:  "grid",
		Usage: "cube grid as XxYxZ, e.g. 32x4x32",
	},
	cli.IntFlag{
		Name:  "frames-in-flight",
		Usage: "number of frames recorded or executing at once",
	},
	cli.IntFlag{
		Name:  "max-depth",
		Usage: "maximum octree depth",
	},
	cli.IntFlag{
		Name:  "width",
		Usage: "window or surface width",
	},
	cli.IntFlag{
		Name:  "height",
		Usage: "window or surface height",
	},
	cli.StringFlag{
		Name:  "present-mode",
		Usage: "vsync or uncapped",
	},
}

// loadConfig reads the --config file and applies the global flag overrides.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	var o config.Config
	o.Log.Level = ctx.GlobalString("log-level")
	o.Renderer.FramesInFlight = ctx.GlobalInt("frames-in-flight")
	o.Renderer.PresentMode = ctx.GlobalString("present-mode")
	o.Octree.MaxDepth = ctx.GlobalInt("max-depth")
	o.Window.Width = ctx.GlobalInt("width")
	o.Window.Height = ctx.GlobalInt("height")
	if g := ctx.GlobalString("grid"); g != "" {
		if o.Scene.Grid, err = parseGrid(g); err != nil {
			return cfg, err
		}
	}

	cfg = cfg.Merge(o)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseGrid parses "XxYxZ" into three positive counts.
func parseGrid(s string) ([3]int, error) {
	var grid [3]int
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return grid, fmt.Errorf("grid %q: expected XxYxZ", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return grid, fmt.Errorf("grid %q: invalid count %q", s, p)
		}
		grid[i] = n
	}
	return grid, nil
}
