package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-cull/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "oxy-cull"
	app.Usage = "octree frustum culling with parallel command recording"
	app.Version = "0.1.0"
	app.Flags = cmd.GlobalFlags
	app.Commands = []cli.Command{
		{
			Name:  "bench",
			Usage: "draw frames on the headless device and report culling throughput",
			Description: `
Generate the configured cube grid, index it in an octree and draw frames from an
orbiting camera on a simulated device. Every frame is culled and recorded by the
parallel passes exactly as on a GPU; only execution is simulated.`,
			Flags:  cmd.BenchFlags,
			Action: cmd.Bench,
		},
		{
			Name:   "inspect",
			Usage:  "print octree statistics and first frame visibility",
			Action: cmd.Inspect,
		},
		{
			Name:   "view",
			Usage:  "open a window and render the scene with WebGPU",
			Flags:  cmd.ViewFlags,
			Action: cmd.View,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
