package cmd

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Inspect builds the configured scene and prints where its objects landed in the octree and what
// the first frame culls from the initial camera position.
func Inspect(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	device := headless.NewDevice()
	defer device.Release()
	extent := common.Extent2D{Width: uint32(cfg.Window.Width), Height: uint32(cfg.Window.Height)}
	st, err := newStack(device, device.NewSurface(extent, 3), cfg)
	if err != nil {
		return err
	}
	defer st.renderer.Close()

	logger.Noticef("scene bounds %v", st.scene.Bounds)
	displayOctreeStats(st.scene.Octree.Stats())

	st.camera.Update()
	res, err := st.renderer.DrawFrame(0, renderer.ViewFromCamera(st.camera))
	if err != nil {
		return err
	}
	displayVisibility(res.Stats, st.scene.Octree)
	return st.renderer.WaitIdle()
}

func displayOctreeStats(st octree.Stats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Depth", "Objects", "% of objects"})
	for depth, n := range st.ObjectsAtDepth {
		table.Append([]string{
			fmt.Sprintf("%d", depth),
			fmt.Sprintf("%d", n),
			fmt.Sprintf("%02.1f %%", percent(n, st.Objects)),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", st.Objects), fmt.Sprintf("%d nodes, %d leaves", st.Nodes, st.LeafNodes)})

	table.Render()
	logger.Noticef("octree statistics\n%s", buf.String())
}

func displayVisibility(stats renderer.FrameStats, tree *octree.Octree) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Pass", "Nodes visited", "Nodes culled", "Objects visible", "% visible", "Draws"})
	for _, p := range stats.Passes {
		table.Append([]string{
			p.Name,
			fmt.Sprintf("%d", p.Visited.NodesVisited),
			fmt.Sprintf("%d", p.Visited.NodesCulled),
			fmt.Sprintf("%d", p.Visited.ObjectsEmitted),
			fmt.Sprintf("%02.1f %%", percent(p.Visited.ObjectsEmitted, tree.Len())),
			fmt.Sprintf("%d", p.Draws),
		})
	}
	table.SetFooter([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%d in %s", stats.Draws, stats.Record)})

	table.Render()
	logger.Noticef("first frame visibility\n%s", buf.String())
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
