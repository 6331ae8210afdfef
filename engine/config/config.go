// Package config loads the TOML settings of the oxy-cull tools. Every field has a default, so a
// file only needs the values it changes; command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/log"
	"github.com/pelletier/go-toml/v2"
)

// Backend names accepted in [renderer] backend.
const (
	BackendHeadless = "headless"
	BackendWebGPU   = "webgpu"
)

// Present modes accepted in [renderer] present_mode.
const (
	PresentVSync    = "vsync"
	PresentUncapped = "uncapped"
)

// MaxShadowMapSize is the largest 2D texture every WebGPU device supports.
const MaxShadowMapSize = 8192

// Config is the full set of tool settings.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Octree   OctreeConfig   `toml:"octree"`
	Scene    SceneConfig    `toml:"scene"`
	Camera   CameraConfig   `toml:"camera"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	Backend        string `toml:"backend"`
	FramesInFlight int    `toml:"frames_in_flight"`
	PresentMode    string `toml:"present_mode"`
	// ShadowMapSize is the width and height of the directional light's shadow map; 0 disables
	// the shadow pass.
	ShadowMapSize int `toml:"shadow_map_size"`
}

type OctreeConfig struct {
	MaxDepth    int     `toml:"max_depth"`
	MinNodeSize float32 `toml:"min_node_size"`
}

type SceneConfig struct {
	Grid     [3]int  `toml:"grid"`
	Spacing  float32 `toml:"spacing"`
	CubeSize float32 `toml:"cube_size"`
	Palette  int     `toml:"palette"`
}

type CameraConfig struct {
	FovDegrees float32 `toml:"fov_degrees"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
	Radius     float32 `toml:"radius"`
	// OrbitSpeed is the automatic orbit rate in radians per second; 0 disables it.
	OrbitSpeed float32 `toml:"orbit_speed"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Window:   WindowConfig{Title: "oxy-cull", Width: 1280, Height: 720},
		Renderer: RendererConfig{Backend: BackendHeadless, FramesInFlight: 3, PresentMode: PresentVSync, ShadowMapSize: 2048},
		Octree:   OctreeConfig{MaxDepth: 8},
		Scene:    SceneConfig{Grid: [3]int{32, 4, 32}, Spacing: 3, CubeSize: 1, Palette: 6},
		Camera:   CameraConfig{FovDegrees: 60, Near: 0.1, Far: 500, Radius: 80, OrbitSpeed: 0.3},
		Log:      LogConfig{Level: "info"},
	}
}

// Load decodes path over the defaults, so keys missing from the file keep their default value.
// Unknown keys are rejected so typos do not pass silently. An empty path returns Default().
//
// Parameters:
//   - path: the TOML file to read, or ""
//
// Returns:
//   - Config: the merged and validated settings
//   - error: error if the file cannot be read, decoded or fails validation
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config: %s: unknown keys:\n%s", path, strict.String())
		}
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero value of o applied on top, which is how command line flags
// override the file. The grid is replaced only when all three counts are set.
func (c Config) Merge(o Config) Config {
	c.Window.Title = common.Coalesce(o.Window.Title, c.Window.Title)
	c.Window.Width = common.Coalesce(o.Window.Width, c.Window.Width)
	c.Window.Height = common.Coalesce(o.Window.Height, c.Window.Height)

	c.Renderer.Backend = common.Coalesce(o.Renderer.Backend, c.Renderer.Backend)
	c.Renderer.FramesInFlight = common.Coalesce(o.Renderer.FramesInFlight, c.Renderer.FramesInFlight)
	c.Renderer.PresentMode = common.Coalesce(o.Renderer.PresentMode, c.Renderer.PresentMode)
	c.Renderer.ShadowMapSize = common.Coalesce(o.Renderer.ShadowMapSize, c.Renderer.ShadowMapSize)

	c.Octree.MaxDepth = common.Coalesce(o.Octree.MaxDepth, c.Octree.MaxDepth)
	c.Octree.MinNodeSize = common.Coalesce(o.Octree.MinNodeSize, c.Octree.MinNodeSize)

	if o.Scene.Grid[0] != 0 && o.Scene.Grid[1] != 0 && o.Scene.Grid[2] != 0 {
		c.Scene.Grid = o.Scene.Grid
	}
	c.Scene.Spacing = common.Coalesce(o.Scene.Spacing, c.Scene.Spacing)
	c.Scene.CubeSize = common.Coalesce(o.Scene.CubeSize, c.Scene.CubeSize)
	c.Scene.Palette = common.Coalesce(o.Scene.Palette, c.Scene.Palette)

	c.Camera.FovDegrees = common.Coalesce(o.Camera.FovDegrees, c.Camera.FovDegrees)
	c.Camera.Near = common.Coalesce(o.Camera.Near, c.Camera.Near)
	c.Camera.Far = common.Coalesce(o.Camera.Far, c.Camera.Far)
	c.Camera.Radius = common.Coalesce(o.Camera.Radius, c.Camera.Radius)
	c.Camera.OrbitSpeed = common.Coalesce(o.Camera.OrbitSpeed, c.Camera.OrbitSpeed)

	c.Log.Level = common.Coalesce(o.Log.Level, c.Log.Level)
	return c
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Window.Width > 0 && c.Window.Height > 0, "window: invalid size %dx%d", c.Window.Width, c.Window.Height)
	check(c.Renderer.Backend == BackendHeadless || c.Renderer.Backend == BackendWebGPU,
		"renderer: unknown backend %q", c.Renderer.Backend)
	check(c.Renderer.FramesInFlight >= 1, "renderer: frames_in_flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	check(c.Renderer.PresentMode == PresentVSync || c.Renderer.PresentMode == PresentUncapped,
		"renderer: unknown present_mode %q", c.Renderer.PresentMode)
	check(c.Renderer.ShadowMapSize >= 0 && c.Renderer.ShadowMapSize <= MaxShadowMapSize,
		"renderer: shadow_map_size %d outside [0, %d]", c.Renderer.ShadowMapSize, MaxShadowMapSize)
	check(c.Octree.MaxDepth >= 0 && c.Octree.MaxDepth <= 32, "octree: max_depth %d outside [0, 32]", c.Octree.MaxDepth)
	check(c.Octree.MinNodeSize >= 0, "octree: negative min_node_size %g", c.Octree.MinNodeSize)
	check(c.Scene.Grid[0] > 0 && c.Scene.Grid[1] > 0 && c.Scene.Grid[2] > 0, "scene: invalid grid %v", c.Scene.Grid)
	check(c.Scene.Spacing > 0, "scene: spacing must be positive, got %g", c.Scene.Spacing)
	check(c.Scene.CubeSize > 0, "scene: cube_size must be positive, got %g", c.Scene.CubeSize)
	check(c.Camera.FovDegrees > 0 && c.Camera.FovDegrees < 180, "camera: fov_degrees %g outside (0, 180)", c.Camera.FovDegrees)
	check(c.Camera.Near > 0 && c.Camera.Far > c.Camera.Near, "camera: invalid clip range [%g, %g]", c.Camera.Near, c.Camera.Far)
	check(c.Camera.Radius > 0, "camera: radius must be positive, got %g", c.Camera.Radius)
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	return errors.Join(errs...)
}
