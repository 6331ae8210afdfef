package cmd

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Size of the generated equirectangular sky texture.
const (
	skyWidth  = 4
	skyHeight = 64
)

// Direction towards the sun and its intensity.
var (
	sunDirection = mgl32.Vec3{0.4, 1, 0.3}
	sunIntensity = float32(1)
)

// stack is everything a command needs to draw frames of the generated grid.
type stack struct {
	scene    *scene.Scene
	camera   camera.Camera
	renderer renderer.Renderer
}

// buildScene generates the cube grid on alloc and indexes it.
func buildScene(alloc gpu.Allocator, cfg config.Config) (*scene.Scene, error) {
	reg, err := scene.GenerateGrid(alloc, scene.GridConfig{
		Counts:   cfg.Scene.Grid,
		Spacing:  cfg.Scene.Spacing,
		CubeSize: cfg.Scene.CubeSize,
		Palette:  cfg.Scene.Palette,
	})
	if err != nil {
		return nil, err
	}

	opts := []octree.OctreeBuilderOption{octree.WithMaxDepth(cfg.Octree.MaxDepth)}
	if cfg.Octree.MinNodeSize > 0 {
		opts = append(opts, octree.WithMinNodeSize(cfg.Octree.MinNodeSize))
	}
	return scene.Build(reg, scene.WithOctreeOptions(opts...))
}

// buildPasses creates the shadow, opaque and skybox passes with their pipelines, the shadow map,
// the sky cube and the sky texture. The shadow pass is left out when shadowMapSize is 0.
func buildPasses(alloc gpu.Allocator, sc *scene.Scene, shadowMapSize int) ([]pass.Pass, error) {
	var passes []pass.Pass
	opaqueOpts := []pass.OpaquePassOption{pass.WithLight(sunDirection, sunIntensity)}
	if shadowMapSize > 0 {
		size := uint32(shadowMapSize)
		shadowPipeline, err := alloc.CreatePipeline("Shadow Pipeline", gpu.PipelineShadow)
		if err != nil {
			return nil, fmt.Errorf("shadow pipeline: %w", err)
		}
		shadowMap, err := alloc.CreateShadowMap("Shadow Map", size)
		if err != nil {
			return nil, fmt.Errorf("shadow map: %w", err)
		}
		lightVP := pass.FitDirectionalLight(sc.Bounds, sunDirection)
		passes = append(passes, pass.NewShadowPass(shadowPipeline, shadowMap, size, lightVP))
		opaqueOpts = append(opaqueOpts, pass.WithShadowMap(shadowMap, lightVP))
	}

	opaque, err := alloc.CreatePipeline("Opaque Pipeline", gpu.PipelineOpaque)
	if err != nil {
		return nil, fmt.Errorf("opaque pipeline: %w", err)
	}
	skybox, err := alloc.CreatePipeline("Skybox Pipeline", gpu.PipelineSkybox)
	if err != nil {
		return nil, fmt.Errorf("skybox pipeline: %w", err)
	}
	cube, err := scene.Upload(alloc, "Skybox Cube", scene.Cube(2))
	if err != nil {
		return nil, fmt.Errorf("skybox mesh: %w", err)
	}
	sky, err := alloc.CreateTexture("Sky Texture", skyWidth, skyHeight, skyGradient(skyWidth, skyHeight))
	if err != nil {
		return nil, fmt.Errorf("sky texture: %w", err)
	}

	return append(passes,
		pass.NewOpaquePass(opaque, opaqueOpts...),
		pass.NewSkyboxPass(skybox, pass.SkyboxMesh{
			VertexBuffer: cube.VertexBuffer,
			IndexBuffer:  cube.IndexBuffer,
			IndexCount:   cube.IndexCount,
			IndexFormat:  gpu.IndexFormatUint32,
		}, sky),
	), nil
}

// skyGradient returns RGBA pixels fading from a zenith blue in the top row to a grey horizon in
// the middle row and a dark ground in the bottom row.
func skyGradient(width, height int) []byte {
	zenith := mgl32.Vec3{40, 90, 200}
	horizon := mgl32.Vec3{190, 205, 220}
	ground := mgl32.Vec3{45, 45, 50}

	pixels := make([]byte, 0, width*height*4)
	for y := 0; y < height; y++ {
		v := float32(y) / float32(height-1)
		var c mgl32.Vec3
		if v < 0.5 {
			c = zenith.Add(horizon.Sub(zenith).Mul(v * 2))
		} else {
			c = horizon.Add(ground.Sub(horizon).Mul((v - 0.5) * 2))
		}
		for x := 0; x < width; x++ {
			pixels = append(pixels, byte(c[0]), byte(c[1]), byte(c[2]), 255)
		}
	}
	return pixels
}

// newCamera orbits the centre of the scene bounds.
func newCamera(cfg config.Config, sc *scene.Scene, extent common.Extent2D) camera.Camera {
	ctrl := camera.NewOrbitController(
		camera.WithTarget(sc.Bounds.Center()),
		camera.WithRadius(cfg.Camera.Radius),
		camera.WithAutoOrbit(cfg.Camera.OrbitSpeed),
	)
	return camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(cfg.Camera.FovDegrees)),
		camera.WithAspect(extent.Aspect()),
		camera.WithClipPlanes(cfg.Camera.Near, cfg.Camera.Far),
		camera.WithController(ctrl),
	)
}

// newStack builds the scene, passes, camera and renderer on an opened device and surface.
func newStack(device gpu.Device, surface gpu.Surface, cfg config.Config, opts ...renderer.RendererBuilderOption) (*stack, error) {
	sc, err := buildScene(device, cfg)
	if err != nil {
		return nil, err
	}
	passes, err := buildPasses(device, sc, cfg.Renderer.ShadowMapSize)
	if err != nil {
		return nil, err
	}
	cam := newCamera(cfg, sc, surface.Extent())

	opts = append([]renderer.RendererBuilderOption{
		renderer.WithPasses(passes...),
		renderer.WithFramesInFlight(cfg.Renderer.FramesInFlight),
		renderer.WithRebuildHook(func(extent common.Extent2D) {
			cam.SetAspect(extent.Aspect())
		}),
	}, opts...)
	r, err := renderer.NewRenderer(device, surface, sc, opts...)
	if err != nil {
		return nil, err
	}

	st := sc.Octree.Stats()
	logger.Infof("scene ready: %d objects in %d octree nodes, max depth %d", st.Objects, st.Nodes, st.MaxDepth)
	return &stack{scene: sc, camera: cam, renderer: r}, nil
}
