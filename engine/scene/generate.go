package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/registry"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// GridConfig describes a procedural scene: a regular 3D grid of cubes centred on the origin.
type GridConfig struct {
	// Counts is the number of cubes along x, y and z.
	Counts [3]int
	// Spacing is the distance between neighbouring cube centres.
	Spacing float32
	// CubeSize is the edge length of every cube.
	CubeSize float32
	// Palette is the number of distinct diffuse textures cycled through the grid.
	Palette int
}

// DefaultGridConfig is a 32x4x32 grid of unit cubes.
func DefaultGridConfig() GridConfig {
	return GridConfig{Counts: [3]int{32, 4, 32}, Spacing: 3, CubeSize: 1, Palette: 6}
}

// Count returns the number of objects the grid produces.
func (c GridConfig) Count() int {
	return c.Counts[0] * c.Counts[1] * c.Counts[2]
}

// GenerateGrid uploads a shared cube mesh and a small texture palette, then registers one object
// per grid cell with its model matrix and world bounds.
//
// Parameters:
//   - alloc: the resource allocator of the target device
//   - cfg: grid layout
//
// Returns:
//   - *registry.Registry: the filled registry
//   - error: error if the layout is empty or an upload fails
func GenerateGrid(alloc gpu.Allocator, cfg GridConfig) (*registry.Registry, error) {
	if cfg.Count() <= 0 || cfg.CubeSize <= 0 {
		return nil, fmt.Errorf("scene: empty grid %v of size %g", cfg.Counts, cfg.CubeSize)
	}
	if cfg.Palette < 1 {
		cfg.Palette = 1
	}

	cube, err := Upload(alloc, "Grid Cube", Cube(cfg.CubeSize))
	if err != nil {
		return nil, fmt.Errorf("scene: upload cube: %w", err)
	}

	normal, err := alloc.CreateTexture("Flat Normal", 1, 1, []byte{128, 128, 255, 255})
	if err != nil {
		return nil, fmt.Errorf("scene: create normal texture: %w", err)
	}
	metallicRoughness, err := alloc.CreateTexture("Metallic Roughness", 1, 1, []byte{0, 160, 0, 255})
	if err != nil {
		return nil, fmt.Errorf("scene: create metallic-roughness texture: %w", err)
	}
	diffuse := make([]gpu.TextureHandle, cfg.Palette)
	for i := range diffuse {
		pixels := checker(paletteColor(i, cfg.Palette), 4)
		if diffuse[i], err = alloc.CreateTexture(fmt.Sprintf("Diffuse %d", i), 4, 4, pixels); err != nil {
			return nil, fmt.Errorf("scene: create diffuse texture %d: %w", i, err)
		}
	}

	reg := registry.New(cfg.Count())
	origin := mgl32.Vec3{
		-float32(cfg.Counts[0]-1) * cfg.Spacing / 2,
		-float32(cfg.Counts[1]-1) * cfg.Spacing / 2,
		-float32(cfg.Counts[2]-1) * cfg.Spacing / 2,
	}
	n := 0
	for x := 0; x < cfg.Counts[0]; x++ {
		for y := 0; y < cfg.Counts[1]; y++ {
			for z := 0; z < cfg.Counts[2]; z++ {
				pos := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(cfg.Spacing))
				model := mgl32.Translate3D(pos[0], pos[1], pos[2])
				reg.Add(
					registry.Mesh{
						VertexBuffer: cube.VertexBuffer,
						IndexBuffer:  cube.IndexBuffer,
						IndexCount:   cube.IndexCount,
						IndexFormat:  gpu.IndexFormatUint32,
						Bounds:       cube.WorldBounds(model),
					},
					registry.Material{
						Diffuse:           diffuse[n%len(diffuse)],
						Normal:            normal,
						MetallicRoughness: metallicRoughness,
					},
					registry.Transform{Model: model},
				)
				n++
			}
		}
	}
	return reg, nil
}

// paletteColor spreads n hues evenly around the colour wheel.
func paletteColor(i, n int) [3]byte {
	h := float32(i) / float32(n) * 6
	sector := int(h)
	f := h - float32(sector)
	q, t := byte(255*(1-f)), byte(255*f)
	switch sector % 6 {
	case 0:
		return [3]byte{255, t, 0}
	case 1:
		return [3]byte{q, 255, 0}
	case 2:
		return [3]byte{0, 255, t}
	case 3:
		return [3]byte{0, q, 255}
	case 4:
		return [3]byte{t, 0, 255}
	}
	return [3]byte{255, 0, q}
}

// checker returns size x size RGBA pixels alternating between c and a darker shade of c.
func checker(c [3]byte, size int) []byte {
	pixels := make([]byte, 0, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			shade := c
			if (x+y)%2 == 1 {
				shade = [3]byte{c[0] / 2, c[1] / 2, c[2] / 2}
			}
			pixels = append(pixels, shade[0], shade[1], shade[2], 255)
		}
	}
	return pixels
}
