package wgpubackend

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/opaque.wgsl
var opaqueWGSL string

//go:embed assets/skybox.wgsl
var skyboxWGSL string

//go:embed assets/shadow.wgsl
var shadowWGSL string

// Bind group indices shared by every pipeline. Only the opaque pipeline has the shadow group.
const (
	groupFrame   = 0
	groupTexture = 1
	groupParams  = 2
	groupShadow  = 3
)

const (
	depthFormat       = wgpu.TextureFormatDepth24Plus
	shadowDepthFormat = wgpu.TextureFormatDepth32Float
)

// Constant and slope-scaled depth bias of the shadow pipeline against acne.
const (
	shadowDepthBias      = 2
	shadowDepthBiasSlope = 1.5
)

// bindLayouts holds the bind group layouts and the pipeline layouts built from them: the shared
// layout of the skybox and shadow pipelines and the opaque layout that adds the shadow group.
type bindLayouts struct {
	frame    *wgpu.BindGroupLayout
	texture  *wgpu.BindGroupLayout
	params   *wgpu.BindGroupLayout
	shadow   *wgpu.BindGroupLayout
	pipeline *wgpu.PipelineLayout
	opaque   *wgpu.PipelineLayout
}

func newBindLayouts(device *wgpu.Device) (bindLayouts, error) {
	var (
		l   bindLayouts
		err error
	)
	stages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment

	l.frame, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Frame Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: stages,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return l, fmt.Errorf("wgpu: frame layout: %w", err)
	}

	l.texture, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Texture Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		l.release()
		return l, fmt.Errorf("wgpu: texture layout: %w", err)
	}

	l.params, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Params Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: stages,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
			},
		}},
	})
	if err != nil {
		l.release()
		return l, fmt.Errorf("wgpu: params layout: %w", err)
	}

	l.shadow, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Shadow Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeDepth,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeComparison},
			},
		},
	})
	if err != nil {
		l.release()
		return l, fmt.Errorf("wgpu: shadow layout: %w", err)
	}

	l.pipeline, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Scene Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{l.frame, l.texture, l.params},
	})
	if err != nil {
		l.release()
		return l, fmt.Errorf("wgpu: pipeline layout: %w", err)
	}
	l.opaque, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Opaque Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{l.frame, l.texture, l.params, l.shadow},
	})
	if err != nil {
		l.release()
		return l, fmt.Errorf("wgpu: opaque pipeline layout: %w", err)
	}
	return l, nil
}

func (l *bindLayouts) release() {
	for _, pl := range []*wgpu.PipelineLayout{l.opaque, l.pipeline} {
		if pl != nil {
			pl.Release()
		}
	}
	for _, bgl := range []*wgpu.BindGroupLayout{l.shadow, l.params, l.texture, l.frame} {
		if bgl != nil {
			bgl.Release()
		}
	}
	*l = bindLayouts{}
}

// vertexLayout matches scene.Vertex: position, normal, uv.
var vertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: scene.VertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
	},
}

// pipeline is a built render pipeline and the kind it was built for.
type pipeline struct {
	render *wgpu.RenderPipeline
	kind   gpu.PipelineKind
}

// newPipeline builds the render pipeline for kind against the layouts it needs.
//
// Parameters:
//   - device: the device to create the pipeline on
//   - layouts: the layouts from newBindLayouts
//   - format: the surface color format
//   - label: debug label
//   - kind: which pipeline to build
//
// Returns:
//   - *pipeline: the pipeline
//   - error: an error if the shader or pipeline could not be created
func newPipeline(device *wgpu.Device, layouts *bindLayouts, format wgpu.TextureFormat, label string, kind gpu.PipelineKind) (*pipeline, error) {
	var (
		source     string
		layout     = layouts.pipeline
		cullMode   wgpu.CullMode
		depthWrite bool
		compare    wgpu.CompareFunction
	)
	switch kind {
	case gpu.PipelineOpaque:
		source, layout, cullMode, depthWrite, compare = opaqueWGSL, layouts.opaque, wgpu.CullModeBack, true, wgpu.CompareFunctionLess
	case gpu.PipelineSkybox:
		// Drawn from inside the cube at the far plane, behind everything already written.
		source, cullMode, depthWrite, compare = skyboxWGSL, wgpu.CullModeNone, false, wgpu.CompareFunctionLessEqual
	case gpu.PipelineShadow:
		source, cullMode, depthWrite, compare = shadowWGSL, wgpu.CullModeBack, true, wgpu.CompareFunctionLess
	default:
		return nil, fmt.Errorf("wgpu: pipeline %q has unknown kind %d", label, kind)
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: pipeline %q shader: %w", label, err)
	}
	defer module.Release()

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: depthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	}
	if kind == gpu.PipelineShadow {
		// Depth only: no fragment stage and no color target.
		desc.Fragment = nil
		desc.DepthStencil.Format = shadowDepthFormat
		desc.DepthStencil.DepthBias = shadowDepthBias
		desc.DepthStencil.DepthBiasSlopeScale = shadowDepthBiasSlope
	}

	p, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: pipeline %q: %w", label, err)
	}
	return &pipeline{render: p, kind: kind}, nil
}
