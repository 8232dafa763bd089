package glshim

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"
)

//go:embed shaders/clear.wgsl
var clearShaderWGSL string

//go:embed shaders/blit.wgsl
var blitShaderWGSL string

// AlphaMode selects how a blit treats the source alpha channel.
type AlphaMode uint8

const (
	// AlphaPassthrough copies color and alpha unchanged.
	AlphaPassthrough AlphaMode = iota

	// AlphaPremultiply multiplies color by alpha during the copy.
	AlphaPremultiply

	// AlphaUnmultiply divides color by alpha during the copy. Texels
	// with zero alpha pass through unchanged.
	AlphaUnmultiply

	numAlphaModes
)

// blitFragmentEntry names the fragment entry point for each alpha
// mode. Must match shaders/blit.wgsl.
var blitFragmentEntry = [numAlphaModes]string{
	AlphaPassthrough: "fs_blit",
	AlphaPremultiply: "fs_premultiply",
	AlphaUnmultiply:  "fs_unmultiply",
}

// clearUniformSize is the byte size of ClearUniforms in clear.wgsl.
const clearUniformSize = 32

// ClearParams selects what a clear writes. A nil Color leaves the
// color attachment alone; a nil Depth leaves the depth attachment
// alone. Both nil makes the clear a no-op.
type ClearParams struct {
	Color *f32.Vec4
	Depth *float32
}

// BlitParams controls a blit.
type BlitParams struct {
	// SrcRect selects the texel region to sample, normalized by the
	// source's mip level dimensions. Nil samples the whole level.
	SrcRect *SourceRect

	// UnpackFlipY requests a vertical flip on top of whatever
	// orientation the source already has. A flipped source combined
	// with UnpackFlipY cancels out to a straight copy.
	UnpackFlipY bool

	Alpha AlphaMode
}

// DrawUtils issues clears and blits as ordinary draws: a full-screen
// quad of two triangles, drawn with internal shaders into whatever
// pass is open. It never begins or ends passes itself.
//
// Each alpha mode has its own pipeline cache because the blit variants
// share one shader module and differ only in fragment entry point,
// which the pipeline key does not carry.
type DrawUtils struct {
	mu          sync.Mutex
	device      hal.Device
	invalidator StateInvalidator

	clearModule hal.ShaderModule
	blitModule  hal.ShaderModule

	clearVertex   *ShaderFunction
	clearFragment *ShaderFunction
	blitVertex    *ShaderFunction
	blitFragment  [numAlphaModes]*ShaderFunction

	clearLayoutBG hal.BindGroupLayout
	blitLayoutBG  hal.BindGroupLayout
	clearLayout   hal.PipelineLayout
	blitLayout    hal.PipelineLayout
	sampler       hal.Sampler

	clearPipelines *RenderPipelineCache
	blitPipelines  [numAlphaModes]*RenderPipelineCache

	// Per-frame resources released together at EndFrame. The GPU may
	// still read them when the draw call returns, so they cannot be
	// destroyed inline.
	frameBuffers    []hal.Buffer
	frameBindGroups []hal.BindGroup
}

// NewDrawUtils compiles the internal shaders and builds the fixed
// layouts. The invalidator may be nil when no outer state tracking
// needs notification.
func NewDrawUtils(device hal.Device, invalidator StateInvalidator) (*DrawUtils, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	u := &DrawUtils{device: device, invalidator: invalidator}
	if err := u.init(); err != nil {
		u.Destroy()
		return nil, err
	}
	return u, nil
}

func (u *DrawUtils) init() error {
	clearFn, err := u.compileInternal("glshim:clear", clearShaderWGSL)
	if err != nil {
		return err
	}
	u.clearModule = clearFn.Module
	u.clearVertex = &ShaderFunction{Stage: StageVertex, Module: clearFn.Module, EntryPoint: "vs_main", CodeHash: clearFn.CodeHash}
	u.clearFragment = &ShaderFunction{Stage: StageFragment, Module: clearFn.Module, EntryPoint: "fs_main", CodeHash: clearFn.CodeHash}

	blitFn, err := u.compileInternal("glshim:blit", blitShaderWGSL)
	if err != nil {
		return err
	}
	u.blitModule = blitFn.Module
	u.blitVertex = &ShaderFunction{Stage: StageVertex, Module: blitFn.Module, EntryPoint: "vs_main", CodeHash: blitFn.CodeHash}
	for mode := AlphaPassthrough; mode < numAlphaModes; mode++ {
		u.blitFragment[mode] = &ShaderFunction{
			Stage:      StageFragment,
			Module:     blitFn.Module,
			EntryPoint: blitFragmentEntry[mode],
			CodeHash:   blitFn.CodeHash,
		}
	}

	if err := u.createLayouts(); err != nil {
		return err
	}

	u.sampler, err = u.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "glshim:blit",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("glshim: create blit sampler: %w", err)
	}

	u.clearPipelines, err = NewRenderPipelineCache(u.device, "clear")
	if err != nil {
		return err
	}
	for mode := AlphaPassthrough; mode < numAlphaModes; mode++ {
		u.blitPipelines[mode], err = NewRenderPipelineCache(u.device, "blit:"+blitFragmentEntry[mode])
		if err != nil {
			return err
		}
	}
	return nil
}

// compileInternal compiles embedded WGSL into a native module.
func (u *DrawUtils) compileInternal(label, source string) (*ShaderFunction, error) {
	raw, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("glshim: compile %s shader: %w", label, err)
	}
	code := packWords(raw)

	module, err := u.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, &CompileError{Stage: StageVertex, Diagnostics: err.Error()}
	}
	if module == nil {
		return nil, &CompileError{Stage: StageVertex, Diagnostics: "driver returned no module and no diagnostics"}
	}
	return &ShaderFunction{Module: module, CodeHash: hashCode(code)}, nil
}

func (u *DrawUtils) createLayouts() error {
	var err error
	u.clearLayoutBG, err = u.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glshim:clear",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: clearUniformSize,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("glshim: create clear bind group layout: %w", err)
	}

	u.blitLayoutBG, err = u.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "glshim:blit",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("glshim: create blit bind group layout: %w", err)
	}

	u.clearLayout, err = u.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glshim:clear",
		BindGroupLayouts: []hal.BindGroupLayout{u.clearLayoutBG},
	})
	if err != nil {
		return fmt.Errorf("glshim: create clear pipeline layout: %w", err)
	}
	u.blitLayout, err = u.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glshim:blit",
		BindGroupLayouts: []hal.BindGroupLayout{u.blitLayoutBG},
	})
	if err != nil {
		return fmt.Errorf("glshim: create blit pipeline layout: %w", err)
	}
	return nil
}

// quadLayout is the vertex layout for clear draws: position only.
func quadLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: 8,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		},
	}}
}

// blitQuadLayout is the vertex layout for blit draws: position and
// texture coordinate.
func blitQuadLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: 16,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		},
	}}
}

// quadPositions covers clip space with two triangles, six vertices.
var quadPositions = [12]float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

// Clear overwrites the pass attachments with constant values by
// drawing a full-screen quad.
//
// A pass with no attachments, or params that select nothing present in
// the pass, makes Clear return nil before touching any cache or
// device resource.
func (u *DrawUtils) Clear(pass RenderPass, queue BufferWriter, targets RenderTargets, params ClearParams) error {
	clearColor := params.Color != nil && targets.ColorFormat != gputypes.TextureFormatUndefined
	clearDepth := params.Depth != nil && targets.DepthFormat != gputypes.TextureFormatUndefined
	if targets.None() || (!clearColor && !clearDepth) {
		return nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	var color f32.Vec4
	if clearColor {
		color = *params.Color
	}
	depth := float32(1)
	if clearDepth {
		depth = *params.Depth
	}
	uniforms := make([]byte, clearUniformSize)
	putFloats(uniforms, color[0], color[1], color[2], color[3], depth)

	uniformBuf, err := u.transientBuffer("glshim:clear:uniforms", uniforms,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, queue)
	if err != nil {
		return err
	}
	vertexBuf, err := u.transientBuffer("glshim:clear:quad", floatBytes(quadPositions[:]),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, queue)
	if err != nil {
		return err
	}

	bindGroup, err := u.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glshim:clear",
		Layout: u.clearLayoutBG,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: clearUniformSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("glshim: create clear bind group: %w", err)
	}
	u.frameBindGroups = append(u.frameBindGroups, bindGroup)

	desc := &PipelineDesc{
		Label:         "glshim:clear",
		Vertex:        u.clearVertex,
		Layout:        u.clearLayout,
		VertexBuffers: quadLayout(),
		Topology:      gputypes.PrimitiveTopologyTriangleList,
		FrontFace:     gputypes.FrontFaceCCW,
		CullMode:      gputypes.CullModeNone,
		DepthFormat:   targets.DepthFormat,

		DepthWriteEnabled: clearDepth,
		DepthCompare:      gputypes.CompareFunctionAlways,
		SampleCount:       targets.SampleCount,
	}
	if targets.ColorFormat != gputypes.TextureFormatUndefined {
		desc.Fragment = u.clearFragment
		desc.ColorFormat = targets.ColorFormat
		if clearColor {
			desc.WriteMask = gputypes.ColorWriteMaskAll
		} else {
			desc.WriteMask = gputypes.ColorWriteMaskNone
		}
	}

	pipeline, err := u.clearPipelines.GetOrCreate(desc)
	if err != nil {
		return err
	}

	u.drawQuad(pass, pipeline, bindGroup, vertexBuf, targets)
	return nil
}

// Blit copies a source texture over the pass's color attachment by
// drawing a textured full-screen quad.
//
// The source orientation and the requested flip compose: a bottom-up
// source blitted with UnpackFlipY comes out upright. Texture
// coordinates carry the composed flip, computed on the CPU.
func (u *DrawUtils) Blit(pass RenderPass, queue BufferWriter, targets RenderTargets, src TextureSource, params BlitParams) error {
	if targets.None() || targets.ColorFormat == gputypes.TextureFormatUndefined {
		return nil
	}
	// An absent source selects nothing to copy. Like a clear with no
	// attachments, that is a no-op, not an error.
	if src.View == nil {
		return nil
	}
	if params.Alpha >= numAlphaModes {
		return fmt.Errorf("glshim: unknown alpha mode %d", params.Alpha)
	}

	u0, v0, u1, v1, err := sourceUVBounds(src, params.SrcRect)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	flip := src.SrcYFlipped != params.UnpackFlipY
	vertexBuf, err := u.transientBuffer("glshim:blit:quad", floatBytes(blitQuadVertices(u0, v0, u1, v1, flip)),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, queue)
	if err != nil {
		return err
	}

	sampler := src.Sampler
	if sampler == nil {
		sampler = u.sampler
	}
	bindGroup, err := u.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "glshim:blit",
		Layout: u.blitLayoutBG,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{
				TextureView: src.View.NativeHandle(),
			}},
			{Binding: 1, Resource: gputypes.SamplerBinding{
				Sampler: sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("glshim: create blit bind group: %w", err)
	}
	u.frameBindGroups = append(u.frameBindGroups, bindGroup)

	desc := &PipelineDesc{
		Label:         "glshim:blit",
		Vertex:        u.blitVertex,
		Fragment:      u.blitFragment[params.Alpha],
		Layout:        u.blitLayout,
		VertexBuffers: blitQuadLayout(),
		Topology:      gputypes.PrimitiveTopologyTriangleList,
		FrontFace:     gputypes.FrontFaceCCW,
		CullMode:      gputypes.CullModeNone,
		ColorFormat:   targets.ColorFormat,
		DepthFormat:   targets.DepthFormat,

		DepthWriteEnabled: false,
		DepthCompare:      gputypes.CompareFunctionAlways,
		WriteMask:         gputypes.ColorWriteMaskAll,
		SampleCount:       targets.SampleCount,
	}
	pipeline, err := u.blitPipelines[params.Alpha].GetOrCreate(desc)
	if err != nil {
		return err
	}

	u.drawQuad(pass, pipeline, bindGroup, vertexBuf, targets)
	return nil
}

// sourceUVBounds normalizes the source rectangle to texture
// coordinates. A nil rect covers the whole level; a rect requires the
// source's level dimensions to normalize against.
func sourceUVBounds(src TextureSource, rect *SourceRect) (u0, v0, u1, v1 float32, err error) {
	if rect == nil {
		return 0, 0, 1, 1, nil
	}
	if src.Width == 0 || src.Height == 0 {
		return 0, 0, 0, 0, fmt.Errorf("glshim: blit source rect needs level dimensions")
	}
	w, h := float32(src.Width), float32(src.Height)
	u0 = float32(rect.X) / w
	v0 = float32(rect.Y) / h
	u1 = float32(rect.X+rect.Width) / w
	v1 = float32(rect.Y+rect.Height) / h
	return u0, v0, u1, v1, nil
}

// blitQuadVertices builds interleaved position/texcoord data for the
// six quad vertices, flipping the V range when requested.
func blitQuadVertices(u0, v0, u1, v1 float32, flip bool) []float32 {
	vTop, vBottom := v0, v1
	if flip {
		vTop, vBottom = vBottom, vTop
	}
	return []float32{
		-1, -1, u0, vBottom,
		1, -1, u1, vBottom,
		1, 1, u1, vTop,
		-1, -1, u0, vBottom,
		1, 1, u1, vTop,
		-1, 1, u0, vTop,
	}
}

// drawQuad records the draw and fires the invalidation callback. The
// callback runs after the draw because the utility changed pipeline,
// bind group and vertex buffer state behind the outer tracker's back.
func (u *DrawUtils) drawQuad(pass RenderPass, pipeline *RenderPipeline, bindGroup hal.BindGroup, vertexBuf hal.Buffer, targets RenderTargets) {
	pass.SetPipeline(pipeline.Raw())
	pass.SetBindGroup(0, bindGroup, nil)
	pass.SetVertexBuffer(0, vertexBuf, 0)
	pass.SetViewport(0, 0, float32(targets.Width), float32(targets.Height), 0, 1)
	pass.SetScissorRect(0, 0, targets.Width, targets.Height)
	pass.Draw(6, 1, 0, 0)

	if u.invalidator != nil {
		u.invalidator.InvalidateRenderState()
	}
}

// transientBuffer creates a buffer that lives until EndFrame and fills
// it through the queue.
func (u *DrawUtils) transientBuffer(label string, data []byte, usage gputypes.BufferUsage, queue BufferWriter) (hal.Buffer, error) {
	buf, err := u.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%d bytes): %v", ErrOutOfMemory, label, len(data), err)
	}
	u.frameBuffers = append(u.frameBuffers, buf)
	queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// EndFrame releases the transient buffers and bind groups accumulated
// since the last call. Call it once the frame's command buffers have
// completed.
func (u *DrawUtils) EndFrame() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, buf := range u.frameBuffers {
		u.device.DestroyBuffer(buf)
	}
	u.frameBuffers = u.frameBuffers[:0]
	for _, bg := range u.frameBindGroups {
		u.device.DestroyBindGroup(bg)
	}
	u.frameBindGroups = u.frameBindGroups[:0]
}

// PipelineCounts returns the number of cached clear pipelines and the
// per-alpha-mode blit pipeline counts. After Destroy all counts are
// zero.
func (u *DrawUtils) PipelineCounts() (clear int, blit [numAlphaModes]int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.clearPipelines != nil {
		clear = u.clearPipelines.Size()
	}
	for mode := AlphaPassthrough; mode < numAlphaModes; mode++ {
		if u.blitPipelines[mode] != nil {
			blit[mode] = u.blitPipelines[mode].Size()
		}
	}
	return clear, blit
}

// Destroy releases every resource the utilities own, including all
// cached pipelines and any transient frame resources not yet
// released.
func (u *DrawUtils) Destroy() {
	u.EndFrame()

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.clearPipelines != nil {
		u.clearPipelines.DestroyAll()
		u.clearPipelines = nil
	}
	for mode := AlphaPassthrough; mode < numAlphaModes; mode++ {
		if u.blitPipelines[mode] != nil {
			u.blitPipelines[mode].DestroyAll()
			u.blitPipelines[mode] = nil
		}
	}
	if u.sampler != nil {
		u.device.DestroySampler(u.sampler)
		u.sampler = nil
	}
	if u.clearLayout != nil {
		u.device.DestroyPipelineLayout(u.clearLayout)
		u.clearLayout = nil
	}
	if u.blitLayout != nil {
		u.device.DestroyPipelineLayout(u.blitLayout)
		u.blitLayout = nil
	}
	if u.clearLayoutBG != nil {
		u.device.DestroyBindGroupLayout(u.clearLayoutBG)
		u.clearLayoutBG = nil
	}
	if u.blitLayoutBG != nil {
		u.device.DestroyBindGroupLayout(u.blitLayoutBG)
		u.blitLayoutBG = nil
	}
	if u.clearModule != nil {
		u.device.DestroyShaderModule(u.clearModule)
		u.clearModule = nil
	}
	if u.blitModule != nil {
		u.device.DestroyShaderModule(u.blitModule)
		u.blitModule = nil
	}
}

// putFloats stores float32 values little-endian at the front of dst.
func putFloats(dst []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// floatBytes converts a float32 slice to its little-endian byte form.
func floatBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	putFloats(out, values...)
	return out
}
