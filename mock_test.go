package glshim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// =============================================================================
// Mock Types for Testing
// =============================================================================

// mockDevice is a test double for hal.Device.
type mockDevice struct {
	createBufferFunc         func(*hal.BufferDescriptor) (hal.Buffer, error)
	createShaderModuleFunc   func(*hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
	createRenderPipelineFunc func(*hal.RenderPipelineDescriptor) (hal.RenderPipeline, error)

	// Track calls for verification
	buffersCreated     int32
	buffersDestroyed   int32
	modulesCreated     int32
	modulesDestroyed   int32
	pipelinesCreated   int32
	pipelinesDestroyed int32
	bindGroupsCreated  int32
	bindGroupsFreed    int32
	samplersCreated    int32
}

func (d *mockDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	atomic.AddInt32(&d.buffersCreated, 1)
	if d.createBufferFunc != nil {
		return d.createBufferFunc(desc)
	}
	return &mockBuffer{size: desc.Size, label: desc.Label}, nil
}

func (d *mockDevice) DestroyBuffer(_ hal.Buffer) {
	atomic.AddInt32(&d.buffersDestroyed, 1)
}

func (d *mockDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	atomic.AddInt32(&d.modulesCreated, 1)
	if d.createShaderModuleFunc != nil {
		return d.createShaderModuleFunc(desc)
	}
	return &mockShaderModule{label: desc.Label}, nil
}

func (d *mockDevice) DestroyShaderModule(_ hal.ShaderModule) {
	atomic.AddInt32(&d.modulesDestroyed, 1)
}

func (d *mockDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	atomic.AddInt32(&d.pipelinesCreated, 1)
	if d.createRenderPipelineFunc != nil {
		return d.createRenderPipelineFunc(desc)
	}
	return &mockRenderPipeline{label: desc.Label}, nil
}

func (d *mockDevice) DestroyRenderPipeline(_ hal.RenderPipeline) {
	atomic.AddInt32(&d.pipelinesDestroyed, 1)
}

func (d *mockDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	atomic.AddInt32(&d.bindGroupsCreated, 1)
	return &mockBindGroup{label: desc.Label}, nil
}

func (d *mockDevice) DestroyBindGroup(_ hal.BindGroup) {
	atomic.AddInt32(&d.bindGroupsFreed, 1)
}

func (d *mockDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	return &mockBindGroupLayout{label: desc.Label}, nil
}
func (d *mockDevice) DestroyBindGroupLayout(_ hal.BindGroupLayout) {}

func (d *mockDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &mockPipelineLayout{label: desc.Label}, nil
}
func (d *mockDevice) DestroyPipelineLayout(_ hal.PipelineLayout) {}

func (d *mockDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	atomic.AddInt32(&d.samplersCreated, 1)
	return &mockSampler{label: desc.Label}, nil
}
func (d *mockDevice) DestroySampler(_ hal.Sampler) {}

// Implement remaining hal.Device interface methods as no-ops.
// These are not called in glshim tests.

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateTexture(_ *hal.TextureDescriptor) (hal.Texture, error) {
	return nil, nil
}
func (d *mockDevice) DestroyTexture(_ hal.Texture) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateTextureView(_ hal.Texture, _ *hal.TextureViewDescriptor) (hal.TextureView, error) {
	return nil, nil
}
func (d *mockDevice) DestroyTextureView(_ hal.TextureView) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateComputePipeline(_ *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	return nil, nil
}
func (d *mockDevice) DestroyComputePipeline(_ hal.ComputePipeline) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return nil, nil
}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) MapBuffer(_ hal.Buffer, _, _ uint64) (hal.BufferMapping, error) {
	return hal.BufferMapping{}, nil
}
func (d *mockDevice) UnmapBuffer(_ hal.Buffer) error { return nil }

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateQuerySet(_ *hal.QuerySetDescriptor) (hal.QuerySet, error) {
	return nil, nil
}
func (d *mockDevice) DestroyQuerySet(_ hal.QuerySet) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateRenderBundleEncoder(_ *hal.RenderBundleEncoderDescriptor) (hal.RenderBundleEncoder, error) {
	return nil, nil
}
func (d *mockDevice) DestroyRenderBundle(_ hal.RenderBundle) {}
func (d *mockDevice) FreeCommandBuffer(_ hal.CommandBuffer)  {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateFence() (hal.Fence, error) { return nil, nil }
func (d *mockDevice) DestroyFence(_ hal.Fence)        {}
func (d *mockDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	return true, nil
}
func (d *mockDevice) ResetFence(_ hal.Fence) error             { return nil }
func (d *mockDevice) GetFenceStatus(_ hal.Fence) (bool, error) { return true, nil }
func (d *mockDevice) WaitIdle() error                          { return nil }
func (d *mockDevice) Destroy()                                 {}

// mockBuffer is a test double for hal.Buffer.
type mockBuffer struct {
	size  uint64
	label string
}

func (b *mockBuffer) Destroy()              {}
func (b *mockBuffer) NativeHandle() uintptr { return uintptr(0) }

// mockShaderModule is a test double for hal.ShaderModule.
type mockShaderModule struct{ label string }

func (m *mockShaderModule) Destroy()              {}
func (m *mockShaderModule) NativeHandle() uintptr { return uintptr(0) }

// mockRenderPipeline is a test double for hal.RenderPipeline.
type mockRenderPipeline struct{ label string }

func (p *mockRenderPipeline) Destroy()              {}
func (p *mockRenderPipeline) NativeHandle() uintptr { return uintptr(0) }

// mockBindGroup is a test double for hal.BindGroup.
type mockBindGroup struct{ label string }

func (g *mockBindGroup) Destroy()              {}
func (g *mockBindGroup) NativeHandle() uintptr { return uintptr(0) }

// mockBindGroupLayout is a test double for hal.BindGroupLayout.
type mockBindGroupLayout struct{ label string }

func (l *mockBindGroupLayout) Destroy()              {}
func (l *mockBindGroupLayout) NativeHandle() uintptr { return uintptr(0) }

// mockPipelineLayout is a test double for hal.PipelineLayout.
type mockPipelineLayout struct{ label string }

func (l *mockPipelineLayout) Destroy()              {}
func (l *mockPipelineLayout) NativeHandle() uintptr { return uintptr(0) }

// mockSampler is a test double for hal.Sampler.
type mockSampler struct{ label string }

func (s *mockSampler) Destroy()              {}
func (s *mockSampler) NativeHandle() uintptr { return uintptr(0) }

// mockTextureView is a test double for hal.TextureView.
type mockTextureView struct{ label string }

func (v *mockTextureView) Destroy()              {}
func (v *mockTextureView) NativeHandle() uintptr { return uintptr(0) }

// mockWriter records buffer uploads.
type mockWriter struct {
	mu     sync.Mutex
	writes []bufferWrite
}

type bufferWrite struct {
	buffer hal.Buffer
	offset uint64
	data   []byte
}

func (w *mockWriter) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	w.writes = append(w.writes, bufferWrite{buffer: buffer, offset: offset, data: copied})
}

func (w *mockWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func (w *mockWriter) last() bufferWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes[len(w.writes)-1]
}

// mockPass records render pass commands.
type mockPass struct {
	pipelines     []hal.RenderPipeline
	bindGroups    []hal.BindGroup
	groupIndices  []uint32
	vertexBuffers []hal.Buffer
	draws         int
	lastVertices  uint32
}

func (p *mockPass) SetPipeline(pipeline hal.RenderPipeline) {
	p.pipelines = append(p.pipelines, pipeline)
}

func (p *mockPass) SetBindGroup(index uint32, group hal.BindGroup, _ []uint32) {
	p.bindGroups = append(p.bindGroups, group)
	p.groupIndices = append(p.groupIndices, index)
}

func (p *mockPass) SetVertexBuffer(_ uint32, buffer hal.Buffer, _ uint64) {
	p.vertexBuffers = append(p.vertexBuffers, buffer)
}

func (p *mockPass) SetViewport(_, _, _, _, _, _ float32) {}
func (p *mockPass) SetScissorRect(_, _, _, _ uint32)     {}

func (p *mockPass) Draw(vertexCount, _, _, _ uint32) {
	p.draws++
	p.lastVertices = vertexCount
}

// mockInvalidator counts invalidation callbacks.
type mockInvalidator struct {
	calls int32
}

func (i *mockInvalidator) InvalidateRenderState() {
	atomic.AddInt32(&i.calls, 1)
}

// =============================================================================
// IR Fixtures
// =============================================================================

func exprRef(h ir.ExpressionHandle) *ir.ExpressionHandle { return &h }

// testVertexModule builds the IR of a minimal vertex shader that emits
// a constant clip-space position.
func testVertexModule() *ir.Module {
	f32Scalar := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	posBinding := ir.Binding(ir.BuiltinBinding{Builtin: ir.BuiltinPosition})

	return &ir.Module{
		Types: []ir.Type{
			{Inner: f32Scalar},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32Scalar}},
		},
		EntryPoints: []ir.EntryPoint{
			{
				Name:  "vs_main",
				Stage: ir.StageVertex,
				Function: ir.Function{
					Name: "vs_main",
					Result: &ir.FunctionResult{
						Type:    1,
						Binding: &posBinding,
					},
					Expressions: []ir.Expression{
						{Kind: ir.Literal{Value: ir.LiteralF32(0.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(0.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(0.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(1.0)}},
						{Kind: ir.ExprCompose{Type: 1, Components: []ir.ExpressionHandle{0, 1, 2, 3}}},
					},
					Body: []ir.Statement{
						{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 5}}},
						{Kind: ir.StmtReturn{Value: exprRef(4)}},
					},
				},
			},
		},
	}
}

// testFragmentModule builds the IR of a minimal fragment shader that
// emits a constant color.
func testFragmentModule() *ir.Module {
	f32Scalar := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	outBinding := ir.Binding(ir.LocationBinding{Location: 0})

	return &ir.Module{
		Types: []ir.Type{
			{Inner: f32Scalar},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32Scalar}},
		},
		EntryPoints: []ir.EntryPoint{
			{
				Name:  "fs_main",
				Stage: ir.StageFragment,
				Function: ir.Function{
					Name: "fs_main",
					Result: &ir.FunctionResult{
						Type:    1,
						Binding: &outBinding,
					},
					Expressions: []ir.Expression{
						{Kind: ir.Literal{Value: ir.LiteralF32(1.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(0.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(0.0)}},
						{Kind: ir.Literal{Value: ir.LiteralF32(1.0)}},
						{Kind: ir.ExprCompose{Type: 1, Components: []ir.ExpressionHandle{0, 1, 2, 3}}},
					},
					Body: []ir.Statement{
						{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 5}}},
						{Kind: ir.StmtReturn{Value: exprRef(4)}},
					},
				},
			},
		},
	}
}

// testResourceModule builds a vertex module carrying one resource of
// every class in group 0 plus one resource in group 2.
func testResourceModule() *ir.Module {
	m := testVertexModule()
	f32Scalar := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}

	m.Types = append(m.Types,
		ir.Type{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32Scalar}},                // 2: uniform payload
		ir.Type{Inner: ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassSampled}},      // 3: texture
		ir.Type{Inner: ir.SamplerType{}},                                              // 4: sampler
		ir.Type{Inner: ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassStorage}},      // 5: storage image
	)
	m.GlobalVariables = []ir.GlobalVariable{
		{Name: "params", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 2},
		{Name: "tex", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 1}, Type: 3},
		{Name: "samp", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 2}, Type: 4},
		{Name: "img", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 3}, Type: 5},
		{Name: "other", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 2, Binding: 0}, Type: 2},
	}
	return m
}

// fullTargets is a color+depth attachment pair used across draw tests.
func fullTargets() RenderTargets {
	return RenderTargets{
		ColorFormat: gputypes.TextureFormatBGRA8Unorm,
		DepthFormat: gputypes.TextureFormatDepth24PlusStencil8,
		Width:       256,
		Height:      256,
		SampleCount: 1,
	}
}
