package glshim

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// Default uniform block bindings inside bind group 0. One buffer per
// stage; a stage with an empty block gets no binding.
const (
	vertexBlockBinding   = 0
	fragmentBlockBinding = 1
)

// StageShader is one stage's front-end output handed to Link: the
// shader IR plus the reflected default-block uniform declarations in
// declaration order.
type StageShader struct {
	Module   *ir.Module
	Uniforms []UniformDecl
}

// LinkInput carries both stages into a link. The vertex stage is
// required; the fragment stage may be empty for depth-only programs.
type LinkInput struct {
	Vertex   LinkedStage
	Fragment LinkedStage
}

// LinkedStage aliases StageShader for readability at the Link call
// site.
type LinkedStage = StageShader

// uniformInfo is one row of the program's location table: the merged
// declaration, the array element the location addresses (0 for
// non-arrays and array bases), and the per-stage block entries. A
// stage that does not use the uniform has Offset == OffsetUnused in
// its slot.
type uniformInfo struct {
	decl    UniformDecl
	first   int
	entries [numStages]LayoutEntry
}

// stageState holds everything a linked program keeps per stage.
type stageState struct {
	shader *TranslatedShader
	fn     *ShaderFunction
	block  *Block
	buffer hal.Buffer
}

// sampledImage records the native slots and stage visibility of one
// group-0 sampled image declared by the linked shaders.
type sampledImage struct {
	slots      SlotAssignment
	visibility gputypes.ShaderStage
}

// textureBinding is the texture view and sampler currently bound to a
// sampled image.
type textureBinding struct {
	view    hal.TextureView
	sampler hal.Sampler
}

// Program owns the full lifecycle of one linked shader pair: the
// translated and compiled stage modules, the default uniform blocks
// with their device buffers, the layouts shared by every pipeline
// variant, and a pipeline cache over the variants.
//
// All methods are safe for concurrent use. Draw-path methods take the
// program lock for their whole duration, so two goroutines cannot
// interleave uniform writes with a draw setup.
type Program struct {
	mu         sync.Mutex
	device     hal.Device
	translator *Translator
	builder    *ModuleBuilder
	pipelines  *RenderPipelineCache

	linked    bool
	stages    [numStages]stageState
	uniforms  []uniformInfo
	locations map[string]int32

	bindGroupLayout hal.BindGroupLayout
	pipelineLayout  hal.PipelineLayout
	bindGroup       hal.BindGroup

	// Texture state. The bind group is rebuilt lazily at the next draw
	// after any binding changes; replaced groups are retired until the
	// next reset because the GPU may still reference them.
	textureSlots     map[uint32]sampledImage
	textures         map[uint32]textureBinding
	texturesDirty    bool
	textureLayoutBG  hal.BindGroupLayout
	textureBindGroup hal.BindGroup
	retiredGroups    []hal.BindGroup
}

// NewProgram creates an unlinked program on device.
func NewProgram(device hal.Device, translator *Translator) (*Program, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if translator == nil {
		translator = NewTranslator(DefaultBindingPolicy(), DefaultCapabilities())
	}
	builder, err := NewModuleBuilder(device)
	if err != nil {
		return nil, err
	}
	pipelines, err := NewRenderPipelineCache(device, "program")
	if err != nil {
		return nil, err
	}
	return &Program{
		device:     device,
		translator: translator,
		builder:    builder,
		pipelines:  pipelines,
	}, nil
}

// Link translates, compiles and wires both stages. On success the
// previous link, if any, is fully replaced and every cached pipeline
// variant is dropped. On failure the program ends up unlinked with no
// leftover state from either the failed or the previous link.
func (p *Program) Link(input LinkInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The old link is gone either way.
	p.resetLocked()

	if input.Vertex.Module == nil {
		return &TranslationError{Stage: StageVertex, Detail: "no IR module"}
	}
	if err := checkSharedUniforms(input); err != nil {
		return err
	}

	if err := p.linkLocked(input); err != nil {
		p.resetLocked()
		return err
	}

	p.linked = true
	Logger().Info("program linked",
		"uniforms", len(p.uniforms),
		"vertexBlock", p.stages[StageVertex].block.Size(),
		"fragmentBlock", p.stages[StageFragment].block.Size())
	return nil
}

// linkLocked performs the fallible part of Link. The caller resets the
// program when it returns an error, so partial state left behind here
// is cleaned up.
func (p *Program) linkLocked(input LinkInput) error {
	inputs := [numStages]StageShader{StageVertex: input.Vertex, StageFragment: input.Fragment}

	for _, stage := range allStages {
		in := inputs[stage]
		st := &p.stages[stage]

		if in.Module != nil {
			shader, err := p.translator.Translate(stage, in.Module)
			if err != nil {
				return err
			}
			fn, err := p.builder.Build(shader)
			if err != nil {
				return err
			}
			st.shader = shader
			st.fn = fn
		}

		layout := EncodeBlockLayout(in.Uniforms)
		st.block = NewBlock(layout)
		if layout.Size() > 0 {
			buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
				Label: "glshim:" + stage.String() + ":uniforms",
				Size:  uint64(layout.Size()),
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("%w: %s uniform block (%d bytes): %v",
					ErrOutOfMemory, stage, layout.Size(), err)
			}
			st.buffer = buf
			// The device buffer holds garbage until the first commit.
			st.block.dirty = true
		}
	}

	p.buildLocationTable(input)
	p.collectSampledImages()
	return p.createLayoutsLocked()
}

// collectSampledImages merges the sampled-image assignments of both
// stages into the binding-indexed map SetupDraw binds textures from.
func (p *Program) collectSampledImages() {
	p.textureSlots = make(map[uint32]sampledImage)
	p.textures = make(map[uint32]textureBinding)
	visibility := [numStages]gputypes.ShaderStage{
		StageVertex:   gputypes.ShaderStageVertex,
		StageFragment: gputypes.ShaderStageFragment,
	}

	for _, stage := range allStages {
		st := &p.stages[stage]
		if st.shader == nil {
			continue
		}
		for key, slot := range st.shader.Bindings {
			if slot.Texture < 0 || slot.Sampler < 0 {
				continue
			}
			img := p.textureSlots[key.Binding]
			img.slots = slot
			img.visibility |= visibility[stage]
			p.textureSlots[key.Binding] = img
		}
	}
}

// checkSharedUniforms rejects links where the stages declare the same
// uniform name with different types or array lengths.
func checkSharedUniforms(input LinkInput) error {
	byName := make(map[string]UniformDecl, len(input.Vertex.Uniforms))
	for _, d := range input.Vertex.Uniforms {
		byName[d.Name] = d
	}
	for _, d := range input.Fragment.Uniforms {
		v, ok := byName[d.Name]
		if !ok {
			continue
		}
		if v.Type != d.Type || v.ArrayLen != d.ArrayLen {
			return &TranslationError{
				Stage:  StageFragment,
				Detail: fmt.Sprintf("uniform %q declared with mismatched types across stages", d.Name),
			}
		}
	}
	return nil
}

// buildLocationTable merges both stages' declarations into the
// location-indexed table: vertex uniforms first in declaration order,
// then fragment uniforms not already present. Arrays occupy
// consecutive locations, one per element, and the bracketed element
// names resolve to them, so a write through location base+i starts at
// element i.
func (p *Program) buildLocationTable(input LinkInput) {
	vertexLayout := p.stages[StageVertex].block.Layout()
	fragmentLayout := p.stages[StageFragment].block.Layout()

	p.uniforms = p.uniforms[:0]
	p.locations = make(map[string]int32)

	add := func(d UniformDecl) {
		if _, seen := p.locations[d.Name]; seen {
			return
		}
		base := int32(len(p.uniforms))
		p.locations[d.Name] = base
		for i := 0; i < d.elemCount(); i++ {
			p.locations[fmt.Sprintf("%s[%d]", d.Name, i)] = base + int32(i)
			info := uniformInfo{decl: d, first: i}
			info.entries[StageVertex] = vertexLayout.Lookup(d.Name)
			info.entries[StageFragment] = fragmentLayout.Lookup(d.Name)
			p.uniforms = append(p.uniforms, info)
		}
	}
	for _, d := range input.Vertex.Uniforms {
		add(d)
	}
	for _, d := range input.Fragment.Uniforms {
		add(d)
	}
}

// createLayoutsLocked builds the bind group layout, pipeline layout
// and bind group covering the per-stage uniform block buffers.
func (p *Program) createLayoutsLocked() error {
	var layoutEntries []gputypes.BindGroupLayoutEntry
	var groupEntries []gputypes.BindGroupEntry

	addBlock := func(binding uint32, visibility gputypes.ShaderStage, st *stageState) {
		if st.buffer == nil {
			return
		}
		layoutEntries = append(layoutEntries, gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: visibility,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(st.block.Size()),
			},
		})
		groupEntries = append(groupEntries, gputypes.BindGroupEntry{
			Binding: binding,
			Resource: gputypes.BufferBinding{
				Buffer: st.buffer.NativeHandle(),
				Offset: 0,
				Size:   uint64(st.block.Size()),
			},
		})
	}
	addBlock(vertexBlockBinding, gputypes.ShaderStageVertex, &p.stages[StageVertex])
	addBlock(fragmentBlockBinding, gputypes.ShaderStageFragment, &p.stages[StageFragment])

	bgl, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "glshim:program:uniforms",
		Entries: layoutEntries,
	})
	if err != nil {
		return fmt.Errorf("glshim: create bind group layout: %w", err)
	}
	p.bindGroupLayout = bgl
	groupLayouts := []hal.BindGroupLayout{bgl}

	if len(p.textureSlots) > 0 {
		var texEntries []gputypes.BindGroupLayoutEntry
		for _, img := range p.textureSlots {
			texEntries = append(texEntries,
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(img.slots.Texture),
					Visibility: img.visibility,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				},
				gputypes.BindGroupLayoutEntry{
					Binding:    uint32(img.slots.Sampler),
					Visibility: img.visibility,
					Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
				})
		}
		tbgl, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   "glshim:program:textures",
			Entries: texEntries,
		})
		if err != nil {
			return fmt.Errorf("glshim: create texture bind group layout: %w", err)
		}
		p.textureLayoutBG = tbgl
		groupLayouts = append(groupLayouts, tbgl)
	}

	pl, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "glshim:program",
		BindGroupLayouts: groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("glshim: create pipeline layout: %w", err)
	}
	p.pipelineLayout = pl

	if len(groupEntries) > 0 {
		bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "glshim:program:uniforms",
			Layout:  bgl,
			Entries: groupEntries,
		})
		if err != nil {
			return fmt.Errorf("glshim: create bind group: %w", err)
		}
		p.bindGroup = bg
	}
	return nil
}

// resetLocked tears down all linked state: modules, buffers, layouts
// and every cached pipeline variant.
func (p *Program) resetLocked() {
	p.pipelines.Clear()

	for _, stage := range allStages {
		st := &p.stages[stage]
		p.builder.Destroy(st.fn)
		if st.buffer != nil {
			p.device.DestroyBuffer(st.buffer)
		}
		*st = stageState{}
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.textureBindGroup != nil {
		p.device.DestroyBindGroup(p.textureBindGroup)
		p.textureBindGroup = nil
	}
	for _, bg := range p.retiredGroups {
		p.device.DestroyBindGroup(bg)
	}
	p.retiredGroups = nil
	if p.textureLayoutBG != nil {
		p.device.DestroyBindGroupLayout(p.textureLayoutBG)
		p.textureLayoutBG = nil
	}
	p.textureSlots = nil
	p.textures = nil
	p.texturesDirty = false
	if p.pipelineLayout != nil {
		p.device.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bindGroupLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindGroupLayout)
		p.bindGroupLayout = nil
	}
	p.uniforms = nil
	p.locations = nil
	p.linked = false
}

// IsLinked reports whether the program has a successful link.
func (p *Program) IsLinked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linked
}

// UniformLocation returns the location of a uniform by name, or -1
// when no stage declares it. Passing -1 to any uniform setter is a
// silent no-op, so lookups of optional uniforms need no error check.
func (p *Program) UniformLocation(name string) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	return -1
}

// TranslatedSource returns the generated native source for one stage,
// or "" when the stage is absent. Intended for debugging and error
// reports.
func (p *Program) TranslatedSource(stage Stage) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st := p.stages[stage]; st.shader != nil {
		return st.shader.Source
	}
	return ""
}

// Bindings returns the resource slot assignments for one stage, or nil
// when the stage is absent. The caller uses them to bind textures and
// buffers beyond the default uniform block.
func (p *Program) Bindings(stage Stage) BindingMap {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st := p.stages[stage]; st.shader != nil {
		return st.shader.Bindings
	}
	return nil
}

// BindTexture associates a texture view and sampler with the sampled
// image the shaders declare at binding in group 0. The association
// takes effect at the next SetupDraw, which rebuilds the texture bind
// group when any binding changed since the last draw.
func (p *Program) BindTexture(binding uint32, view hal.TextureView, sampler hal.Sampler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.linked {
		return ErrNotLinked
	}
	if _, ok := p.textureSlots[binding]; !ok {
		return fmt.Errorf("glshim: no sampled image at binding %d", binding)
	}
	if view == nil || sampler == nil {
		return fmt.Errorf("glshim: binding %d needs a texture view and a sampler", binding)
	}

	tb := textureBinding{view: view, sampler: sampler}
	if p.textures[binding] == tb {
		return nil
	}
	p.textures[binding] = tb
	p.texturesDirty = true
	return nil
}

// rebuildTextureGroupLocked recreates the texture bind group from the
// current bindings. The replaced group is retired rather than
// destroyed because in-flight draws may still reference it.
func (p *Program) rebuildTextureGroupLocked() error {
	entries := make([]gputypes.BindGroupEntry, 0, 2*len(p.textureSlots))
	for binding, img := range p.textureSlots {
		tb, ok := p.textures[binding]
		if !ok {
			return fmt.Errorf("glshim: no texture bound for sampled image at binding %d", binding)
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding: uint32(img.slots.Texture),
				Resource: gputypes.TextureViewBinding{
					TextureView: tb.view.NativeHandle(),
				},
			},
			gputypes.BindGroupEntry{
				Binding: uint32(img.slots.Sampler),
				Resource: gputypes.SamplerBinding{
					Sampler: tb.sampler.NativeHandle(),
				},
			})
	}

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "glshim:program:textures",
		Layout:  p.textureLayoutBG,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("glshim: create texture bind group: %w", err)
	}
	if p.textureBindGroup != nil {
		p.retiredGroups = append(p.retiredGroups, p.textureBindGroup)
	}
	p.textureBindGroup = bg
	p.texturesDirty = false
	return nil
}

// SetUniformFloats stores float elements at location. The value slice
// holds tightly packed components; its length determines how many
// array elements are written, clamped to the declared count.
func (p *Program) SetUniformFloats(location int32, values []float32) error {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = math.Float32bits(v)
	}
	return p.setUniform(location, words, true)
}

// SetUniformInts stores integer or boolean elements at location.
// Boolean uniforms coerce every nonzero component to 1.
func (p *Program) SetUniformInts(location int32, values []int32) error {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = uint32(v)
	}
	return p.setUniform(location, words, false)
}

// SetUniformUints stores unsigned integer elements at location.
func (p *Program) SetUniformUints(location int32, values []uint32) error {
	words := make([]uint32, len(values))
	copy(words, values)
	return p.setUniform(location, words, false)
}

// setUniform writes packed component words into every stage block that
// declares the uniform, starting at the array element the location
// addresses, and marks those stages dirty. Boolean targets fed from
// float sources coerce by float value first, so both zero bit patterns
// (0.0 and -0.0) store the false sentinel.
func (p *Program) setUniform(location int32, words []uint32, fromFloats bool) error {
	if location == -1 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.linked {
		return ErrNotLinked
	}
	if location < 0 || int(location) >= len(p.uniforms) {
		return fmt.Errorf("glshim: uniform location %d out of range", location)
	}
	info := &p.uniforms[location]

	if fromFloats && info.decl.Type.IsBool() {
		for i, w := range words {
			if math.Float32frombits(w) != 0 {
				words[i] = 1
			} else {
				words[i] = 0
			}
		}
	}

	elemWords := info.decl.Type.Components() * info.decl.Type.Columns()
	count := len(words) / elemWords
	if count == 0 {
		return nil
	}
	if max := info.decl.elemCount() - info.first; count > max {
		count = max
	}

	for _, stage := range allStages {
		p.stages[stage].block.Write(info.entries[stage], info.decl.Type, info.first, count, words)
	}
	return nil
}

// GetUniformFloats reads back count elements from location as floats.
// The value returned is what the next draw will see, whether or not it
// has been committed to the device yet.
func (p *Program) GetUniformFloats(location int32, count int) ([]float32, error) {
	words, err := p.getUniform(location, count)
	if err != nil || words == nil {
		return nil, err
	}
	values := make([]float32, len(words))
	for i, w := range words {
		values[i] = math.Float32frombits(w)
	}
	return values, nil
}

// GetUniformInts reads back count elements from location as integers.
func (p *Program) GetUniformInts(location int32, count int) ([]int32, error) {
	words, err := p.getUniform(location, count)
	if err != nil || words == nil {
		return nil, err
	}
	values := make([]int32, len(words))
	for i, w := range words {
		values[i] = int32(w)
	}
	return values, nil
}

// getUniform reads packed component words from the first stage that
// declares the uniform.
func (p *Program) getUniform(location int32, count int) ([]uint32, error) {
	if location == -1 {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.linked {
		return nil, ErrNotLinked
	}
	if location < 0 || int(location) >= len(p.uniforms) {
		return nil, fmt.Errorf("glshim: uniform location %d out of range", location)
	}
	info := &p.uniforms[location]

	if max := info.decl.elemCount() - info.first; count > max || count <= 0 {
		count = max
	}
	elemWords := info.decl.Type.Components() * info.decl.Type.Columns()
	words := make([]uint32, count*elemWords)

	for _, stage := range allStages {
		if info.entries[stage].Offset != OffsetUnused {
			p.stages[stage].block.Read(info.entries[stage], info.decl.Type, info.first, count, words)
			return words, nil
		}
	}
	// Declared but unused by every stage: the stored value is
	// unobservable, report zeros.
	return words, nil
}

// CommitUniforms flushes every dirty stage block to its device buffer.
// Clean stages transfer nothing. The dirty flag is cleared only after
// the data has been handed to the queue.
func (p *Program) CommitUniforms(queue BufferWriter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitUniformsLocked(queue)
}

func (p *Program) commitUniformsLocked(queue BufferWriter) error {
	if !p.linked {
		return ErrNotLinked
	}
	dirty := p.dirtyStagesLocked()
	if !dirty.Any() {
		return nil
	}
	for _, stage := range allStages {
		if !dirty.Has(stage) {
			continue
		}
		st := &p.stages[stage]
		queue.WriteBuffer(st.buffer, 0, st.block.Bytes())
		st.block.MarkClean()
	}
	return nil
}

// dirtyStagesLocked reports which stages hold uncommitted uniform
// data. A stage without a device buffer has nothing to flush and is
// never dirty.
func (p *Program) dirtyStagesLocked() StageMask {
	var mask StageMask
	for _, stage := range allStages {
		st := &p.stages[stage]
		if st.buffer != nil && st.block.Dirty() {
			mask = mask.Set(stage)
		}
	}
	return mask
}

// DrawState is the fixed-function state a draw is issued under,
// everything beyond the program's own shaders that selects a pipeline
// variant.
type DrawState struct {
	Targets       RenderTargets
	VertexBuffers []gputypes.VertexBufferLayout
	Topology      gputypes.PrimitiveTopology
	FrontFace     gputypes.FrontFace
	CullMode      gputypes.CullMode

	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction

	Blend     *gputypes.BlendState
	WriteMask gputypes.ColorWriteMask

	// ForceResourceRebind rebuilds the texture bind group even when no
	// binding changed, for callers that invalidated resource state
	// outside the program's view.
	ForceResourceRebind bool
}

// SetupDraw prepares the pass for a draw with this program: flushes
// dirty uniforms, resolves the pipeline variant for state through the
// cache, and records the pipeline and uniform bind group on the pass.
// The caller then binds vertex data and issues the draw itself.
func (p *Program) SetupDraw(pass RenderPass, queue BufferWriter, state *DrawState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.linked {
		return ErrNotLinked
	}
	if err := p.commitUniformsLocked(queue); err != nil {
		return err
	}

	desc := &PipelineDesc{
		Label:         "glshim:program",
		Vertex:        p.stages[StageVertex].fn,
		Fragment:      p.stages[StageFragment].fn,
		Layout:        p.pipelineLayout,
		VertexBuffers: state.VertexBuffers,
		Topology:      state.Topology,
		FrontFace:     state.FrontFace,
		CullMode:      state.CullMode,
		ColorFormat:   state.Targets.ColorFormat,
		DepthFormat:   state.Targets.DepthFormat,

		DepthWriteEnabled: state.DepthWriteEnabled,
		DepthCompare:      state.DepthCompare,
		Blend:             state.Blend,
		WriteMask:         state.WriteMask,
		SampleCount:       state.Targets.SampleCount,
	}
	pipeline, err := p.pipelines.GetOrCreate(desc)
	if err != nil {
		return err
	}

	pass.SetPipeline(pipeline.Raw())
	if p.bindGroup != nil {
		pass.SetBindGroup(0, p.bindGroup, nil)
	}
	if p.textureLayoutBG != nil {
		if state.ForceResourceRebind || p.texturesDirty || p.textureBindGroup == nil {
			if err := p.rebuildTextureGroupLocked(); err != nil {
				return err
			}
		}
		pass.SetBindGroup(textureGroup, p.textureBindGroup, nil)
	}
	return nil
}

// PipelineStats returns the program's pipeline cache hit and miss
// counts.
func (p *Program) PipelineStats() (hits, misses uint64) {
	return p.pipelines.Stats()
}

// BinarySave would serialize the linked program for reuse across
// processes. Translated code is device and driver specific, so the
// shim does not model a binary cache and always refuses.
func (p *Program) BinarySave() ([]byte, error) {
	return nil, ErrUnsupported
}

// BinaryLoad is the counterpart of BinarySave and always refuses.
func (p *Program) BinaryLoad([]byte) error {
	return ErrUnsupported
}

// Destroy releases everything the program owns, including cached
// pipelines. The program can be relinked afterwards.
func (p *Program) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pipelines.DestroyAll()
	p.resetLocked()
}
