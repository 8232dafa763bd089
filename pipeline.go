package glshim

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PipelineKey identifies one render pipeline variant. Two descriptors
// with equal keys are the same variant; the key is a plain comparable
// struct so equality is exact, not probabilistic.
type PipelineKey struct {
	VertexHash        uint64
	FragmentHash      uint64
	VertexLayoutHash  uint64
	Topology          gputypes.PrimitiveTopology
	FrontFace         gputypes.FrontFace
	CullMode          gputypes.CullMode
	ColorFormat       gputypes.TextureFormat
	DepthFormat       gputypes.TextureFormat
	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction
	BlendEnabled      bool
	Blend             gputypes.BlendState
	WriteMask         gputypes.ColorWriteMask
	SampleCount       uint32
}

// PipelineDesc describes a render pipeline variant to create. The
// Layout is not part of the variant identity: it is derived from the
// same program the shader functions come from.
type PipelineDesc struct {
	Label    string
	Vertex   *ShaderFunction
	Fragment *ShaderFunction
	Layout   hal.PipelineLayout

	VertexBuffers []gputypes.VertexBufferLayout
	Topology      gputypes.PrimitiveTopology
	FrontFace     gputypes.FrontFace
	CullMode      gputypes.CullMode

	ColorFormat gputypes.TextureFormat
	// DepthFormat is TextureFormatUndefined when the pass has no
	// depth/stencil attachment.
	DepthFormat       gputypes.TextureFormat
	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction

	Blend       *gputypes.BlendState
	WriteMask   gputypes.ColorWriteMask
	SampleCount uint32
}

// Key derives the cache key for the descriptor. Shader modules are
// represented by their code hashes, vertex layouts by a hash of their
// strides, step modes and attributes.
func (d *PipelineDesc) Key() PipelineKey {
	key := PipelineKey{
		VertexLayoutHash:  hashVertexLayouts(d.VertexBuffers),
		Topology:          d.Topology,
		FrontFace:         d.FrontFace,
		CullMode:          d.CullMode,
		ColorFormat:       d.ColorFormat,
		DepthFormat:       d.DepthFormat,
		DepthWriteEnabled: d.DepthWriteEnabled,
		DepthCompare:      d.DepthCompare,
		WriteMask:         d.WriteMask,
		SampleCount:       d.SampleCount,
	}
	if d.Vertex != nil {
		key.VertexHash = d.Vertex.CodeHash
	}
	if d.Fragment != nil {
		key.FragmentHash = d.Fragment.CodeHash
	}
	if d.Blend != nil {
		key.BlendEnabled = true
		key.Blend = *d.Blend
	}
	return key
}

// hashVertexLayouts computes an FNV-1a hash over the vertex buffer
// layouts, which are slice-valued and cannot live in the key directly.
func hashVertexLayouts(layouts []gputypes.VertexBufferLayout) uint64 {
	h := fnv.New64a()
	hashWriteUint32(h, uint32(len(layouts)))
	for i := range layouts {
		l := &layouts[i]
		hashWriteUint32(h, uint32(l.ArrayStride))
		hashWriteUint32(h, uint32(l.StepMode))
		hashWriteUint32(h, uint32(len(l.Attributes)))
		for j := range l.Attributes {
			a := &l.Attributes[j]
			hashWriteUint32(h, a.ShaderLocation)
			hashWriteUint32(h, uint32(a.Format))
			hashWriteUint32(h, uint32(a.Offset))
		}
	}
	return h.Sum64()
}

// RenderPipeline is a cached native pipeline together with the key it
// was created under.
type RenderPipeline struct {
	key   PipelineKey
	label string
	raw   hal.RenderPipeline
}

// Raw returns the underlying native pipeline.
func (p *RenderPipeline) Raw() hal.RenderPipeline { return p.raw }

// Label returns the pipeline's debug label.
func (p *RenderPipeline) Label() string { return p.label }

// RenderPipelineCache caches render pipelines by variant key.
//
// Pipeline creation involves native shader compilation and validation,
// so the cache holds every variant it has ever created: entries are
// only dropped by Clear or DestroyAll, never evicted. For any key the
// cache hands out at most one pipeline object, which concurrent
// callers may share.
//
// Thread Safety:
// RenderPipelineCache is safe for concurrent use. It uses RWMutex with
// double-check locking for efficient reads and safe writes.
type RenderPipelineCache struct {
	mu     sync.RWMutex
	device hal.Device
	label  string

	pipelines map[PipelineKey]*RenderPipeline

	// hits and misses count lookups (atomic for lock-free reads).
	hits   uint64
	misses uint64
}

// NewRenderPipelineCache creates an empty cache bound to device. The
// label prefixes the debug labels of pipelines the cache creates.
func NewRenderPipelineCache(device hal.Device, label string) (*RenderPipelineCache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &RenderPipelineCache{
		device:    device,
		label:     label,
		pipelines: make(map[PipelineKey]*RenderPipeline),
	}, nil
}

// GetOrCreate returns the cached pipeline for the descriptor's key, or
// creates one on a miss.
//
// Fast path takes a read lock; the slow path re-checks under the write
// lock so concurrent misses for the same key still produce a single
// pipeline. A failed creation is not cached: the next request for the
// same key retries.
func (c *RenderPipelineCache) GetOrCreate(desc *PipelineDesc) (*RenderPipeline, error) {
	if desc == nil {
		return nil, fmt.Errorf("glshim: pipeline descriptor is nil")
	}
	key := desc.Key()

	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[key]; ok {
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}

	p, err := c.create(key, desc)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	atomic.AddUint64(&c.misses, 1)

	Logger().Debug("render pipeline created", "cache", c.label, "size", len(c.pipelines))
	return p, nil
}

// create builds the native pipeline for desc.
func (c *RenderPipelineCache) create(key PipelineKey, desc *PipelineDesc) (*RenderPipeline, error) {
	if desc.Vertex == nil || desc.Vertex.Module == nil {
		return nil, fmt.Errorf("glshim: pipeline %q: vertex function is nil", desc.Label)
	}

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout,
		Vertex: hal.VertexState{
			Module:     desc.Vertex.Module,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
	}

	if desc.Fragment != nil && desc.Fragment.Module != nil {
		halDesc.Fragment = &hal.FragmentState{
			Module:     desc.Fragment.Module,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.ColorFormat,
				Blend:     desc.Blend,
				WriteMask: desc.WriteMask,
			}},
		}
	}

	if desc.DepthFormat != gputypes.TextureFormatUndefined {
		halDesc.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthFormat,
			DepthWriteEnabled: desc.DepthWriteEnabled,
			DepthCompare:      desc.DepthCompare,
			StencilFront:      passthroughStencil(),
			StencilBack:       passthroughStencil(),
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}

	raw, err := c.device.CreateRenderPipeline(halDesc)
	if err != nil {
		return nil, fmt.Errorf("glshim: create render pipeline %q: %w", desc.Label, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("glshim: create render pipeline %q: driver returned no pipeline", desc.Label)
	}

	return &RenderPipeline{key: key, label: desc.Label, raw: raw}, nil
}

func passthroughStencil() hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
}

// Stats returns the number of cache hits and misses.
func (c *RenderPipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// HitRate returns the cache hit rate from 0.0 to 1.0, or 0.0 when no
// lookups have happened.
func (c *RenderPipelineCache) HitRate() float64 {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// Size returns the number of cached pipelines.
func (c *RenderPipelineCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// Clear drops all cached pipelines and resets statistics without
// destroying the native objects. Used when the shader functions the
// entries were built from are being replaced and callers may still
// hold references to handed-out pipelines.
func (c *RenderPipelineCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pipelines = make(map[PipelineKey]*RenderPipeline)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
}

// DestroyAll destroys every cached pipeline and clears the cache.
func (c *RenderPipelineCache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pipelines {
		if p != nil && p.raw != nil {
			c.device.DestroyRenderPipeline(p.raw)
			p.raw = nil
		}
	}
	c.pipelines = make(map[PipelineKey]*RenderPipeline)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
}
