package glshim

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferWriter is the slice of the native queue the shim uploads
// uniform and vertex data through. hal.Queue satisfies it.
type BufferWriter interface {
	WriteBuffer(buffer hal.Buffer, offset uint64, data []byte)
}

// RenderPass is the subset of a native render pass encoder the shim
// issues commands through. The surrounding context owns pass begin and
// end; the shim only records state and draws into an open pass.
type RenderPass interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// StateInvalidator is notified after a utility draw so the surrounding
// context can mark the pipeline, bind group and vertex buffer state it
// tracks as unknown. The shim changes encoder state behind the
// context's back; without the callback the context would skip redundant
// state sets that are no longer redundant.
type StateInvalidator interface {
	InvalidateRenderState()
}

// RenderTargets describes the attachments of the pass a utility draw
// renders into.
type RenderTargets struct {
	// ColorFormat is the color attachment format, or
	// TextureFormatUndefined when the pass has no color attachment.
	ColorFormat gputypes.TextureFormat

	// DepthFormat is the depth/stencil attachment format, or
	// TextureFormatUndefined when absent.
	DepthFormat gputypes.TextureFormat

	// Width and Height are the attachment dimensions in pixels.
	Width  uint32
	Height uint32

	// SampleCount is the attachment sample count, 0 meaning 1.
	SampleCount uint32
}

// None reports whether the pass has no attachments at all. A draw into
// no attachments can have no effect and is skipped outright.
func (t RenderTargets) None() bool {
	return t.ColorFormat == gputypes.TextureFormatUndefined &&
		t.DepthFormat == gputypes.TextureFormatUndefined
}

// TextureSource is a texture view plus the metadata a blit needs.
// Width and Height are the dimensions in texels of the mip level the
// view selects; they normalize source rectangles. SrcYFlipped marks
// sources stored bottom-up relative to the destination convention.
type TextureSource struct {
	View        hal.TextureView
	Sampler     hal.Sampler
	Width       uint32
	Height      uint32
	SrcYFlipped bool
}

// SourceRect selects a texel region of a blit source, in the
// coordinates of the sampled mip level.
type SourceRect struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}
