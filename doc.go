// Package glshim implements the shader-translation and pipeline-state
// core of a GL-style compatibility layer on top of gogpu/wgpu.
//
// The package converts intermediate shader representations (naga IR)
// produced by an external front end into native shader modules,
// computes std140-style layouts for default-block uniform data, tracks
// dirty uniform state between draws, and memoizes compiled render
// pipelines keyed by the fixed-function state in effect.
//
// # Architecture
//
// A link request flows through four stages:
//
//	EncodeBlockLayout -> Block (sizing) -> Translator -> ModuleBuilder
//
// and registers the resulting shader functions with a per-program
// RenderPipelineCache. A draw request resolves a pipeline from the
// cache, commits dirty uniform data through the HAL queue, and issues
// commands on a caller-supplied RenderPass.
//
// DrawUtils covers the clear/blit paths that the target API cannot
// express with fixed-function operations alone: both are rendered as
// full-screen quad draws with small transient uniform payloads.
//
// # Concurrency
//
// All operations on a Program execute on the goroutine that owns the
// rendering context. RenderPipelineCache is nonetheless safe for
// concurrent use so that shared caches survive re-entrant population.
//
// # Logging
//
// glshim produces no log output by default. Call SetLogger to enable
// structured logging via log/slog.
package glshim
