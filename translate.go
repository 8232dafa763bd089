package glshim

import (
	"encoding/binary"

	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
)

// entryPointName is the fixed entry point name every translated module
// exports. The front end's original entry name is discarded so that
// module creation never has to guess which symbol to load.
const entryPointName = "main0"

// Version policy. Translated code never targets a language version
// below minLangVersion; when the device supports preferredLangVersion
// the translator uses it.
var (
	minLangVersion       = msl.Version{Major: 2, Minor: 1}
	preferredLangVersion = msl.Version{Major: 3, Minor: 0}
)

// Capabilities describes what the underlying device supports. Queried
// once at device creation and treated as immutable.
type Capabilities struct {
	// MaxLangVersion is the highest shading-language version the
	// device accepts.
	MaxLangVersion msl.Version
}

// DefaultCapabilities returns capabilities for a baseline device.
func DefaultCapabilities() Capabilities {
	return Capabilities{MaxLangVersion: preferredLangVersion}
}

// BindingPolicy fixes where descriptor-set-0 resources land in the
// flat per-stage slot namespaces of the native API. Resources keep
// their relative binding index and are offset by the per-class base.
type BindingPolicy struct {
	BufferBase  uint32
	TextureBase uint32
	SamplerBase uint32
}

// DefaultBindingPolicy reserves buffer slot 0 for internal use (the
// default uniform block) and starts application buffers above it.
// SamplerBase sits above the texture range so texture and sampler
// bindings stay disjoint inside the texture group.
func DefaultBindingPolicy() BindingPolicy {
	return BindingPolicy{BufferBase: 1, SamplerBase: 16}
}

// textureGroup is the descriptor group remapped images and samplers
// land in. Buffers keep group 0 alongside the default uniform block
// bindings; images and samplers move out so their flat slot numbers
// cannot collide with the block buffers. Callers supplying their own
// unremapped resources should use groups above textureGroup.
const textureGroup = 1

// SlotAssignment records the native slots a single resource occupies.
// A slot of -1 means the resource does not use that class. A sampled
// image occupies both a texture and a sampler slot.
type SlotAssignment struct {
	Buffer  int32
	Texture int32
	Sampler int32
}

// noSlot marks an unoccupied slot class.
const noSlot int32 = -1

// BindingMap records, for every remapped descriptor-set-0 resource,
// the native slots assigned to it, keyed by the resource's original
// group and binding. Resources in other groups are never remapped and
// never appear in the map.
type BindingMap map[ir.ResourceBinding]SlotAssignment

// TranslatedShader is the output of one stage translation: the native
// source text, the portable code words handed to module creation, the
// exported entry point and the slot assignments the caller needs to
// bind resources.
type TranslatedShader struct {
	Stage      Stage
	Source     string
	Code       []uint32
	EntryPoint string
	Bindings   BindingMap
	Version    msl.Version
}

// Translator converts front-end shader IR into native shader code.
// A Translator is immutable after construction and safe for concurrent
// use.
type Translator struct {
	policy BindingPolicy
	caps   Capabilities
}

// NewTranslator creates a translator with the given binding policy and
// device capabilities.
func NewTranslator(policy BindingPolicy, caps Capabilities) *Translator {
	return &Translator{policy: policy, caps: caps}
}

// langVersion picks the target shading-language version: the preferred
// version when the device supports it, otherwise the floor version.
// The policy only ever raises the version, never lowers it below the
// floor.
func (t *Translator) langVersion() msl.Version {
	if versionAtLeast(t.caps.MaxLangVersion, preferredLangVersion) {
		return preferredLangVersion
	}
	return minLangVersion
}

func versionAtLeast(v, min msl.Version) bool {
	if v.Major != min.Major {
		return v.Major > min.Major
	}
	return v.Minor >= min.Minor
}

// Translate converts the given IR module for one stage. The module
// must contain an entry point for that stage; its resources in group 0
// are remapped according to the binding policy, resources in any other
// group pass through untouched.
//
// The input module is not modified. Translation runs entirely on the
// CPU; a failure is reported as a *TranslationError and never reaches
// the native driver.
func (t *Translator) Translate(stage Stage, module *ir.Module) (*TranslatedShader, error) {
	if module == nil {
		return nil, &TranslationError{Stage: stage, Detail: "no IR module"}
	}

	clone, err := t.prepareModule(stage, module)
	if err != nil {
		return nil, err
	}
	bindings := t.remapBindings(clone)

	version := t.langVersion()
	source, _, err := msl.Compile(clone, msl.Options{LangVersion: version})
	if err != nil {
		return nil, &TranslationError{Stage: stage, Detail: "source generation", Err: err}
	}
	if source == "" {
		return nil, &TranslationError{Stage: stage, Detail: "translator produced empty output"}
	}

	raw, err := spirv.NewBackend(spirv.Options{Version: spirv.Version1_3}).Compile(clone)
	if err != nil {
		return nil, &TranslationError{Stage: stage, Detail: "code generation", Err: err}
	}
	code := packWords(raw)
	if len(code) == 0 {
		return nil, &TranslationError{Stage: stage, Detail: "translator produced empty output"}
	}

	Logger().Debug("shader translated",
		"stage", stage.String(),
		"version", version,
		"bindings", len(bindings),
		"words", len(code))

	return &TranslatedShader{
		Stage:      stage,
		Source:     source,
		Code:       code,
		EntryPoint: entryPointName,
		Bindings:   bindings,
		Version:    version,
	}, nil
}

// prepareModule copies module with exactly one entry point, the one
// for stage, renamed to the fixed exported name. Global variables are
// deep-copied because binding remap mutates them; types, constants and
// functions are shared.
func (t *Translator) prepareModule(stage Stage, module *ir.Module) (*ir.Module, error) {
	irStage := ir.StageVertex
	if stage == StageFragment {
		irStage = ir.StageFragment
	}

	var entry *ir.EntryPoint
	for i := range module.EntryPoints {
		if module.EntryPoints[i].Stage == irStage {
			entry = &module.EntryPoints[i]
			break
		}
	}
	if entry == nil {
		return nil, &TranslationError{Stage: stage, Detail: "module has no entry point for stage"}
	}

	globals := make([]ir.GlobalVariable, len(module.GlobalVariables))
	for i, g := range module.GlobalVariables {
		if g.Binding != nil {
			b := *g.Binding
			g.Binding = &b
		}
		globals[i] = g
	}

	ep := *entry
	ep.Name = entryPointName

	clone := *module
	clone.GlobalVariables = globals
	clone.EntryPoints = []ir.EntryPoint{ep}
	return &clone, nil
}

// remapBindings rewrites group-0 resource bindings to the flat slot
// namespaces and returns the assignment record. Buffers stay in group
// 0; images and samplers move to textureGroup. Only group 0 is the
// shim's to manage; other groups belong to the caller and keep their
// numbering.
func (t *Translator) remapBindings(module *ir.Module) BindingMap {
	bindings := make(BindingMap)
	for i := range module.GlobalVariables {
		g := &module.GlobalVariables[i]
		if g.Binding == nil || g.Binding.Group != 0 {
			continue
		}
		orig := *g.Binding
		slot := SlotAssignment{Buffer: noSlot, Texture: noSlot, Sampler: noSlot}

		switch inner := module.Types[g.Type].Inner.(type) {
		case ir.ImageType:
			if inner.Class == ir.ImageClassStorage {
				// Storage images live in the texture namespace but
				// carry no sampler.
				slot.Texture = int32(t.policy.TextureBase + orig.Binding)
				g.Binding.Group = textureGroup
				g.Binding.Binding = uint32(slot.Texture)
			} else {
				// A sampled or depth image is addressed through a
				// texture slot and the sampler slot paired with it.
				slot.Texture = int32(t.policy.TextureBase + orig.Binding)
				slot.Sampler = int32(t.policy.SamplerBase + orig.Binding)
				g.Binding.Group = textureGroup
				g.Binding.Binding = uint32(slot.Texture)
			}
		case ir.SamplerType:
			slot.Sampler = int32(t.policy.SamplerBase + orig.Binding)
			g.Binding.Group = textureGroup
			g.Binding.Binding = uint32(slot.Sampler)
		default:
			switch g.Space {
			case ir.SpaceUniform, ir.SpaceStorage:
				slot.Buffer = int32(t.policy.BufferBase + orig.Binding)
				g.Binding.Binding = uint32(slot.Buffer)
			default:
				continue
			}
		}
		bindings[orig] = slot
	}
	return bindings
}

// packWords reassembles little-endian code bytes into 32-bit words.
// A trailing partial word indicates a corrupt stream and is an
// internal defect of the code generator.
func packWords(raw []byte) []uint32 {
	if len(raw)%4 != 0 {
		internalf("code stream of %d bytes is not word aligned", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words
}
