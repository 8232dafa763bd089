package glshim

import (
	"encoding/binary"
	"hash"
	"hash/fnv"

	"github.com/gogpu/wgpu/hal"
)

// ShaderFunction is a compiled native shader module plus the metadata
// pipeline assembly needs: the fixed entry point and a hash of the
// code the module was built from, used as the module's identity in
// pipeline keys.
type ShaderFunction struct {
	Stage      Stage
	Module     hal.ShaderModule
	EntryPoint string
	CodeHash   uint64
}

// ModuleBuilder turns translated shader code into native modules on
// one device. It holds no mutable state and is safe for concurrent
// use.
type ModuleBuilder struct {
	device hal.Device
}

// NewModuleBuilder creates a builder for device.
func NewModuleBuilder(device hal.Device) (*ModuleBuilder, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &ModuleBuilder{device: device}, nil
}

// Build creates a native module from a translated shader.
//
// Build never reports success with a nil module: when the driver
// rejects the code, or hands back nothing without an explanation, the
// result is a *CompileError whose Diagnostics carry the driver's text.
func (b *ModuleBuilder) Build(shader *TranslatedShader) (*ShaderFunction, error) {
	if shader == nil {
		internalf("module build with nil translated shader")
	}
	if len(shader.Code) == 0 {
		internalf("module build with empty code for %s stage", shader.Stage)
	}

	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "glshim:" + shader.Stage.String(),
		Source: hal.ShaderSource{
			SPIRV: shader.Code,
		},
	})
	if err != nil {
		return nil, &CompileError{Stage: shader.Stage, Diagnostics: err.Error()}
	}
	if module == nil {
		return nil, &CompileError{Stage: shader.Stage, Diagnostics: "driver returned no module and no diagnostics"}
	}

	fn := &ShaderFunction{
		Stage:      shader.Stage,
		Module:     module,
		EntryPoint: shader.EntryPoint,
		CodeHash:   hashCode(shader.Code),
	}
	Logger().Debug("shader module built", "stage", shader.Stage.String(), "hash", fn.CodeHash)
	return fn, nil
}

// Destroy releases the native module. Safe to call with nil or an
// already-destroyed function.
func (b *ModuleBuilder) Destroy(fn *ShaderFunction) {
	if fn == nil || fn.Module == nil {
		return
	}
	b.device.DestroyShaderModule(fn.Module)
	fn.Module = nil
}

// hashCode computes an FNV-1a hash of the code words.
func hashCode(code []uint32) uint64 {
	h := fnv.New64a()
	for _, w := range code {
		hashWriteUint32(h, w)
	}
	return h.Sum64()
}

// hashWriteUint32 writes a uint32 to the hash.
func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}
