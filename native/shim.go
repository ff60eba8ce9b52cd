package native

import (
	"github.com/tetratelabs/wazero/api"
)

// MemoryExport is the name under which the shim exports its memory.
const MemoryExport = "memory"

// ShimBuilder builds the guest module the host functions run against.
//
// The module imports every function of the catalog from the host module,
// defines one memory and exports it together with a trampoline per
// function. A trampoline forwards its parameters to the import and returns
// its results, so the host functions see the shim's memory as the caller's.
type ShimBuilder struct {
	hostModule string
	funcs      []shimFunc
	minPages   uint32
	maxPages   uint32
	hasMax     bool
}

type shimFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// NewShimBuilder creates a builder importing from hostModule with a one
// page memory and no maximum.
func NewShimBuilder(hostModule string) *ShimBuilder {
	return &ShimBuilder{hostModule: hostModule, minPages: 1}
}

// AddFunc adds a function to import and re-export.
func (b *ShimBuilder) AddFunc(name string, params, results []api.ValueType) {
	b.funcs = append(b.funcs, shimFunc{name: name, params: params, results: results})
}

// AddCatalog adds every operation of c in id order.
func (b *ShimBuilder) AddCatalog(c *Catalog) {
	for _, op := range c.Operations() {
		b.AddFunc(op.Name, op.Params, op.Results)
	}
}

// SetMemory sets the memory limits in pages. max == 0 leaves the memory
// unbounded.
func (b *ShimBuilder) SetMemory(min, max uint32) {
	b.minPages = min
	b.maxPages = max
	b.hasMax = max != 0
}

// Build generates the module bytes.
func (b *ShimBuilder) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x01, b.buildTypeSection())
		wasm = appendSection(wasm, 0x02, b.buildImportSection())
		wasm = appendSection(wasm, 0x03, b.buildFuncSection())
	}
	wasm = appendSection(wasm, 0x05, b.buildMemorySection())
	wasm = appendSection(wasm, 0x07, b.buildExportSection())
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x0a, b.buildCodeSection())
	}
	return wasm
}

func appendSection(wasm []byte, id byte, body []byte) []byte {
	wasm = append(wasm, id)
	wasm = append(wasm, EncodeULEB128(uint32(len(body)))...)
	return append(wasm, body...)
}

func appendName(buf []byte, name string) []byte {
	buf = append(buf, EncodeULEB128(uint32(len(name)))...)
	return append(buf, name...)
}

// Each function gets its own type entry; index i is both the type of
// import i and of trampoline i.
func (b *ShimBuilder) buildTypeSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		section = append(section, 0x60)
		section = append(section, EncodeULEB128(uint32(len(f.params)))...)
		for _, t := range f.params {
			section = append(section, ValTypeToWasm(t))
		}
		section = append(section, EncodeULEB128(uint32(len(f.results)))...)
		for _, t := range f.results {
			section = append(section, ValTypeToWasm(t))
		}
	}
	return section
}

func (b *ShimBuilder) buildImportSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		section = appendName(section, b.hostModule)
		section = appendName(section, f.name)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(i))...)
	}
	return section
}

func (b *ShimBuilder) buildFuncSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for i := range b.funcs {
		section = append(section, EncodeULEB128(uint32(i))...)
	}
	return section
}

func (b *ShimBuilder) buildMemorySection() []byte {
	section := []byte{0x01}
	if b.hasMax {
		section = append(section, 0x01)
		section = append(section, EncodeULEB128(b.minPages)...)
		return append(section, EncodeULEB128(b.maxPages)...)
	}
	section = append(section, 0x00)
	return append(section, EncodeULEB128(b.minPages)...)
}

func (b *ShimBuilder) buildExportSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs) + 1))

	section = appendName(section, MemoryExport)
	section = append(section, 0x02, 0x00)

	numImports := len(b.funcs)
	for i, f := range b.funcs {
		section = appendName(section, f.name)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(numImports+i))...)
	}
	return section
}

func (b *ShimBuilder) buildCodeSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		body := buildTrampoline(i, f)
		section = append(section, EncodeULEB128(uint32(len(body)))...)
		section = append(section, body...)
	}
	return section
}

// local.get 0..n-1; call import; end
func buildTrampoline(importIdx int, f shimFunc) []byte {
	body := []byte{0x00}
	for i := range f.params {
		body = append(body, 0x20)
		body = append(body, EncodeULEB128(uint32(i))...)
	}
	body = append(body, 0x10)
	body = append(body, EncodeULEB128(uint32(importIdx))...)
	return append(body, 0x0b)
}
