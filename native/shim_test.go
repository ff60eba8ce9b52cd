package native

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestEncodeULEB128(t *testing.T) {
	tests := []struct {
		want []byte
		v    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}
	for _, tt := range tests {
		got := EncodeULEB128(tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeULEB128(%d) = %x, want %x", tt.v, got, tt.want)
		}
		v, n := DecodeULEB128(got)
		if v != tt.v || n != len(got) {
			t.Errorf("DecodeULEB128(%x) = %d, %d", got, v, n)
		}
	}
}

func TestShimBuilder_MemoryOnly(t *testing.T) {
	b := NewShimBuilder("host")
	bin := b.Build()
	if !bytes.Equal(bin[:4], []byte{0x00, 0x61, 0x73, 0x6d}) {
		t.Fatal("missing wasm magic")
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if mod.ExportedMemory(MemoryExport) == nil {
		t.Fatal("memory not exported")
	}
	if size := mod.Memory().Size(); size != 65536 {
		t.Errorf("expected one page, got %d bytes", size)
	}
}

func TestShimBuilder_Trampolines(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	var seen []uint64
	_, err := r.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, a uint32, b uint64) uint32 {
			seen = append(seen, uint64(a), b)
			return a + uint32(b)
		}).
		Export("add").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	b := NewShimBuilder("host")
	b.AddFunc("add", []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32})
	b.SetMemory(1, 2)

	mod, err := r.Instantiate(ctx, b.Build())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction("add").Call(ctx, 40, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 42 {
		t.Errorf("expected 42, got %d", res[0])
	}
	if len(seen) != 2 || seen[0] != 40 || seen[1] != 2 {
		t.Errorf("host saw %v", seen)
	}

	if _, ok := mod.Memory().Grow(1); !ok {
		t.Error("grow to max should succeed")
	}
	if _, ok := mod.Memory().Grow(1); ok {
		t.Error("grow past max should fail")
	}
}

func TestShimBuilder_Preview1Compiles(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	b := NewShimBuilder(ModuleName)
	b.AddCatalog(Preview1())
	compiled, err := r.CompileModule(ctx, b.Build())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	imports := compiled.ImportedFunctions()
	if len(imports) != Preview1().Len() {
		t.Errorf("expected %d imports, got %d", Preview1().Len(), len(imports))
	}
	exports := compiled.ExportedFunctions()
	if _, ok := exports["fd_write"]; !ok {
		t.Error("fd_write trampoline not exported")
	}
}
