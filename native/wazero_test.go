package native

import (
	"bytes"
	"context"
	"testing"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
)

func newTestHost(t *testing.T, cfg HostConfig) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := NewHost(ctx, cfg)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func mustOp(t *testing.T, h *Host, name string) *Operation {
	t.Helper()
	op, ok := h.Catalog().ByName(name)
	if !ok {
		t.Fatalf("unknown op %s", name)
	}
	return op
}

func mustAlloc(t *testing.T, h *Host, size uint32) uint32 {
	t.Helper()
	ptr, err := h.Allocator().Alloc(size, 4)
	if err != nil {
		t.Fatal(err)
	}
	return ptr
}

func TestHost_FdWrite(t *testing.T) {
	var out bytes.Buffer
	h := newTestHost(t, HostConfig{Stdout: &out})
	mem := h.Memory()

	data := mustAlloc(t, h, 5)
	iov := mustAlloc(t, h, 8)
	nw := mustAlloc(t, h, 4)
	if err := mem.Write(data, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	_ = mem.WriteU32(iov, data)
	_ = mem.WriteU32(iov+4, 5)

	errno, err := h.Invoke(context.Background(), mustOp(t, h, "fd_write"),
		[]uint64{1, uint64(iov), 1, uint64(nw)})
	if err != nil {
		t.Fatal(err)
	}
	if errno != ErrnoSuccess {
		t.Fatalf("errno = %d", errno)
	}
	if out.String() != "hello" {
		t.Errorf("stdout = %q", out.String())
	}
	if n, _ := mem.ReadU32(nw); n != 5 {
		t.Errorf("nwritten = %d", n)
	}
}

func TestHost_ArgsSizesGet(t *testing.T) {
	h := newTestHost(t, HostConfig{Args: []string{"a", "bc"}})
	argc := mustAlloc(t, h, 4)
	size := mustAlloc(t, h, 4)

	errno, err := h.Invoke(context.Background(), mustOp(t, h, "args_sizes_get"),
		[]uint64{uint64(argc), uint64(size)})
	if err != nil || errno != 0 {
		t.Fatalf("errno=%d err=%v", errno, err)
	}
	if n, _ := h.Memory().ReadU32(argc); n != 2 {
		t.Errorf("argc = %d", n)
	}
	if n, _ := h.Memory().ReadU32(size); n != 5 {
		t.Errorf("argv buf size = %d", n)
	}
}

func TestHost_RandomGet(t *testing.T) {
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	h := newTestHost(t, HostConfig{RandSource: src})
	buf := mustAlloc(t, h, 4)

	errno, err := h.Invoke(context.Background(), mustOp(t, h, "random_get"),
		[]uint64{uint64(buf), 4})
	if err != nil || errno != 0 {
		t.Fatalf("errno=%d err=%v", errno, err)
	}
	got, _ := h.Memory().Read(buf, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("random bytes = %v", got)
	}
}

func TestHost_BadDescriptorReturnsErrno(t *testing.T) {
	h := newTestHost(t, HostConfig{})
	errno, err := h.Invoke(context.Background(), mustOp(t, h, "fd_close"), []uint64{99})
	if err != nil {
		t.Fatal(err)
	}
	if errno != 8 {
		t.Errorf("expected EBADF (8), got %d", errno)
	}
}

func TestHost_ProcExit(t *testing.T) {
	h := newTestHost(t, HostConfig{})
	ctx := context.Background()

	_, err := h.Invoke(ctx, mustOp(t, h, "proc_exit"), []uint64{3})
	code, ok := errors.ExitCode(err)
	if !ok || code != 3 {
		t.Fatalf("expected exit 3, got %v", err)
	}
	if errors.ClassOf(err) != errors.ClassNative {
		t.Errorf("class = %s", errors.ClassOf(err))
	}

	if _, err := h.Invoke(ctx, mustOp(t, h, "sched_yield"), nil); err == nil {
		t.Error("invoke after exit should fail")
	}
}

func TestHost_MemoryLimit(t *testing.T) {
	h := newTestHost(t, HostConfig{InitialPages: 1, MaxPages: 2})
	if _, err := h.Allocator().Alloc(40000, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Allocator().Alloc(40000, 1); err != nil {
		t.Fatalf("growing to the second page should succeed: %v", err)
	}
	if h.Memory().Size() != 2*wasiexec.PageSize {
		t.Errorf("memory size = %d", h.Memory().Size())
	}
	if _, err := h.Allocator().Alloc(100000, 1); err == nil {
		t.Error("allocation past the page limit should fail")
	}
}

func TestNewHost_RejectsInvertedLimits(t *testing.T) {
	_, err := NewHost(context.Background(), HostConfig{InitialPages: 4, MaxPages: 2})
	if err == nil {
		t.Fatal("expected error")
	}
}
