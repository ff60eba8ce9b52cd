package native

import (
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestPreview1_IDsAreOrdered(t *testing.T) {
	c := Preview1()
	if c.Len() != 46 {
		t.Fatalf("expected 46 operations, got %d", c.Len())
	}
	for i, op := range c.Operations() {
		if op.ID != uint32(i) {
			t.Errorf("operation %s has id %d at index %d", op.Name, op.ID, i)
		}
	}

	cases := map[string]uint32{
		"args_get":      0,
		"fd_write":      26,
		"path_open":     31,
		"proc_exit":     38,
		"random_get":    41,
		"sock_shutdown": 45,
	}
	for name, id := range cases {
		op, ok := c.ByName(name)
		if !ok {
			t.Errorf("missing %s", name)
			continue
		}
		if op.ID != id {
			t.Errorf("%s: expected id %d, got %d", name, id, op.ID)
		}
	}
}

func TestPreview1_Lookup(t *testing.T) {
	c := Preview1()
	op, ok := c.Lookup(5)
	if !ok || op.Name != "clock_time_get" {
		t.Fatalf("Lookup(5) = %v, %v", op, ok)
	}
	want := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeI32}
	if len(op.Params) != len(want) {
		t.Fatalf("params = %v", op.Params)
	}
	for i := range want {
		if op.Params[i] != want[i] {
			t.Errorf("param %d = %s", i, ValueTypeName(op.Params[i]))
		}
	}

	if _, ok := c.Lookup(46); ok {
		t.Error("Lookup past the end should fail")
	}
	if _, ok := c.ByName("fd_frobnicate"); ok {
		t.Error("ByName of an unknown name should fail")
	}
}

func TestPreview1_IOShapes(t *testing.T) {
	c := Preview1()
	for _, op := range c.Operations() {
		switch op.Name {
		case "fd_read", "fd_write":
			if op.IO == nil || op.IO.Offset != -1 || op.IO.Count != 3 {
				t.Errorf("%s: unexpected shape %+v", op.Name, op.IO)
			}
		case "fd_pread", "fd_pwrite":
			if op.IO == nil || op.IO.Offset != 3 || op.IO.Count != 4 {
				t.Errorf("%s: unexpected shape %+v", op.Name, op.IO)
			}
			if op.Params[op.IO.Offset] != api.ValueTypeI64 {
				t.Errorf("%s: offset slot must be i64", op.Name)
			}
		default:
			if op.IO != nil {
				t.Errorf("%s: unexpected io shape", op.Name)
			}
		}
	}
}

func TestPreview1_OnlyProcExitHasNoResult(t *testing.T) {
	for _, op := range Preview1().Operations() {
		if op.Exits() != (op.Name == "proc_exit") {
			t.Errorf("%s: Exits() = %v", op.Name, op.Exits())
		}
	}
}

func TestPreview1_OperationsIsACopy(t *testing.T) {
	c := Preview1()
	ops := c.Operations()
	ops[0].Name = "changed"
	if op, _ := c.Lookup(0); op.Name != "args_get" {
		t.Error("Operations must not expose the table")
	}
}
