package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindTypeMismatch,
				Path:   []string{"param[1]", "[0]", "buf_len"},
				Type:   "u32",
				Detail: "expected builtin",
			},
			contains: []string{"[encode]", "type_mismatch", "param[1].[0].buf_len", "type u32", " - expected builtin"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseReadBack,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[read_back]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseFraming,
				Kind:   KindMalformed,
				Detail: "short body",
				Cause:  errors.New("unexpected EOF"),
			},
			contains: []string{"[framing]", "malformed", ": short body", "caused by", "unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Phase: PhaseEncode, Kind: KindInvalidData, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
	if !errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindInvalidData}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidData}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindOverflow}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDispatch, KindSignature).
		Path("fd_write").
		Type("i64").
		Value(3).
		Cause(cause).
		Detail("slot %d: want %s", 2, "i32").
		Build()

	if err.Phase != PhaseDispatch || err.Kind != KindSignature {
		t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
	}
	if len(err.Path) != 1 || err.Path[0] != "fd_write" {
		t.Errorf("Path = %v, want [fd_write]", err.Path)
	}
	if err.Type != "i64" {
		t.Errorf("Type = %v, want i64", err.Type)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v, want 3", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "slot 2: want i32" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"framing", Framing(KindFrameTooLarge, "too big", nil), ClassFraming},
		{"decode", Decode("bad cbor", nil), ClassDecode},
		{"resource not found", ResourceNotFound(7), ClassUsage},
		{"unknown operation", UnknownOperation(99), ClassUsage},
		{"encode mismatch", TypeMismatch(PhaseEncode, nil, "string", "u32"), ClassUsage},
		{"exit", Exit(3), ClassNative},
		{"wrapped usage", fmt.Errorf("call: %w", ResourceNotFound(1)), ClassUsage},
		{"plain error", errors.New("trap"), ClassNative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ResourceNotFound", func(t *testing.T) {
		err := ResourceNotFound(42)
		if err.Kind != KindResourceNotFound || err.Value != uint64(42) {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
		if !containsSubstring(err.Error(), "resource 42") {
			t.Errorf("message %q should name the id", err.Error())
		}
	})

	t.Run("UnknownOperation", func(t *testing.T) {
		err := UnknownOperation(46)
		if err.Kind != KindUnknownOperation || err.Phase != PhaseDispatch {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseEncode, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !containsSubstring(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("InvalidDiscriminant", func(t *testing.T) {
		err := InvalidDiscriminant(PhaseReadBack, []string{"variant"}, 5, 3)
		if err.Kind != KindInvalidVariant {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidVariant)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseReadBack, []string{"list"}, 10, 5)
		if err.Kind != KindOutOfBounds || err.Value != 10 {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"val"}, 300, "u8")
		if err.Kind != KindOverflow || err.Type != "u8" {
			t.Errorf("Kind=%v Type=%v", err.Kind, err.Type)
		}
	})

	t.Run("Exit", func(t *testing.T) {
		err := fmt.Errorf("invoke: %w", Exit(3))
		code, ok := ExitCode(err)
		if !ok || code != 3 {
			t.Errorf("ExitCode = %d, %v; want 3, true", code, ok)
		}
		if _, ok := ExitCode(ResourceNotFound(1)); ok {
			t.Error("ExitCode should not match other kinds")
		}
	})
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", Decode("bad", nil))); got != KindMalformed {
		t.Errorf("KindOf = %v, want %v", got, KindMalformed)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %v, want empty", got)
	}
}

func TestPathHelpers(t *testing.T) {
	base := []string{"param[0]"}
	idx := PathIndex(base, 3)
	field := PathField(base, "len")

	if len(base) != 1 {
		t.Fatalf("base path mutated: %v", base)
	}
	if len(idx) != 2 || idx[1] != "[3]" {
		t.Errorf("PathIndex = %v", idx)
	}
	if len(field) != 2 || field[1] != "len" {
		t.Errorf("PathField = %v", field)
	}

	err := Prefix(fmt.Errorf("wrapped: %w", OutOfBounds(PhaseEncode, []string{"[2]"}, 2, 1)), "param[0]")
	var e *Error
	if !errors.As(err, &e) || len(e.Path) != 2 || e.Path[0] != "param[0]" || e.Path[1] != "[2]" {
		t.Errorf("Prefix path = %v", e.Path)
	}
	plain := errors.New("plain")
	if Prefix(plain, "x") != plain {
		t.Error("Prefix should leave plain errors alone")
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
