package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseFraming  Phase = "framing"   // length-prefixed transport
	PhaseDecode   Phase = "decode"    // wire message to model
	PhaseEncode   Phase = "encode"    // value to linear memory
	PhaseReadBack Phase = "read_back" // linear memory to value
	PhaseValidate Phase = "validate"  // type descriptor invariants
	PhaseDispatch Phase = "dispatch"  // call routing and lowering
	PhaseResource Phase = "resource"  // resource table
	PhaseNative   Phase = "native"    // native operation invocation
	PhaseConfig   Phase = "config"    // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch     Kind = "type_mismatch"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindInvalidData      Kind = "invalid_data"
	KindUnsupported      Kind = "unsupported"
	KindAllocation       Kind = "allocation"
	KindOverflow         Kind = "overflow"
	KindInvalidVariant   Kind = "invalid_variant"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindResourceNotFound Kind = "resource_not_found"
	KindUnknownOperation Kind = "unknown_operation"
	KindNotHandle        Kind = "not_handle"
	KindSignature        Kind = "signature_mismatch"
	KindShortIO          Kind = "short_io"
	KindFrameTooLarge    Kind = "frame_too_large"
	KindMalformed        Kind = "malformed"
	KindInvocation       Kind = "invocation"
	KindExit             Kind = "exit"
)

// Class groups errors by how a session reacts to them.
type Class string

const (
	ClassFraming Class = "framing" // connection-level, always fatal
	ClassDecode  Class = "decode"  // malformed message body, always fatal
	ClassUsage   Class = "usage"   // protocol misuse, fatal or reported per policy
	ClassNative  Class = "native"  // native operation trap or exit
)

// Error is the structured error type used throughout the executor
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Class reports how a session should treat the error.
func (e *Error) Class() Class {
	switch e.Phase {
	case PhaseFraming:
		return ClassFraming
	case PhaseDecode:
		return ClassDecode
	case PhaseNative:
		return ClassNative
	default:
		return ClassUsage
	}
}

// ClassOf returns the class of err. Errors that are not *Error are treated
// as native failures since they originate below the protocol.
func ClassOf(err error) Class {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Class()
	}
	return ClassNative
}

// KindOf returns the kind of err, or the empty kind.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the type descriptor name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error between a value kind and the
// type it was paired with.
func TypeMismatch(phase Phase, path []string, valueKind, typeKind string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   typeKind,
		Detail: fmt.Sprintf("value kind %s does not match", valueKind),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants
func InvalidDiscriminant(phase Phase, path []string, disc uint64, cases int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (%d cases)", disc, cases),
		Value:  disc,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Type:   target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ResourceNotFound creates an error for a reference to an undeclared resource id
func ResourceNotFound(id uint64) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindResourceNotFound,
		Detail: fmt.Sprintf("resource %d not found", id),
		Value:  id,
	}
}

// UnknownOperation creates an error for an operation id absent from the table
func UnknownOperation(id uint32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnknownOperation,
		Detail: fmt.Sprintf("operation %d is not in the operation table", id),
		Value:  id,
	}
}

// Framing creates a transport framing error
func Framing(kind Kind, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseFraming,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Decode creates a message decoding error
func Decode(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformed,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Exit creates the error reported when a native operation terminates the
// guest with an exit code.
func Exit(code uint32) *Error {
	return &Error{
		Phase:  PhaseNative,
		Kind:   KindExit,
		Detail: fmt.Sprintf("guest exited with code %d", code),
		Value:  code,
	}
}

// ExitCode returns the guest exit code carried by err, if any.
func ExitCode(err error) (uint32, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.Kind == KindExit {
		code, ok := e.Value.(uint32)
		return code, ok
	}
	return 0, false
}

// Prefix prepends segments to the path of a structured error. Other errors
// are returned unchanged.
func Prefix(err error, segments ...string) error {
	var e *Error
	if stderrors.As(err, &e) {
		e.Path = append(append(make([]string, 0, len(segments)+len(e.Path)), segments...), e.Path...)
	}
	return err
}

// PathIndex extends path with an index segment.
func PathIndex(path []string, i int) []string {
	return append(append(make([]string, 0, len(path)+1), path...), fmt.Sprintf("[%d]", i))
}

// PathField extends path with a named segment.
func PathField(path []string, name string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), name)
}
