package protocol

// Every sum type on the wire carries a Which discriminator next to the
// fields of all its cases. Only the fields of the selected case are set.

// RequestKind selects the case of a Request.
type RequestKind uint8

const (
	RequestDecl RequestKind = iota + 1
	RequestCall
)

func (k RequestKind) String() string {
	switch k {
	case RequestDecl:
		return "decl"
	case RequestCall:
		return "call"
	}
	return "unknown"
}

// Request is one message from the client.
type Request struct {
	Decl  *Decl       `cbor:"2,keyasint,omitempty"`
	Call  *Call       `cbor:"3,keyasint,omitempty"`
	Which RequestKind `cbor:"1,keyasint"`
}

// Decl stores a handle value in the resource table.
type Decl struct {
	Value *Value `cbor:"2,keyasint"`
	ID    uint64 `cbor:"1,keyasint"`
}

// Call invokes one operation.
type Call struct {
	Params    []ParamSpec  `cbor:"2,keyasint,omitempty"`
	Results   []ResultSpec `cbor:"3,keyasint,omitempty"`
	Operation uint32       `cbor:"1,keyasint"`
}

// ParamKind selects the case of a ParamSpec.
type ParamKind uint8

const (
	ParamValue ParamKind = iota + 1
	ParamResource
)

// ParamSpec is a literal value with its type, or a resource reference with
// an optional type.
type ParamSpec struct {
	Value    *Value    `cbor:"3,keyasint,omitempty"`
	Type     *Type     `cbor:"4,keyasint,omitempty"`
	Resource uint64    `cbor:"2,keyasint,omitempty"`
	Which    ParamKind `cbor:"1,keyasint"`
}

// ResultKind selects the case of a ResultSpec.
type ResultKind uint8

const (
	ResultIgnore ResultKind = iota + 1
	ResultResource
)

// ResultSpec describes an out-pointer result.
type ResultSpec struct {
	Type     *Type      `cbor:"3,keyasint"`
	Resource uint64     `cbor:"2,keyasint,omitempty"`
	Which    ResultKind `cbor:"1,keyasint"`
}

// TypeKind selects the case of a Type.
type TypeKind uint8

const (
	TypeBuiltin TypeKind = iota + 1
	TypeString
	TypeBitflags
	TypeHandle
	TypeArray
	TypeRecord
	TypePointer
	TypeConstPointer
	TypeVariant
)

// Type is a type descriptor.
type Type struct {
	Item          *Type    `cbor:"5,keyasint,omitempty"`
	Pointee       *Type    `cbor:"9,keyasint,omitempty"`
	Fields        []Field  `cbor:"7,keyasint,omitempty"`
	Cases         []Case   `cbor:"10,keyasint,omitempty"`
	Members       uint32   `cbor:"4,keyasint,omitempty"`
	ItemSize      uint32   `cbor:"6,keyasint,omitempty"`
	Size          uint32   `cbor:"8,keyasint,omitempty"`
	PayloadOffset uint32   `cbor:"11,keyasint,omitempty"`
	Which         TypeKind `cbor:"1,keyasint"`
	Builtin       uint8    `cbor:"2,keyasint,omitempty"`
	Repr          uint8    `cbor:"3,keyasint,omitempty"`
}

// Field is a record member.
type Field struct {
	Type   *Type  `cbor:"2,keyasint"`
	Name   string `cbor:"1,keyasint"`
	Offset uint32 `cbor:"3,keyasint"`
}

// Case is a variant case. Type is absent for payload-less cases.
type Case struct {
	Type *Type  `cbor:"2,keyasint,omitempty"`
	Name string `cbor:"1,keyasint"`
}

// ValueKind selects the case of a Value.
type ValueKind uint8

const (
	ValueBuiltin ValueKind = iota + 1
	ValueString
	ValueBitflags
	ValueHandle
	ValueArray
	ValueRecord
	ValuePointer
	ValueConstPointer
	ValueVariant
	ValueResource
)

// Value is a value literal. Items holds the elements of arrays, records,
// pointers and const pointers.
type Value struct {
	Alloc    *Alloc    `cbor:"7,keyasint,omitempty"`
	Payload  *Value    `cbor:"9,keyasint,omitempty"`
	Builtin  *Builtin  `cbor:"2,keyasint,omitempty"`
	Bytes    []byte    `cbor:"3,keyasint,omitempty"`
	Flags    []bool    `cbor:"4,keyasint,omitempty"`
	Items    []Value   `cbor:"6,keyasint,omitempty"`
	Resource uint64    `cbor:"10,keyasint,omitempty"`
	Handle   uint32    `cbor:"5,keyasint,omitempty"`
	Case     uint32    `cbor:"8,keyasint,omitempty"`
	Which    ValueKind `cbor:"1,keyasint"`
}

// Builtin is an integer literal. Bits holds the two's complement value.
type Builtin struct {
	Bits uint64 `cbor:"2,keyasint"`
	Kind uint8  `cbor:"1,keyasint"`
}

// AllocKind selects the case of an Alloc.
type AllocKind uint8

const (
	AllocFromResource AllocKind = iota + 1
	AllocFromSize
)

// Alloc sizes a pointer's buffer.
type Alloc struct {
	Resource uint64    `cbor:"2,keyasint,omitempty"`
	Size     uint32    `cbor:"3,keyasint,omitempty"`
	Which    AllocKind `cbor:"1,keyasint"`
}

// ResponseKind selects the case of a Response.
type ResponseKind uint8

const (
	ResponseDeclAck ResponseKind = iota + 1
	ResponseCall
	ResponseError
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseDeclAck:
		return "decl_ack"
	case ResponseCall:
		return "call"
	case ResponseError:
		return "error"
	}
	return "unknown"
}

// Response is one message to the client.
type Response struct {
	DeclAck *DeclAck     `cbor:"2,keyasint,omitempty"`
	Call    *CallResult  `cbor:"3,keyasint,omitempty"`
	Error   *Error       `cbor:"4,keyasint,omitempty"`
	Which   ResponseKind `cbor:"1,keyasint"`
}

// DeclAck acknowledges a Decl.
type DeclAck struct {
	ID uint64 `cbor:"1,keyasint"`
}

// CallResult is the outcome of a Call. Status is the operation's errno.
type CallResult struct {
	Results []ResultValue `cbor:"2,keyasint,omitempty"`
	Params  []Value       `cbor:"3,keyasint,omitempty"`
	Status  int32         `cbor:"1,keyasint"`
}

// ResultValue is a read-back result and the address its buffer occupied.
type ResultValue struct {
	Value        *Value `cbor:"1,keyasint"`
	MemoryOffset uint32 `cbor:"2,keyasint"`
}

// Error reports a request that failed without ending the session.
type Error struct {
	Class  string   `cbor:"1,keyasint"`
	Kind   string   `cbor:"2,keyasint"`
	Detail string   `cbor:"3,keyasint"`
	Path   []string `cbor:"4,keyasint,omitempty"`
}
