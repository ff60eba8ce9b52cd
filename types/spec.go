package types

// ParamSpec describes one call argument.
type ParamSpec interface {
	isParamSpec()
}

// ValueParam is a literal value materialized fresh for the call.
type ValueParam struct {
	Type  Type
	Value Value
}

// ResourceParam borrows the memory of a resource table entry. Type is
// optional; without it the entry is lowered by its stored size.
type ResourceParam struct {
	ID   uint64
	Type Type
}

func (ValueParam) isParamSpec()    {}
func (ResourceParam) isParamSpec() {}

// ResultSpec describes one out-pointer result slot.
type ResultSpec interface {
	ResultType() Type
	isResultSpec()
}

// IgnoreResult reads the result back and then discards its buffer.
type IgnoreResult struct {
	Type Type
}

// ResourceResult keeps the result buffer alive in the resource table under ID.
type ResourceResult struct {
	ID   uint64
	Type Type
}

func (r IgnoreResult) ResultType() Type   { return r.Type }
func (r ResourceResult) ResultType() Type { return r.Type }

func (IgnoreResult) isResultSpec()   {}
func (ResourceResult) isResultSpec() {}
