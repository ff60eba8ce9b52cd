package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	wasiexec "github.com/wippyai/wasi-executor"
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/marshal"
	"github.com/wippyai/wasi-executor/metrics"
	"github.com/wippyai/wasi-executor/native"
	"github.com/wippyai/wasi-executor/resource"
	"github.com/wippyai/wasi-executor/types"
)

// DefaultMaxRetries bounds how often a transient status is retried within
// one read/write-shaped call.
const DefaultMaxRetries = 16

// Invoker runs an operation with lowered arguments and returns its status.
type Invoker interface {
	Invoke(ctx context.Context, op *native.Operation, args []uint64) (int32, error)
}

// Operations resolves operation ids.
type Operations interface {
	Lookup(id uint32) (*native.Operation, bool)
}

// CallRequest asks for one operation to run.
type CallRequest struct {
	Params    []types.ParamSpec
	Results   []types.ResultSpec
	Operation uint32
}

// Result is a result slot read back after the call. MemoryOffset is the
// address the slot occupied and is reported for debugging only.
type Result struct {
	Value        types.Value
	MemoryOffset uint32
}

// CallResult is the outcome of a call. Status is the operation's own errno.
// Params echoes every parameter after the call: literals are read back from
// memory and resource references are returned as given.
type CallResult struct {
	Results []Result
	Params  []types.Value
	Status  int32
}

// Dispatcher executes declare and call requests against one resource table.
type Dispatcher struct {
	ops        Operations
	inv        Invoker
	mem        wasiexec.Memory
	alloc      wasiexec.Allocator
	table      *resource.Table
	engine     *marshal.Engine
	log        *zap.Logger
	metrics    metrics.Metrics
	maxRetries int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithMaxRetries bounds transient-status retries per call. Negative values
// are treated as zero.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		if n < 0 {
			n = 0
		}
		d.maxRetries = n
	}
}

// New creates a dispatcher with a fresh resource table over mem.
func New(ops Operations, inv Invoker, mem wasiexec.Memory, alloc wasiexec.Allocator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ops:        ops,
		inv:        inv,
		mem:        mem,
		alloc:      alloc,
		log:        zap.NewNop(),
		metrics:    metrics.Nop(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.table = resource.NewTable(mem, alloc)
	d.engine = marshal.NewEngine(mem, alloc, d.table)
	return d
}

// Table returns the dispatcher's resource table.
func (d *Dispatcher) Table() *resource.Table { return d.table }

// Close frees every resource in the table.
func (d *Dispatcher) Close() error {
	return d.table.Close()
}

// Declare stores a handle value under id.
func (d *Dispatcher) Declare(id resource.ID, v types.Value) error {
	if err := d.table.Declare(id, v); err != nil {
		return err
	}
	d.metrics.Incr("declare")
	d.log.Debug("declared resource", zap.Uint64("id", id))
	return nil
}

// Call runs one operation. Any buffer the call allocated is released before
// an error is returned; on success only buffers handed to the resource
// table survive.
func (d *Dispatcher) Call(ctx context.Context, req CallRequest) (res *CallResult, err error) {
	op, ok := d.ops.Lookup(req.Operation)
	if !ok {
		return nil, errors.UnknownOperation(req.Operation)
	}
	start := time.Now()

	var owned []*marshal.Buffer
	defer func() {
		for _, b := range owned {
			d.engine.Release(b)
		}
	}()

	params := make([]*marshal.Buffer, len(req.Params))
	var slots []slot
	for i, p := range req.Params {
		path := []string{fmt.Sprintf("params[%d]", i)}
		b, err := d.resolve(p, path)
		if err != nil {
			return nil, err
		}
		params[i] = b
		if b.Owned() {
			owned = append(owned, b)
		}
		s, err := lowerParam(d.mem, b, path)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s...)
	}

	results := make([]*marshal.Buffer, len(req.Results))
	for i, r := range req.Results {
		path := []string{fmt.Sprintf("results[%d]", i)}
		t, err := resultType(r, path)
		if err != nil {
			return nil, err
		}
		b, err := d.engine.Zeroed(t)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		results[i] = b
		owned = append(owned, b)
		slots = append(slots, i32Slot(b.Ptr))
	}

	args, err := checkSignature(op, slots)
	if err != nil {
		return nil, err
	}

	var status int32
	if op.IO != nil {
		status, err = d.accumulate(ctx, op, args)
	} else {
		status, err = d.inv.Invoke(ctx, op, args)
	}
	d.metrics.Incr("call." + op.Name)
	d.metrics.Duration("call."+op.Name, time.Since(start))
	if err != nil {
		d.metrics.Incr("call.failed")
		return nil, err
	}
	if status != native.ErrnoSuccess {
		d.metrics.Incr("errno." + strconv.Itoa(int(status)))
	}

	out := &CallResult{
		Status:  status,
		Results: make([]Result, len(results)),
		Params:  make([]types.Value, len(params)),
	}
	for i, r := range req.Results {
		rr, ok := r.(types.ResourceResult)
		if !ok {
			continue
		}
		if err := d.table.Put(rr.ID, results[i].Entry()); err != nil {
			return nil, err
		}
		results[i].Detach()
	}

	for i, b := range results {
		v, err := d.engine.ReadBuffer(b, nil)
		if err != nil {
			return nil, errors.Prefix(err, fmt.Sprintf("results[%d]", i))
		}
		out.Results[i] = Result{Value: v, MemoryOffset: b.Ptr}
	}
	for i, p := range req.Params {
		switch p := p.(type) {
		case types.ValueParam:
			out.Params[i] = d.echo(params[i], p.Value, i)
		case types.ResourceParam:
			out.Params[i] = types.Resource(p.ID)
		}
	}

	d.log.Debug("call",
		zap.String("op", op.Name),
		zap.Int32("status", status),
		zap.Int("params", len(req.Params)),
		zap.Int("results", len(req.Results)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// echo reads a literal param back after the call. The operation has already
// run, so a param that cannot be read back is echoed as it was sent.
func (d *Dispatcher) echo(b *marshal.Buffer, sent types.Value, i int) types.Value {
	v, err := d.engine.ReadBuffer(b, sent)
	if err != nil {
		d.metrics.Incr("echo.failed")
		d.log.Warn("param echoed as sent", zap.Int("param", i), zap.Error(err))
		return sent
	}
	return v
}

func (d *Dispatcher) resolve(p types.ParamSpec, path []string) (*marshal.Buffer, error) {
	switch p := p.(type) {
	case types.ResourceParam:
		e, err := d.table.Get(p.ID)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		if p.Type != nil {
			if err := types.Validate(p.Type); err != nil {
				return nil, errors.Prefix(err, path...)
			}
			if size, err := types.TypeSize(p.Type); err == nil && size > e.Size {
				return nil, errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
					Path(path...).Type(p.Type.String()).
					Detail("resource %d holds %d bytes, type needs %d", p.ID, e.Size, size).Build()
			}
			e.Type = p.Type
		}
		return marshal.Borrow(e), nil

	case types.ValueParam:
		if p.Type == nil {
			return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
				Path(path...).Detail("value parameter without a type").Build()
		}
		if err := types.Validate(p.Type); err != nil {
			return nil, errors.Prefix(err, path...)
		}
		b, err := d.engine.Materialize(p.Type, p.Value)
		if err != nil {
			return nil, errors.Prefix(err, path...)
		}
		return b, nil
	}
	return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
		Path(path...).Detail("empty parameter").Build()
}

// resultType checks that a result can be pre-allocated and read back
// without a template.
func resultType(r types.ResultSpec, path []string) (types.Type, error) {
	if r == nil || r.ResultType() == nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Path(path...).Detail("result without a type").Build()
	}
	t := r.ResultType()
	if err := types.Validate(t); err != nil {
		return nil, errors.Prefix(err, path...)
	}
	if !selfDescribing(t) {
		return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(path...).Type(t.String()).
			Detail("result type cannot be read back without a template").Build()
	}
	return t, nil
}

// selfDescribing reports whether a value of t can be read from memory with
// no outside shape information.
func selfDescribing(t types.Type) bool {
	switch t := t.(type) {
	case types.BuiltinType, types.BitflagsType, types.HandleType:
		return true
	case types.RecordType:
		for _, m := range t.Members {
			if !selfDescribing(m.Type) {
				return false
			}
		}
		return true
	case types.VariantType:
		for _, c := range t.Cases {
			if c.Type != nil && !selfDescribing(c.Type) {
				return false
			}
		}
		return true
	}
	return false
}
