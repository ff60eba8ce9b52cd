package session

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-executor/dispatch"
	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/metrics"
	"github.com/wippyai/wasi-executor/protocol"
	"github.com/wippyai/wasi-executor/resource"
)

// Policy decides what a usage error does to the session.
type Policy uint8

const (
	// Fatal ends the session on the first framing, decode or usage error.
	Fatal Policy = iota
	// Continue reports usage errors to the client and keeps serving.
	Continue
)

func (p Policy) String() string {
	if p == Continue {
		return "continue"
	}
	return "fatal"
}

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fatal":
		return Fatal, nil
	case "continue":
		return Continue, nil
	}
	return Fatal, errors.InvalidInput(errors.PhaseConfig, "unknown error policy "+s)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The session adds its own id field.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPolicy sets the error policy.
func WithPolicy(p Policy) Option {
	return func(s *Session) { s.policy = p }
}

// WithMaxFrameSize bounds request and response bodies. Zero selects
// protocol.DefaultMaxFrameSize.
func WithMaxFrameSize(n uint64) Option {
	return func(s *Session) { s.maxFrame = n }
}

// WithCloser registers a function run by Close after the resource table is
// released, typically the native host's shutdown.
func WithCloser(fn func() error) Option {
	return func(s *Session) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

// Session serves one request stream against one dispatcher.
type Session struct {
	id          uuid.UUID
	d           *dispatch.Dispatcher
	log         *zap.Logger
	metrics     metrics.Metrics
	closers     []func() error
	unsubscribe func()
	maxFrame    uint64
	policy      Policy
}

// New creates a session around d. The session owns d and closes it.
func New(d *dispatch.Dispatcher, opts ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		d:       d,
		log:     zap.NewNop(),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session", s.id.String()))
	s.unsubscribe = d.Table().Subscribe(resource.ObserverFunc(s.onResourceEvent))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id.String() }

func (s *Session) onResourceEvent(e resource.Event) {
	if ce := s.log.Check(zap.DebugLevel, "resource "+e.Type.String()); ce != nil {
		fields := []zap.Field{
			zap.Uint64("id", e.ID),
			zap.Uint32("ptr", e.Entry.Ptr),
			zap.Uint32("size", e.Entry.Size),
		}
		if e.Type == resource.EventReplaced {
			fields = append(fields, zap.Uint32("previous_ptr", e.Previous.Ptr))
		}
		ce.Write(fields...)
	}
}

// Serve processes framed requests from r and writes framed responses to w
// until r ends cleanly at a frame boundary, ctx is cancelled, or a fatal
// error occurs. A clean end returns nil. A guest exit returns an error
// carrying the exit code, see errors.ExitCode.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	fr := protocol.NewFrameReader(r, s.maxFrame)
	fw := protocol.NewFrameWriter(w, s.maxFrame)

	s.log.Debug("session started", zap.Stringer("policy", s.policy))
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := fr.ReadFrame()
		if err == io.EOF {
			s.log.Debug("session finished", zap.Int("requests", n))
			return nil
		}
		if err != nil {
			return s.fail(err)
		}
		req, err := protocol.DecodeRequest(body)
		if err != nil {
			return s.fail(err)
		}
		s.metrics.Incr("requests")

		resp, err := s.Handle(ctx, req)
		if err != nil {
			if s.policy != Continue || errors.ClassOf(err) != errors.ClassUsage {
				return s.fail(err)
			}
			s.metrics.Incr("errors." + string(errors.ClassUsage))
			s.log.Info("request failed", zap.Int("request", n), zap.Error(err))
			resp = &protocol.Response{Which: protocol.ResponseError, Error: protocol.ErrorFromErr(err)}
		}

		out, err := protocol.EncodeResponse(resp)
		if err != nil {
			return s.fail(err)
		}
		if err := fw.WriteFrame(out); err != nil {
			return s.fail(err)
		}
	}
}

func (s *Session) fail(err error) error {
	if code, ok := errors.ExitCode(err); ok {
		s.log.Info("guest exited", zap.Uint32("code", code))
		return err
	}
	s.metrics.Incr("errors." + string(errors.ClassOf(err)))
	s.log.Error("session failed", zap.String("class", string(errors.ClassOf(err))), zap.Error(err))
	return err
}

// Handle executes one decoded request. Structural problems in the request
// are decode errors; everything the dispatcher rejects keeps its class.
func (s *Session) Handle(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	switch req.Which {
	case protocol.RequestDecl:
		if req.Decl == nil || req.Decl.Value == nil {
			return nil, errors.Decode("decl request without a value", nil)
		}
		v, err := protocol.ValueFromWire(req.Decl.Value)
		if err != nil {
			return nil, err
		}
		if err := s.d.Declare(req.Decl.ID, v); err != nil {
			return nil, err
		}
		return &protocol.Response{
			Which:   protocol.ResponseDeclAck,
			DeclAck: &protocol.DeclAck{ID: req.Decl.ID},
		}, nil

	case protocol.RequestCall:
		if req.Call == nil {
			return nil, errors.Decode("call request without a body", nil)
		}
		params, err := protocol.ParamsFromWire(req.Call.Params)
		if err != nil {
			return nil, err
		}
		results, err := protocol.ResultsFromWire(req.Call.Results)
		if err != nil {
			return nil, err
		}
		res, err := s.d.Call(ctx, dispatch.CallRequest{
			Operation: req.Call.Operation,
			Params:    params,
			Results:   results,
		})
		if err != nil {
			return nil, err
		}
		return &protocol.Response{Which: protocol.ResponseCall, Call: callResultToWire(res)}, nil
	}
	return nil, errors.Decode("unknown request kind "+req.Which.String(), nil)
}

func callResultToWire(res *dispatch.CallResult) *protocol.CallResult {
	out := &protocol.CallResult{
		Status:  res.Status,
		Results: make([]protocol.ResultValue, len(res.Results)),
		Params:  make([]protocol.Value, len(res.Params)),
	}
	for i, r := range res.Results {
		out.Results[i] = protocol.ResultValue{
			Value:        protocol.ValueToWire(r.Value),
			MemoryOffset: r.MemoryOffset,
		}
	}
	for i, p := range res.Params {
		if w := protocol.ValueToWire(p); w != nil {
			out.Params[i] = *w
		}
	}
	return out
}

// Close releases every resource and runs the registered closers. All
// failures are reported together.
func (s *Session) Close() error {
	if ce := s.log.Check(zap.DebugLevel, "releasing resources"); ce != nil {
		entries := s.d.Table().Entries()
		ids := make([]uint64, len(entries))
		var bytes uint64
		for i, e := range entries {
			ids[i] = e.ID
			bytes += uint64(e.Entry.Size)
		}
		ce.Write(zap.Uint64s("ids", ids), zap.Uint64("bytes", bytes))
	}
	err := s.d.Close()
	s.unsubscribe()
	for _, fn := range s.closers {
		err = multierr.Append(err, fn())
	}
	return err
}
