package metrics

import (
	"time"

	"go.uber.org/zap"
	"gopkg.in/alexcesaro/statsd.v2"
)

// Metrics is the sink the dispatcher and the session report to.
type Metrics interface {
	Incr(bucket string)
	Count(bucket string, n int)
	Duration(bucket string, d time.Duration)
	WithPrefix(prefix string) Metrics
	Close()
}

// Config selects the statsd endpoint. An empty Addr mutes the client.
type Config struct {
	Addr       string
	Prefix     string
	SampleRate float32
}

// Statsd wraps a statsd client.
type Statsd struct{ *statsd.Client }

// New returns a statsd sink for cfg. Setup failures are logged and yield a
// no-op sink, so metrics never keep the executor from starting.
func New(cfg Config, log *zap.Logger) Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "wasi_exec"
	}

	c, err := statsd.New(
		statsd.Address(cfg.Addr),
		statsd.Mute(cfg.Addr == ""),
		statsd.Prefix(prefix),
		statsd.SampleRate(rate),
		statsd.FlushPeriod(250*time.Millisecond),
		statsd.ErrorHandler(func(err error) {
			log.Warn("failed to send metrics", zap.String("statsd", cfg.Addr), zap.Error(err))
		}))
	if err != nil {
		log.Warn("setup failed for statsd metrics", zap.String("statsd", cfg.Addr), zap.Error(err))
		return Nop()
	}
	return Statsd{c}
}

func (m Statsd) Incr(bucket string) {
	m.Client.Increment(bucket)
}

func (m Statsd) Count(bucket string, n int) {
	m.Client.Count(bucket, n)
}

func (m Statsd) Duration(bucket string, d time.Duration) {
	m.Client.Timing(bucket, d.Milliseconds())
}

func (m Statsd) WithPrefix(prefix string) Metrics {
	return Statsd{Client: m.Client.Clone(statsd.Prefix(prefix))}
}

type nop struct{}

// Nop returns a sink that drops everything.
func Nop() Metrics { return nop{} }

func (nop) Incr(string)                    {}
func (nop) Count(string, int)              {}
func (nop) Duration(string, time.Duration) {}
func (nop) WithPrefix(string) Metrics      { return nop{} }
func (nop) Close()                         {}
