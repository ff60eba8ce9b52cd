package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_MutedWithoutAddress(t *testing.T) {
	m := New(Config{}, zap.NewNop())
	require.NotNil(t, m)
	_, ok := m.(Statsd)
	assert.True(t, ok, "a muted statsd client is still a statsd sink")

	sub := m.WithPrefix("dispatch.")
	sub.Incr("calls")
	sub.Count("bytes", 12)
	sub.Duration("latency", time.Millisecond)
	m.Close()
}

func TestNop(t *testing.T) {
	m := Nop()
	m.Incr("a")
	m.Count("b", 1)
	m.Duration("c", time.Second)
	assert.Equal(t, Nop(), m.WithPrefix("x"))
	m.Close()
}
