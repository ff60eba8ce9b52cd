// Package metrics reports executor counters to statsd.
package metrics
