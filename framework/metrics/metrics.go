// Package metrics counts container activity in a go-metrics registry.
package metrics

import (
	"strings"

	"github.com/rcrowley/go-metrics"
)

const constructedPrefix = "container.constructed."

// Resolutions counts, per identifier, how many values a container has
// constructed. Cached instances are not counted.
//
//	m := metrics.NewResolutions()
//	c.AfterResolving(m.Observe)
type Resolutions struct {
	registry metrics.Registry
}

// NewResolutions creates an empty counter set with its own registry.
func NewResolutions() *Resolutions {
	return &Resolutions{registry: metrics.NewRegistry()}
}

// Observe has the signature of a Container.AfterResolving callback.
func (r *Resolutions) Observe(id string, _ any) {
	metrics.GetOrRegisterCounter(constructedPrefix+id, r.registry).Inc(1)
}

// Count returns the constructions recorded for id.
func (r *Resolutions) Count(id string) int64 {
	if c, ok := r.registry.Get(constructedPrefix + id).(metrics.Counter); ok {
		return c.Count()
	}
	return 0
}

// Snapshot returns identifier → construction count.
func (r *Resolutions) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	r.registry.Each(func(name string, i interface{}) {
		if c, ok := i.(metrics.Counter); ok && strings.HasPrefix(name, constructedPrefix) {
			out[strings.TrimPrefix(name, constructedPrefix)] = c.Count()
		}
	})
	return out
}

// Registry exposes the underlying registry, e.g. for a reporter.
func (r *Resolutions) Registry() metrics.Registry { return r.registry }
