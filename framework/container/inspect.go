package container

import (
	"fmt"
	"sort"
)

// Enumerator is implemented by containers that can list the identifiers
// they answer for.
type Enumerator interface {
	Identifiers() []string
}

// Identifiers returns every identifier known to c or its delegates, sorted
// and de-duplicated: local bindings, classes a ReflectionContainer can
// build and services advertised by providers.
func (c *Container) Identifiers() []string {
	set := make(map[string]bool)
	c.identifiers(set, make(map[*core]bool))
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Container) identifiers(set map[string]bool, seen map[*core]bool) {
	if seen[c.core] {
		return
	}
	seen[c.core] = true
	for _, id := range c.Bindings() {
		set[id] = true
	}
	c.mu.RLock()
	delegates := append([]Interface(nil), c.delegates...)
	c.mu.RUnlock()
	for _, d := range delegates {
		switch d := d.(type) {
		case *Container:
			d.identifiers(set, seen)
		case Enumerator:
			for _, id := range d.Identifiers() {
				set[Normalize(id)] = true
			}
		}
	}
}

// Identifiers returns the registered class names.
func (r *ReflectionContainer) Identifiers() []string { return r.registry().Names() }

// Identifiers returns the advertised services, sorted.
func (s *ServiceProviderContainer) Identifiers() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.provides))
	for id := range s.provides {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Resolution is the outcome of resolving one identifier, shaped for
// diagnostics output.
type Resolution struct {
	ID    string `json:"id"`
	Has   bool   `json:"has"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`

	err error
}

// Err returns the resolution error, if any.
func (r Resolution) Err() error { return r.err }

// Inspect reports whether c has id and what resolving it produces. It
// always attempts the resolution, so an identifier Has denies still reports
// its NotFoundError.
func Inspect(c Interface, id string) Resolution {
	res := Resolution{ID: Normalize(id), Has: c.Has(id)}
	instance, err := c.Get(id)
	if err != nil {
		res.err = err
		res.Error = err.Error()
		return res
	}
	res.Type = fmt.Sprintf("%T", instance)
	return res
}
