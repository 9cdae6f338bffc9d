package container

import (
	"reflect"
	"strings"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory is a function that builds a concrete value from the container.
// Any func works as a binding target; Factory is the common shape.
type Factory func(c *Container) (any, error)

// Extender decorates a resolved value. Extenders for an identifier run in
// registration order each time a value for it is constructed.
type Extender func(instance any, c *Container) any

// bindingKind tags how a concrete was classified at registration time.
type bindingKind int

const (
	kindInstance bindingKind = iota
	kindCallable
	kindClass
	kindLiteral
)

func (k bindingKind) String() string {
	switch k {
	case kindInstance:
		return "instance"
	case kindCallable:
		return "callable"
	case kindClass:
		return "class"
	default:
		return "literal"
	}
}

// definition is a stored recipe: a callable or class target plus the
// arguments passed to it. Arguments are resolved at build time.
type definition struct {
	kind  bindingKind
	fn    reflect.Value
	class *Class
	args  []any
}

// binding is the tagged result of classifying a concrete.
type binding struct {
	kind  bindingKind
	value any         // kindInstance, kindLiteral
	def   *definition // kindCallable, kindClass
}

// ── Store ─────────────────────────────────────────────────────────────────────

// store holds raw registration data. It has no locking or logic of its own;
// the owning Container guards it.
type store struct {
	// abstract → transient definition
	definitions map[string]*definition

	// abstract → shared definition
	sharedDefinitions map[string]*definition

	// abstract → resolved shared instance, never evicted
	instances map[string]any

	// abstract → extender funcs
	extenders map[string][]Extender

	// consulted in order when local lookup fails
	delegates []Interface
}

func newStore() *store {
	return &store{
		definitions:       make(map[string]*definition),
		sharedDefinitions: make(map[string]*definition),
		instances:         make(map[string]any),
		extenders:         make(map[string][]Extender),
	}
}

func (s *store) has(id string) bool {
	if _, ok := s.definitions[id]; ok {
		return true
	}
	if _, ok := s.sharedDefinitions[id]; ok {
		return true
	}
	_, ok := s.instances[id]
	return ok
}

// put records a classified binding. A new registration replaces whatever
// was stored for id before.
func (s *store) put(id string, b binding, shared bool) {
	delete(s.definitions, id)
	delete(s.sharedDefinitions, id)
	delete(s.instances, id)

	switch {
	case b.def == nil:
		s.instances[id] = b.value
	case shared:
		s.sharedDefinitions[id] = b.def
	default:
		s.definitions[id] = b.def
	}
}

// ── Identifiers ───────────────────────────────────────────────────────────────

// Separator is the namespace separator stripped from the front of
// identifiers, so `\Foo` and `Foo` address the same binding.
const Separator = `\`

// Normalize strips a single leading Separator from id.
func Normalize(id string) string {
	return strings.TrimPrefix(id, Separator)
}

// ── Classification ────────────────────────────────────────────────────────────

// classify decides, once, how concrete is stored: an object instance, a
// callable definition, a class definition or a literal value.
func classify(concrete any, classes *ClassRegistry) binding {
	switch v := concrete.(type) {
	case string:
		if k, ok := classes.Lookup(v); ok {
			return binding{kind: kindClass, def: &definition{kind: kindClass, class: k}}
		}
		return binding{kind: kindLiteral, value: v}
	case reflect.Type:
		if name, ok := classes.NameOf(v); ok {
			k, _ := classes.Lookup(name)
			return binding{kind: kindClass, def: &definition{kind: kindClass, class: k}}
		}
		return binding{kind: kindInstance, value: v}
	case []any:
		if len(v) == 0 {
			return binding{kind: kindLiteral, value: v}
		}
		head, args := v[0], append([]any(nil), v[1:]...)
		if fn, ok := callable(head); ok {
			return binding{kind: kindCallable, def: &definition{kind: kindCallable, fn: fn, args: args}}
		}
		if name, ok := head.(string); ok {
			if k, ok := classes.Lookup(name); ok {
				return binding{kind: kindClass, def: &definition{kind: kindClass, class: k, args: args}}
			}
		}
		return binding{kind: kindLiteral, value: v}
	}

	if fn, ok := callable(concrete); ok {
		return binding{kind: kindCallable, def: &definition{kind: kindCallable, fn: fn}}
	}
	if isObject(concrete) {
		return binding{kind: kindInstance, value: concrete}
	}
	return binding{kind: kindLiteral, value: concrete}
}

func callable(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return reflect.Value{}, false
	}
	return fn, true
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Ptr, reflect.Struct, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}
