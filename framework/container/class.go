package container

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ── Classes ───────────────────────────────────────────────────────────────────

// Class describes a constructible type: the type it produces, an optional
// constructor function and defaults for constructor parameters.
type Class struct {
	name     string
	typ      reflect.Type
	ctor     reflect.Value
	defaults map[int]any
}

// Name returns the identifier the class was registered under.
func (k *Class) Name() string { return k.name }

// Type returns the type the class produces.
func (k *Class) Type() reflect.Type { return k.typ }

// HasConstructor reports whether the class was defined with a constructor.
func (k *Class) HasConstructor() bool { return k.ctor.IsValid() }

// Default returns the declared default for constructor parameter i.
func (k *Class) Default(i int) (any, bool) {
	v, ok := k.defaults[i]
	return v, ok
}

// zero instantiates the class without calling a constructor.
// Pointer types yield a pointer to a fresh zero value.
func (k *Class) zero() any {
	if k.typ.Kind() == reflect.Ptr {
		return reflect.New(k.typ.Elem()).Interface()
	}
	return reflect.New(k.typ).Elem().Interface()
}

// ClassOption customises a class definition.
type ClassOption func(*Class)

// WithDefault declares the value used for constructor parameter index when
// the parameter cannot be resolved from the container.
//
//	reg.Define("mailer", NewMailer, container.WithDefault(1, 25))
func WithDefault(index int, value any) ClassOption {
	return func(k *Class) {
		if k.defaults == nil {
			k.defaults = make(map[int]any)
		}
		k.defaults[index] = value
	}
}

// ── ClassRegistry ─────────────────────────────────────────────────────────────

// ClassRegistry is the table of types the containers may construct by name.
// Go cannot look up a type by its name at runtime, so every type that should
// be constructible (bound by class identifier, or auto-wired by the
// ReflectionContainer) is declared here once.
type ClassRegistry struct {
	mu     sync.RWMutex
	byName map[string]*Class
	byType map[reflect.Type]string
}

// DefaultClasses is used by containers created without WithClasses.
var DefaultClasses = NewClassRegistry()

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		byName: make(map[string]*Class),
		byType: make(map[reflect.Type]string),
	}
}

// Define registers a class under name. target is one of:
//
//   - a constructor func returning T or (T, error)
//   - a reflect.Type
//   - any value whose dynamic type is the class type, e.g. (*Foo)(nil)
//
// Redefining a name replaces the previous definition.
func (r *ClassRegistry) Define(name string, target any, opts ...ClassOption) error {
	name = Normalize(name)
	if name == "" {
		return InvalidArgumentError{Op: "define", Reason: "empty class name"}
	}
	k, err := newClass(name, target)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(k)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byName[name]; ok && r.byType[old.typ] == name {
		delete(r.byType, old.typ)
	}
	r.byName[name] = k
	if _, taken := r.byType[k.typ]; !taken {
		r.byType[k.typ] = name
	}
	return nil
}

func newClass(name string, target any) (*Class, error) {
	if target == nil {
		return nil, InvalidArgumentError{Op: "define " + name, Reason: "nil target"}
	}
	if t, ok := target.(reflect.Type); ok {
		return classOfType(name, t)
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Func {
		return classOfType(name, v.Type())
	}
	if v.IsNil() {
		return nil, InvalidArgumentError{Op: "define " + name, Reason: "nil constructor"}
	}

	ft := v.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, InvalidArgumentError{
			Op:     "define " + name,
			Reason: fmt.Sprintf("constructor %s must return T or (T, error)", ft),
		}
	}
	return &Class{name: name, typ: ft.Out(0), ctor: v}, nil
}

func classOfType(name string, t reflect.Type) (*Class, error) {
	if t.Kind() == reflect.Interface {
		return nil, InvalidArgumentError{
			Op:     "define " + name,
			Reason: "interface " + t.String() + " is not instantiable without a constructor",
		}
	}
	return &Class{name: name, typ: t}, nil
}

// Has reports whether name is a registered class.
func (r *ClassRegistry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Lookup returns the class registered under name.
func (r *ClassRegistry) Lookup(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[Normalize(name)]
	return k, ok
}

// NameOf returns the identifier of the first class registered for t.
func (r *ClassRegistry) NameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

// Names returns all registered class identifiers, sorted.
func (r *ClassRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefineType registers T without a constructor under TypeKey(T) and returns
// that identifier.
//
//	name := container.DefineType[*Widget](reg) // "example.com/app.Widget"
func DefineType[T any](r *ClassRegistry, opts ...ClassOption) string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	name := typeKey(t)
	if err := r.Define(name, t, opts...); err != nil {
		panic(err)
	}
	return name
}

// DefineConstructor registers fn as the constructor of the type it returns,
// under TypeKey of that type, and returns the identifier.
func DefineConstructor(r *ClassRegistry, fn any, opts ...ClassOption) (string, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.Type().NumOut() == 0 {
		return "", InvalidArgumentError{Op: "define constructor", Reason: fmt.Sprintf("%T is not a constructor", fn)}
	}
	name := typeKey(v.Type().Out(0))
	return name, r.Define(name, fn, opts...)
}

// ── Type keys ─────────────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// identifier when working with interfaces.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "main.UserRepository"
//	c.Share(key, factory)
//	repo, err := container.Resolve[UserRepository](c, key)
func TypeKey(v any) string {
	if t, ok := v.(reflect.Type); ok {
		return typeKey(t)
	}
	return typeKey(reflect.TypeOf(v))
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// isNamedType reports whether t, or the type t points to, is a named type
// declared outside the builtin universe.
func isNamedType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name() != "" && t.PkgPath() != ""
}
