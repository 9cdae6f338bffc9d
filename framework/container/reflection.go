package container

import (
	"fmt"
	"reflect"
	"strconv"
)

// ReflectionContainer auto-wires registered classes that have no explicit
// binding. It reads a class's constructor parameters and resolves each one
// from the associated container (its back-reference, or itself):
//
//   - a parameter whose type is a registered class, or any named type
//     declared outside the builtin universe, is resolved by its identifier;
//   - otherwise the declared default (WithDefault) is used;
//   - otherwise resolution fails with NotFoundError.
//
// An identifier parameter that cannot be resolved falls back to its default
// when one is declared. The container holds no state apart from the
// back-reference and never caches what it builds.
//
//	c := container.New()
//	c.Delegate(container.NewReflectionContainer(nil))
//	svc, err := c.Get(container.TypeKey((*UserService)(nil)))
type ReflectionContainer struct {
	AwareBase
	classes *ClassRegistry
}

// NewReflectionContainer creates a ReflectionContainer over classes. A nil
// registry selects the associated *Container's registry, or DefaultClasses.
func NewReflectionContainer(classes *ClassRegistry) *ReflectionContainer {
	return &ReflectionContainer{classes: classes}
}

func (r *ReflectionContainer) registry() *ClassRegistry {
	if r.classes != nil {
		return r.classes
	}
	if c, ok := r.Container().(*Container); ok {
		return c.Classes()
	}
	return DefaultClasses
}

func (r *ReflectionContainer) associated() Interface {
	if c := r.Container(); c != nil {
		return c
	}
	return r
}

// Has reports whether id names a registered class.
func (r *ReflectionContainer) Has(id string) bool {
	return r.registry().Has(Normalize(id))
}

// Get constructs a new instance of the class named id.
func (r *ReflectionContainer) Get(id string) (any, error) {
	return r.getTraced(id, nil)
}

func (r *ReflectionContainer) getTraced(id string, t *trace) (any, error) {
	id = Normalize(id)
	k, ok := r.registry().Lookup(id)
	if !ok {
		return nil, NotFoundError{ID: id, Reason: "not a registered class and therefore cannot be auto-wired"}
	}
	t, err := resume(t).push(r, id, frameGet, 0)
	if err != nil {
		return nil, err
	}
	if !k.HasConstructor() {
		return k.zero(), nil
	}

	args, err := r.reflectArguments(k, t)
	if err != nil {
		return nil, err
	}
	var instance any
	during(t, func() {
		instance, err = call("autowire "+strconv.Quote(id), k.ctor, args)
	})
	if err != nil {
		return nil, wrap(err, id)
	}
	return instance, nil
}

// reflectArguments resolves one value per non-variadic constructor
// parameter, in declaration order.
func (r *ReflectionContainer) reflectArguments(k *Class, t *trace) ([]any, error) {
	ft := k.ctor.Type()
	n := ft.NumIn()
	if ft.IsVariadic() {
		n--
	}

	reg := r.registry()
	c := r.associated()
	args := make([]any, n)
	for i := 0; i < n; i++ {
		pt := ft.In(i)
		def, hasDefault := k.Default(i)

		if id, ok := parameterIdentifier(reg, pt); ok {
			if c.Has(id) {
				v, err := getVia(c, id, t)
				if err != nil {
					return nil, err
				}
				args[i] = v
				continue
			}
			if hasDefault {
				args[i] = def
				continue
			}
			return nil, unresolvable(k, i, pt)
		}

		if !hasDefault {
			return nil, unresolvable(k, i, pt)
		}
		if s, ok := def.(string); ok && c.Has(s) {
			v, err := getVia(c, s, t)
			if err != nil {
				return nil, err
			}
			args[i] = v
			continue
		}
		args[i] = def
	}
	return args, nil
}

// parameterIdentifier returns the identifier a parameter of type pt is resolved by.
func parameterIdentifier(reg *ClassRegistry, pt reflect.Type) (string, bool) {
	if name, ok := reg.NameOf(pt); ok {
		return name, true
	}
	if isNamedType(pt) {
		return typeKey(pt), true
	}
	return "", false
}

func unresolvable(k *Class, i int, pt reflect.Type) error {
	return NotFoundError{
		ID:     k.name,
		Reason: fmt.Sprintf("unable to resolve a value for parameter %d (%s) of %s", i, pt, k.ctor.Type()),
	}
}
