package container

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ── Container ─────────────────────────────────────────────────────────────────

// core is the state shared by a Container and every view of it handed to
// factories and extenders.
type core struct {
	mu sync.RWMutex
	*store

	classes  *ClassRegistry
	maxDepth int
	log      zerolog.Logger

	// abstract → lock serializing the first build of a shared definition
	building map[string]*sync.Mutex

	// resolved callbacks: []func(abstract, instance)
	afterResolving []func(string, any)
}

// Container is the root of a delegation chain.
//
// It supports:
//   - Bind / Share of instances, literals, callables and class identifiers
//   - Get / Has with delegation to sub-containers
//   - Extend (decorate values when they are constructed)
//   - Forwarding of service-provider registration to a ProviderRegistrar
//
// The *Container passed to factories and extenders is a view of the same
// container that also tracks the resolution in progress, so a factory that
// calls Get takes part in cycle detection.
type Container struct {
	*core
	trace *trace
}

// Option configures a Container.
type Option func(*core)

// WithLogger sets the logger used for debug events. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(k *core) { k.log = l }
}

// WithClasses sets the class registry used to recognise class identifiers.
// Defaults to DefaultClasses.
func WithClasses(r *ClassRegistry) Option {
	return func(k *core) {
		if r != nil {
			k.classes = r
		}
	}
}

// WithMaxDepth bounds nested resolution depth. Values <= 0 select
// DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(k *core) {
		if n <= 0 {
			n = DefaultMaxDepth
		}
		k.maxDepth = n
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	k := &core{
		store:    newStore(),
		classes:  DefaultClasses,
		maxDepth: DefaultMaxDepth,
		log:      zerolog.Nop(),
		building: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(k)
	}
	return &Container{core: k}
}

// within returns a view of c that carries t.
func (c *Container) within(t *trace) *Container {
	return &Container{core: c.core, trace: t}
}

// root returns c without any resolution in progress.
func (c *Container) root() *Container {
	if c.trace == nil {
		return c
	}
	return &Container{core: c.core}
}

// Classes returns the class registry the container consults.
func (c *Container) Classes() *ClassRegistry { return c.classes }

// Logger returns the container's logger.
func (c *Container) Logger() zerolog.Logger { return c.log }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers concrete under id as a transient binding. A nil concrete
// means id itself, which is useful for class identifiers:
//
//	c.Bind(container.DefineType[*Widget](reg), nil)
//
// How concrete is stored depends on what it is:
//
//	c.Bind("config", cfg)                                  // object: cached as is
//	c.Bind("mailer", NewMailer)                            // func: called on every Get
//	c.Bind("greeting", []any{strings.ToUpper, "hi"})       // func + arguments
//	c.Bind("widget", "example.com/app.Widget")             // class identifier
//	c.Bind("port", 8080)                                   // literal: cached as is
func (c *Container) Bind(id string, concrete any) {
	c.bind(id, concrete, false)
}

// Share registers concrete under id; the first resolved value is cached and
// returned by every later Get.
//
//	c.Share("cache", func(c *container.Container) (any, error) {
//	    return cache.New(), nil
//	})
func (c *Container) Share(id string, concrete any) {
	c.bind(id, concrete, true)
}

func (c *Container) bind(id string, concrete any, shared bool) {
	id = Normalize(id)
	if concrete == nil {
		concrete = id
	}
	if s, ok := concrete.(string); ok {
		concrete = Normalize(s)
	}

	b := classify(concrete, c.classes)
	if b.kind == kindInstance {
		b.value = c.applyExtenders(id, b.value, c.trace)
	}

	c.mu.Lock()
	c.store.put(id, b, shared)
	c.mu.Unlock()

	c.log.Debug().
		Str("id", id).
		Stringer("kind", b.kind).
		Bool("shared", shared || b.def == nil).
		Msg("container: bound")
}

// Extend decorates the values constructed for id from now on. Values that
// are already cached are not extended again.
//
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return &TimestampLogger{Inner: instance.(*Logger)}
//	})
func (c *Container) Extend(id string, fn Extender) error {
	id = Normalize(id)
	if !c.Has(id) {
		return NotFoundError{ID: id}
	}
	if fn == nil {
		return InvalidArgumentError{Op: "extend " + strconv.Quote(id), Reason: "extender must be a non-nil func"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.extenders[id] = append(c.extenders[id], fn)
	return nil
}

// Delegate appends d to the containers consulted when a lookup fails
// locally. Aware delegates receive c as their back-reference.
//
//	c.Delegate(container.NewReflectionContainer(nil))
func (c *Container) Delegate(d Interface) *Container {
	if d == nil {
		return c
	}
	if dc, ok := d.(*Container); ok && dc.core == c.core {
		c.log.Warn().Msg("container: ignoring delegation to itself")
		return c
	}

	c.mu.Lock()
	c.delegates = append(c.delegates, d)
	c.mu.Unlock()

	if a, ok := d.(Aware); ok {
		a.SetContainer(c.root())
	}
	c.log.Debug().Str("delegate", fmt.Sprintf("%T", d)).Msg("container: delegate added")
	return c
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Has reports whether id is bound here or in any delegate.
func (c *Container) Has(id string) bool {
	return c.has(Normalize(id), make(map[*core]bool))
}

func (c *Container) has(id string, seen map[*core]bool) bool {
	seen[c.core] = true

	c.mu.RLock()
	if c.store.has(id) {
		c.mu.RUnlock()
		return true
	}
	delegates := append([]Interface(nil), c.delegates...)
	c.mu.RUnlock()

	for _, d := range delegates {
		if dc, ok := d.(*Container); ok {
			if !seen[dc.core] && dc.has(id, seen) {
				return true
			}
			continue
		}
		if d.Has(id) {
			return true
		}
	}
	return false
}

// Get resolves id: cached instance, then shared definition, then transient
// definition, then the first delegate that has it.
func (c *Container) Get(id string) (any, error) {
	return c.getTraced(id, c.trace)
}

func (c *Container) getTraced(id string, t *trace) (any, error) {
	id = Normalize(id)
	t, err := resume(t).push(c.core, id, frameGet, c.maxDepth)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	if inst, ok := c.instances[id]; ok {
		c.mu.RUnlock()
		return inst, nil
	}
	shared, isShared := c.sharedDefinitions[id]
	def, isTransient := c.definitions[id]
	delegates := append([]Interface(nil), c.delegates...)
	c.mu.RUnlock()

	switch {
	case isShared:
		return c.resolveShared(id, shared, t)
	case isTransient:
		instance, err := c.build(id, def, t)
		if err != nil {
			return nil, err
		}
		instance = c.applyExtenders(id, instance, t)
		c.fireAfterResolving(id, instance)
		return instance, nil
	}

	for _, d := range delegates {
		if !d.Has(id) {
			continue
		}
		instance, err := getVia(d, id, t)
		if err != nil {
			return nil, err
		}
		c.log.Debug().Str("id", id).Str("delegate", fmt.Sprintf("%T", d)).Msg("container: resolved by delegate")

		// A registrar binds id here and resolves it through c, which has
		// already extended and reported the value.
		c.mu.RLock()
		local := c.store.has(id)
		c.mu.RUnlock()
		if local {
			return instance, nil
		}
		instance = c.applyExtenders(id, instance, t)
		c.fireAfterResolving(id, instance)
		return instance, nil
	}

	return nil, NotFoundError{ID: id}
}

// resolveShared builds a shared definition at most once, even when several
// goroutines ask for it at the same time.
func (c *Container) resolveShared(id string, def *definition, t *trace) (any, error) {
	if t.contains(c.core, id, frameShared) {
		return nil, CyclicResolutionError{ID: id, Path: t.path()}
	}
	t, err := t.push(c.core, id, frameShared, c.maxDepth)
	if err != nil {
		return nil, err
	}

	lock := c.buildLock(id)
	lock.Lock()
	defer lock.Unlock()

	c.mu.RLock()
	inst, ok := c.instances[id]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	instance, err := c.build(id, def, t)
	if err != nil {
		return nil, err
	}
	instance = c.applyExtenders(id, instance, t)

	c.mu.Lock()
	// A concurrent Bind may have replaced the definition while it was built.
	if c.sharedDefinitions[id] == def {
		c.instances[id] = instance
	}
	c.mu.Unlock()

	c.fireAfterResolving(id, instance)
	return instance, nil
}

func (c *Container) buildLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.building[id]
	if !ok {
		l = &sync.Mutex{}
		c.building[id] = l
	}
	return l
}

// build runs a definition. Without arguments a callable receives the
// container and a class is constructed bare; with arguments, every string
// argument naming a known identifier is replaced by its resolved value.
func (c *Container) build(id string, def *definition, t *trace) (any, error) {
	op := "resolve " + strconv.Quote(id)

	var (
		instance any
		args     []any
		err      error
	)
	if len(def.args) > 0 {
		args, err = c.resolveArguments(def.args, t)
		if err != nil {
			return nil, err
		}
	}
	during(t, func() {
		switch {
		case def.kind == kindCallable && len(def.args) == 0:
			instance, err = callWithContainer(op, def.fn, c.within(t))
		case def.kind == kindCallable:
			instance, err = call(op, def.fn, args)
		default:
			instance, err = construct(op, def.class, args)
		}
	})
	if err != nil {
		return nil, wrap(err, id)
	}
	return instance, nil
}

// resolveArguments returns a new slice in which every string argument that
// names a known identifier is replaced by its resolved value.
func (c *Container) resolveArguments(args []any, t *trace) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = arg
		s, ok := arg.(string)
		if !ok || !c.has(Normalize(s), make(map[*core]bool)) {
			continue
		}
		v, err := c.getTraced(s, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *Container) applyExtenders(id string, instance any, t *trace) any {
	c.mu.RLock()
	exts := c.extenders[id]
	c.mu.RUnlock()
	if len(exts) == 0 {
		return instance
	}
	view := c.within(t)
	during(t, func() {
		for _, ext := range exts {
			instance = ext(instance, view)
		}
	})
	return instance
}

// wrap annotates foreign errors (from factories and constructors) with the
// identifier being built. The container's own errors already carry it.
func wrap(err error, id string) error {
	switch err.(type) {
	case NotFoundError, InvalidArgumentError, CyclicResolutionError, UnsupportedError:
		return err
	}
	return errors.Wrapf(err, "container: building %q", id)
}

// ── Forwarding ────────────────────────────────────────────────────────────────

// AddServiceProvider forwards to the first delegate that is a
// ProviderRegistrar.
//
//	c.Delegate(container.NewServiceProviderContainer())
//	err := c.AddServiceProvider(&MailServiceProvider{})
func (c *Container) AddServiceProvider(ref any) error {
	r := c.registrar(make(map[*core]bool))
	if r == nil {
		return UnsupportedError{Op: "AddServiceProvider"}
	}
	return r.AddServiceProvider(ref)
}

// BootServiceProviders forwards to the first delegate that is a
// ProviderRegistrar.
func (c *Container) BootServiceProviders() error {
	r := c.registrar(make(map[*core]bool))
	if r == nil {
		return UnsupportedError{Op: "BootServiceProviders"}
	}
	return r.BootServiceProviders()
}

func (c *Container) registrar(seen map[*core]bool) ProviderRegistrar {
	seen[c.core] = true

	c.mu.RLock()
	delegates := append([]Interface(nil), c.delegates...)
	c.mu.RUnlock()

	for _, d := range delegates {
		if dc, ok := d.(*Container); ok {
			if seen[dc.core] {
				continue
			}
			if r := dc.registrar(seen); r != nil {
				return r
			}
			continue
		}
		if r, ok := d.(ProviderRegistrar); ok {
			return r
		}
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Resolved returns true if id holds a cached instance.
func (c *Container) Resolved(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[Normalize(id)]
	return ok
}

// Bindings returns the locally registered identifiers, sorted.
func (c *Container) Bindings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]string, 0, len(c.definitions)+len(c.sharedDefinitions)+len(c.instances))
	for _, m := range []map[string]*definition{c.definitions, c.sharedDefinitions} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	for k := range c.instances {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// AfterResolving registers a callback fired whenever a value is constructed
// (not when a cached instance is returned).
func (c *Container) AfterResolving(cb func(id string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireAfterResolving(id string, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(id, instance)
	}
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve is a generic helper that calls Get and type-asserts the result.
//
//	db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c Interface, id string) (T, error) {
	var zero T
	instance, err := c.Get(id)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, InvalidArgumentError{
			Op:     "resolve " + strconv.Quote(id),
			Reason: fmt.Sprintf("resolved to %T, not %s", instance, reflect.TypeOf((*T)(nil)).Elem()),
		}
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c Interface, id string) T {
	typed, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return typed
}
