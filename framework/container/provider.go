package container

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider bundles bindings that are installed lazily: Register runs
// only when one of the identifiers returned by Provides is first requested.
//
//	type MailServiceProvider struct{ container.BaseProvider }
//
//	func NewMailServiceProvider() *MailServiceProvider {
//	    return &MailServiceProvider{BaseProvider: container.BaseProvider{Services: []string{"mailer"}}}
//	}
//
//	func (p *MailServiceProvider) Register() error {
//	    return p.Share("mailer", mail.NewSMTP)
//	}
type ServiceProvider interface {
	// Provides lists the identifiers this provider registers.
	Provides() []string

	// Register binds the provided services into the root container.
	// Do NOT resolve services of the same provider here.
	Register() error
}

// BootableServiceProvider is a provider with an eager, run-once Boot hook.
// Boot runs in the registrar's boot pass, or immediately when the provider
// is added after that pass.
type BootableServiceProvider interface {
	ServiceProvider
	Boot() error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct implementing Aware and Provides.
// Embed it in your provider and only add Register (and Boot, if needed).
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register() error { ... }
type BaseProvider struct {
	AwareBase

	// Services is returned by Provides.
	Services []string
}

// Provides returns the advertised identifiers.
func (p *BaseProvider) Provides() []string { return p.Services }

// ProvidesService reports whether id is advertised.
func (p *BaseProvider) ProvidesService(id string) bool {
	id = Normalize(id)
	for _, s := range p.Services {
		if Normalize(s) == id {
			return true
		}
	}
	return false
}

// Bind registers a transient binding on the provider's container.
func (p *BaseProvider) Bind(id string, concrete any) error {
	b, err := p.binder("Bind")
	if err != nil {
		return err
	}
	b.Bind(id, concrete)
	return nil
}

// Share registers a shared binding on the provider's container.
func (p *BaseProvider) Share(id string, concrete any) error {
	b, err := p.binder("Share")
	if err != nil {
		return err
	}
	b.Share(id, concrete)
	return nil
}

func (p *BaseProvider) binder(op string) (Binder, error) {
	b, ok := p.Container().(Binder)
	if !ok {
		return nil, UnsupportedError{Op: op}
	}
	return b, nil
}

// ── ServiceProviderContainer ──────────────────────────────────────────────────

type providerEntry struct {
	key      string
	provider ServiceProvider

	regMu      sync.Mutex
	registered bool

	bootMu sync.Mutex
	booted bool
}

// ServiceProviderContainer advertises the services of its providers up
// front and registers a provider into the root container only when one of
// its services is first requested. Delegate it from a root Container:
//
//	c := container.New()
//	c.Delegate(container.NewServiceProviderContainer())
//	_ = c.AddServiceProvider(NewMailServiceProvider())
//	_ = c.BootServiceProviders()
//	mailer, err := c.Get("mailer") // runs MailServiceProvider.Register once
//
// Each provider's Register runs at most once; a failed Register is retried
// on the next lookup.
type ServiceProviderContainer struct {
	AwareBase

	mu sync.RWMutex

	// provider key → entry
	providers map[string]*providerEntry

	// registration order
	order []*providerEntry

	// service identifier → provider key
	provides map[string]string

	booted bool

	classes *ClassRegistry
	log     *zerolog.Logger
}

// ProviderOption configures a ServiceProviderContainer.
type ProviderOption func(*ServiceProviderContainer)

// WithProviderLogger sets the logger. Defaults to the root container's.
func WithProviderLogger(l zerolog.Logger) ProviderOption {
	return func(s *ServiceProviderContainer) { s.log = &l }
}

// WithProviderClasses sets the registry used to construct providers added
// by identifier. Defaults to the root container's.
func WithProviderClasses(r *ClassRegistry) ProviderOption {
	return func(s *ServiceProviderContainer) { s.classes = r }
}

// NewServiceProviderContainer creates an empty registrar.
func NewServiceProviderContainer(opts ...ProviderOption) *ServiceProviderContainer {
	s := &ServiceProviderContainer{
		providers: make(map[string]*providerEntry),
		provides:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ServiceProviderContainer) logger() *zerolog.Logger {
	if s.log != nil {
		return s.log
	}
	if c, ok := s.Container().(*Container); ok {
		return &c.log
	}
	nop := zerolog.Nop()
	return &nop
}

func (s *ServiceProviderContainer) registry() *ClassRegistry {
	if s.classes != nil {
		return s.classes
	}
	if c, ok := s.Container().(*Container); ok {
		return c.Classes()
	}
	return DefaultClasses
}

// AddServiceProvider adds a provider, given as a ServiceProvider value or as
// an identifier. An identifier is resolved from the root container when it
// knows it, and otherwise constructed from the class registry. Adding the
// same provider twice is a no-op.
func (s *ServiceProviderContainer) AddServiceProvider(ref any) error {
	root := s.Container()
	if root == nil {
		return InvalidArgumentError{Op: "add service provider", Reason: "registrar is not delegated from a container"}
	}

	key, instance, dup, err := s.instantiate(root, ref)
	if err != nil || dup {
		return err
	}
	provider, ok := instance.(ServiceProvider)
	if !ok {
		return InvalidArgumentError{
			Op:     "add service provider",
			Reason: fmt.Sprintf("%T is neither a known provider identifier nor a container.ServiceProvider", instance),
		}
	}

	// Providers install their bindings into the root, not into the registrar.
	if a, ok := instance.(Aware); ok {
		a.SetContainer(root)
	}

	s.mu.Lock()
	if _, dup := s.providers[key]; dup {
		s.mu.Unlock()
		return nil
	}
	e := &providerEntry{key: key, provider: provider}
	s.providers[key] = e
	s.order = append(s.order, e)
	services := provider.Provides()
	for _, id := range services {
		s.provides[Normalize(id)] = key
	}
	booted := s.booted
	s.mu.Unlock()

	s.logger().Debug().
		Str("provider", key).
		Strs("provides", services).
		Msg("container: service provider added")

	if booted {
		return s.boot(e)
	}
	return nil
}

// instantiate returns the provider key and instance for ref, or dup when a
// provider with that identifier was already added.
func (s *ServiceProviderContainer) instantiate(root Interface, ref any) (key string, instance any, dup bool, err error) {
	switch v := ref.(type) {
	case nil:
		return "", nil, false, InvalidArgumentError{Op: "add service provider", Reason: "nil provider"}
	case string:
		id := Normalize(v)
		s.mu.RLock()
		_, dup = s.providers[id]
		s.mu.RUnlock()
		if dup {
			return id, nil, true, nil
		}
		if root.Has(id) {
			instance, err = root.Get(id)
			return id, instance, false, err
		}
		k, ok := s.registry().Lookup(id)
		if !ok {
			return "", nil, false, NotFoundError{ID: id, Reason: "service provider is neither bound nor a registered class"}
		}
		instance, err = construct("add service provider "+strconv.Quote(id), k, nil)
		if err != nil {
			return "", nil, false, wrap(err, id)
		}
		return id, instance, false, nil
	default:
		return TypeKey(v), v, false, nil
	}
}

// BootServiceProviders boots every added BootableServiceProvider in
// registration order, including providers added while the pass runs, and
// then marks the registrar booted; providers added later boot immediately.
// When a Boot fails the registrar stays unbooted, and the next call retries
// the providers that have not booted yet. Calling it after a successful
// pass is a no-op.
func (s *ServiceProviderContainer) BootServiceProviders() error {
	for n := 0; ; {
		s.mu.Lock()
		if s.booted {
			s.mu.Unlock()
			return nil
		}
		if n == len(s.order) {
			s.booted = true
			s.mu.Unlock()
			break
		}
		entries := append([]*providerEntry(nil), s.order[n:]...)
		n = len(s.order)
		s.mu.Unlock()

		for _, e := range entries {
			if err := s.boot(e); err != nil {
				return err
			}
		}
	}
	s.logger().Debug().Int("providers", len(s.Providers())).Msg("container: service providers booted")
	return nil
}

func (s *ServiceProviderContainer) boot(e *providerEntry) error {
	b, ok := e.provider.(BootableServiceProvider)
	if !ok {
		return nil
	}
	e.bootMu.Lock()
	defer e.bootMu.Unlock()
	if e.booted {
		return nil
	}
	if err := b.Boot(); err != nil {
		return errors.Wrapf(err, "container: booting service provider %s", e.key)
	}
	e.booted = true
	return nil
}

// Booted returns true once a BootServiceProviders pass has completed.
func (s *ServiceProviderContainer) Booted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.booted
}

// Providers returns the added providers in registration order.
func (s *ServiceProviderContainer) Providers() []ServiceProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServiceProvider, len(s.order))
	for i, e := range s.order {
		out[i] = e.provider
	}
	return out
}

// Registered reports whether the provider advertising id has run Register.
func (s *ServiceProviderContainer) Registered(id string) bool {
	s.mu.RLock()
	e := s.providers[s.provides[Normalize(id)]]
	s.mu.RUnlock()
	if e == nil {
		return false
	}
	e.regMu.Lock()
	defer e.regMu.Unlock()
	return e.registered
}

// Has reports whether some provider advertises id.
func (s *ServiceProviderContainer) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.provides[Normalize(id)]
	return ok
}

// Get registers the provider advertising id into the root container and
// resolves id from the root.
func (s *ServiceProviderContainer) Get(id string) (any, error) {
	return s.getTraced(id, nil)
}

func (s *ServiceProviderContainer) getTraced(id string, t *trace) (any, error) {
	id = Normalize(id)

	s.mu.RLock()
	key, ok := s.provides[id]
	e := s.providers[key]
	s.mu.RUnlock()
	if !ok || e == nil {
		return nil, NotFoundError{ID: id, Reason: "no service provider advertises it"}
	}

	t = resume(t)

	// Coming back here for the same identifier means Register did not bind it.
	if t.contains(s, id, frameProvider) {
		return nil, NotFoundError{ID: id, Reason: "service provider " + e.key + " advertises it but did not register it"}
	}
	t, err := t.push(s, id, frameProvider, 0)
	if err != nil {
		return nil, err
	}

	root := s.Container()
	if root == nil {
		return nil, NotFoundError{ID: id, Reason: "registrar is not delegated from a container"}
	}
	if err := s.register(e); err != nil {
		return nil, err
	}
	return getVia(root, id, t)
}

func (s *ServiceProviderContainer) register(e *providerEntry) error {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	if e.registered {
		return nil
	}
	if err := e.provider.Register(); err != nil {
		return errors.Wrapf(err, "container: registering service provider %s", e.key)
	}
	e.registered = true
	s.logger().Debug().Str("provider", e.key).Msg("container: service provider registered")
	return nil
}
