// Package container provides a dependency-injection container with
// delegation, reflection-based auto-wiring and lazily registered service
// providers.
//
// # Overview
//
// A Container maps string identifiers to instances, literals, callables or
// class identifiers. Values are built on demand, optionally cached as
// shared instances, and may be decorated by extenders. Lookups the container
// cannot answer are delegated, in order, to sub-containers such as a
// ReflectionContainer or a ServiceProviderContainer.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Delegate: c.Delegate(container.NewReflectionContainer(nil))
//  3. Register providers: c.Delegate(container.NewServiceProviderContainer())
//     then c.AddServiceProvider(&MyProvider{})
//  4. Boot: c.BootServiceProviders()
//  5. Resolve: c.Get("mailer")
//
// # Bindings
//
//	// Transient: built on every Get
//	c.Bind("clock", func() time.Time { return time.Now() })
//
//	// Shared: built once, reused
//	c.Share("cache", func(c *container.Container) (any, error) {
//	    return cache.New(container.MustResolve[*Config](c, "config")), nil
//	})
//
//	// Arguments: strings naming known identifiers are resolved first
//	c.Bind("greeting", []any{func(s string) string { return s }, "hello world"})
//
//	// Pre-built value, always shared
//	c.Bind("config", cfg)
//
// # Classes
//
// Go cannot construct a type from its name, so constructible types are
// declared once in a ClassRegistry. A class identifier can then be bound, or
// resolved without any binding by a ReflectionContainer:
//
//	name := container.DefineType[*Widget](container.DefaultClasses)
//	c.Bind(name, nil)
//	w, err := container.Resolve[*Widget](c, name)
//
// # Resolving
//
//	raw, err := c.Get("cache")
//	cache, err := container.Resolve[*Cache](c, "cache")
//
// # Extend / Decorate
//
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return &TimestampLogger{Inner: instance.(*Logger)}
//	})
//
// # Service Providers
//
//	type MailServiceProvider struct{ container.BaseProvider }
//
//	func (p *MailServiceProvider) Register() error {
//	    return p.Share("mailer", mail.NewSMTP)
//	}
//
//	c.Delegate(container.NewServiceProviderContainer())
//	_ = c.AddServiceProvider(&MailServiceProvider{
//	    BaseProvider: container.BaseProvider{Services: []string{"mailer"}},
//	})
//	mailer, err := c.Get("mailer") // Register runs here
//
// # Errors
//
// Failures are typed: NotFoundError, InvalidArgumentError,
// CyclicResolutionError and UnsupportedError, each matching its Err*
// sentinel through errors.Is.
package container
