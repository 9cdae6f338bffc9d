package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/logging"
	"github.com/km-arc/go-container/framework/providers"
	"github.com/km-arc/go-container/framework/routing"
)

// Version is reported by the CLI and the Application.
const Version = "0.1.0"

// Application is the top-level container. It embeds the root Container so
// user code can call app.Bind(), app.Share(), app.Get() directly, and
// delegates, in order, to a ReflectionContainer and a
// ServiceProviderContainer.
type Application struct {
	*container.Container
	Reflection *container.ReflectionContainer
	Providers  *container.ServiceProviderContainer

	cfg *config.Config
	log zerolog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	envFiles []string
	cfg      *config.Config
	logger   *zerolog.Logger
	classes  *container.ClassRegistry
	routes   []func(r *routing.Router)
}

// WithEnvFiles sets the .env files loaded when no Config is given.
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithConfig uses cfg instead of loading the environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger overrides the logger built from config.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithClasses sets the class registry. Defaults to container.DefaultClasses.
func WithClasses(r *container.ClassRegistry) Option {
	return func(o *options) { o.classes = r }
}

// WithRoutes adds routes mounted when the router boots.
func WithRoutes(fns ...func(r *routing.Router)) Option {
	return func(o *options) { o.routes = append(o.routes, fns...) }
}

// New creates the application and adds the framework providers
// (config, logger, router, metrics). Nothing is registered until first requested.
func New(opts ...Option) (*Application, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.Load(o.envFiles...)
	}
	log := logging.New(cfg.Log)
	if o.logger != nil {
		log = *o.logger
	}
	classes := o.classes
	if classes == nil {
		classes = container.DefaultClasses
	}

	c := container.New(
		container.WithLogger(log),
		container.WithClasses(classes),
		container.WithMaxDepth(cfg.Container.MaxDepth),
	)
	a := &Application{
		Container:  c,
		Reflection: container.NewReflectionContainer(nil),
		Providers:  container.NewServiceProviderContainer(),
		cfg:        cfg,
		log:        log,
	}
	c.Delegate(a.Reflection)
	c.Delegate(a.Providers)

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: &log},
		&providers.RoutingServiceProvider{Routes: o.routes},
		&providers.MetricsServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a service provider, given as a value or as an identifier.
func (a *Application) Register(provider any) error {
	return a.AddServiceProvider(provider)
}

// Boot runs the boot pass on all providers. Calling it again is a no-op.
func (a *Application) Boot() error {
	return a.BootServiceProviders()
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.cfg }

// Log returns the application logger.
func (a *Application) Log() zerolog.Logger { return a.log }

// Router resolves *routing.Router from the container.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a, "router")
}

// Handler boots the application (if needed) and returns the router.
func (a *Application) Handler() (http.Handler, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	router, err := a.Router()
	if err != nil {
		return nil, err
	}
	return router, nil
}

// Run boots the application and serves HTTP until ctx is cancelled, then
// shuts the server down gracefully.
func (a *Application) Run(ctx context.Context) error {
	h, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr(),
		Handler:           h,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("app", a.cfg.App.Name).
			Str("env", a.cfg.App.Env).
			Str("addr", srv.Addr).
			Msg("http: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http: serve")
	case <-ctx.Done():
	}

	timeout := a.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.log.Info().Msg("http: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http: shutdown")
	}
	return nil
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.cfg.App.Debug }
func (a *Application) Version() string     { return Version }
