package providers

import (
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	gohttp "github.com/km-arc/go-container/framework/http"
	"github.com/km-arc/go-container/framework/logging"
	"github.com/km-arc/go-container/framework/metrics"
	"github.com/km-arc/go-container/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration as "config".
//
// Bound identifiers:
//   - "config"  → *config.Config
//
// Config, when set, is shared as-is; otherwise EnvFiles are loaded on first
// request.
type ConfigServiceProvider struct {
	container.BaseProvider
	Config   *config.Config
	EnvFiles []string
}

// NewConfigServiceProvider creates a provider loading envFiles lazily.
func NewConfigServiceProvider(envFiles ...string) *ConfigServiceProvider {
	return &ConfigServiceProvider{EnvFiles: envFiles}
}

func (p *ConfigServiceProvider) Provides() []string { return []string{"config"} }

func (p *ConfigServiceProvider) Register() error {
	if p.Config != nil {
		return p.Share("config", p.Config)
	}
	envFiles := p.EnvFiles
	return p.Share("config", func() *config.Config {
		return config.Load(envFiles...)
	})
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the application logger.
//
// Bound identifiers:
//   - "logger"  → zerolog.Logger
//
// Logger, when set, is shared as-is; otherwise one is built from the
// "config" service's Log section, writing to Writer (default stderr).
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *zerolog.Logger
	Writer io.Writer
}

func (p *LoggingServiceProvider) Provides() []string { return []string{"logger"} }

func (p *LoggingServiceProvider) Register() error {
	if p.Logger != nil {
		log := *p.Logger
		return p.Share("logger", func() zerolog.Logger { return log })
	}
	w := p.Writer
	if w == nil {
		w = os.Stderr
	}
	return p.Share("logger", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		return logging.NewWithWriter(cfg.Log, w), nil
	})
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider binds the HTTP router and, at boot, mounts the
// container introspection routes plus any Routes callbacks.
//
// Bound identifiers:
//   - "router"  → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
	Routes []func(r *routing.Router)
}

func (p *RoutingServiceProvider) Provides() []string { return []string{"router"} }

func (p *RoutingServiceProvider) Register() error {
	return p.Share("router", func(c *container.Container) (any, error) {
		log, err := container.Resolve[zerolog.Logger](c, "logger")
		if err != nil {
			return nil, err
		}
		return routing.New(log), nil
	})
}

func (p *RoutingServiceProvider) Boot() error {
	root := p.Container()
	router, err := container.Resolve[*routing.Router](root, "router")
	if err != nil {
		return err
	}
	gohttp.NewIntrospector(root).Mount(router)
	for _, fn := range p.Routes {
		fn(router)
	}
	return nil
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider counts constructed values per identifier.
//
// Bound identifiers:
//   - "metrics"  → *metrics.Resolutions
//
// Boot hooks the counter into the root container and serves the counts at
// GET /container/metrics.
type MetricsServiceProvider struct {
	container.BaseProvider
}

func (p *MetricsServiceProvider) Provides() []string { return []string{"metrics"} }

func (p *MetricsServiceProvider) Register() error {
	return p.Share("metrics", metrics.NewResolutions)
}

func (p *MetricsServiceProvider) Boot() error {
	root, ok := p.Container().(*container.Container)
	if !ok {
		return container.UnsupportedError{Op: "AfterResolving"}
	}
	m, err := container.Resolve[*metrics.Resolutions](root, "metrics")
	if err != nil {
		return err
	}
	root.AfterResolving(m.Observe)

	router, err := container.Resolve[*routing.Router](root, "router")
	if err != nil {
		return err
	}
	router.Get("/container/metrics", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(m.Snapshot())
	})
	return nil
}
