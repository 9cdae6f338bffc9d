package http

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/routing"
)

// Introspector serves read-only views of a container.
//
//	GET /healthz                  → {"data": {"status": "ok"}}
//	GET /container/bindings       → {"data": ["config", "logger", ...]}
//	GET /container/has/{id}       → {"data": {"id": "config", "has": true}}
//	GET /container/resolve/{id}   → {"data": {"id": "config", "has": true, "type": "*config.Config"}}
type Introspector struct {
	c container.Interface
}

// NewIntrospector creates an Introspector over c.
func NewIntrospector(c container.Interface) *Introspector {
	return &Introspector{c: c}
}

// Mount registers the introspection routes on r.
func (i *Introspector) Mount(r *routing.Router) {
	r.Get("/healthz", i.Healthz)
	r.Group(func(g *routing.Router) {
		// Answers reflect live container state.
		g.Middleware(middleware.NoCache)
		g.Prefix("/container", func(cr *routing.Router) {
			cr.Get("/bindings", i.Bindings)
			cr.Get("/has/{id}", i.Has)
			cr.Get("/resolve/{id}", i.Resolve)
		})
	})
}

func (i *Introspector) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponse(w).Success(map[string]string{"status": "ok"})
}

// Bindings lists every identifier the container can enumerate.
func (i *Introspector) Bindings(w http.ResponseWriter, r *http.Request) {
	e, ok := i.c.(container.Enumerator)
	if !ok {
		NewResponse(w).ContainerError(container.UnsupportedError{Op: "list bindings"})
		return
	}
	NewResponse(w).Success(e.Identifiers())
}

func (i *Introspector) Has(w http.ResponseWriter, r *http.Request) {
	id := container.Normalize(routing.Param(r, "id"))
	NewResponse(w).Success(map[string]any{"id": id, "has": i.c.Has(id)})
}

// Resolve resolves the identifier and reports the Go type it produced.
func (i *Introspector) Resolve(w http.ResponseWriter, r *http.Request) {
	res := container.Inspect(i.c, routing.Param(r, "id"))
	if err := res.Err(); err != nil {
		NewResponse(w).ContainerError(err)
		return
	}
	NewResponse(w).Success(res)
}
