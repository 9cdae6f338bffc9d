package container

import "sync"

// Interface is the read side shared by every container in a delegation
// chain.
type Interface interface {
	Has(id string) bool
	Get(id string) (any, error)
}

// Aware is implemented by delegates and providers that want a back-reference
// to the container delegating to them. The reference is used for routing
// calls back to the root only; it does not own the container.
type Aware interface {
	SetContainer(c Interface)
	Container() Interface
}

// AwareBase is an embeddable implementation of Aware.
//
//	type MyDelegate struct{ container.AwareBase }
type AwareBase struct {
	mu sync.RWMutex
	c  Interface
}

// SetContainer stores the back-reference.
func (a *AwareBase) SetContainer(c Interface) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.c = c
}

// Container returns the back-reference, or nil if none was set.
func (a *AwareBase) Container() Interface {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.c
}

// ProviderRegistrar is the forwardable service-provider capability. A root
// Container forwards AddServiceProvider and BootServiceProviders to the
// first delegate implementing it.
type ProviderRegistrar interface {
	AddServiceProvider(ref any) error
	BootServiceProviders() error
}

// Binder is implemented by containers that accept registrations.
type Binder interface {
	Bind(id string, concrete any)
	Share(id string, concrete any)
}
