package container_test

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-container/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type widget struct{ n int }

type engine struct{ HP int }

type car struct {
	Engine *engine
	Name   string
}

func newCar(e *engine, name string) *car { return &car{Engine: e, Name: name} }

func identity(v any) any { return v }

// newContainer returns a container with its own class registry so tests do
// not share DefaultClasses.
func newContainer(opts ...container.Option) (*container.Container, *container.ClassRegistry) {
	reg := container.NewClassRegistry()
	opts = append([]container.Option{container.WithClasses(reg)}, opts...)
	return container.New(opts...), reg
}

type mockDelegate struct{ mock.Mock }

func (m *mockDelegate) Has(id string) bool {
	return m.Called(id).Bool(0)
}

func (m *mockDelegate) Get(id string) (any, error) {
	args := m.Called(id)
	return args.Get(0), args.Error(1)
}

// ── Bind / Share ──────────────────────────────────────────────────────────────

func TestBind_CallableWithArguments(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("greeting", []any{func(arg string) string { return arg }, "hello world"})

	require.True(t, c.Has("greeting"))
	got, err := c.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestBind_InstanceIsShared(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	w := &widget{n: 1}
	c.Bind("widget", w)

	require.True(t, c.Has("widget"))
	assert.True(t, c.Resolved("widget"))
	got, err := c.Get("widget")
	require.NoError(t, err)
	assert.Same(t, w, got)
}

func TestShare_ReturnsSameInstance(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("svc", func() *widget { return &widget{} })

	first, err := c.Get("svc")
	require.NoError(t, err)
	second, err := c.Get("svc")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, c.Resolved("svc"))
}

func TestBind_TransientReturnsDistinctInstances(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("svc", func() *widget { return &widget{} })

	first, err := c.Get("svc")
	require.NoError(t, err)
	second, err := c.Get("svc")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.False(t, c.Resolved("svc"))
}

func TestBind_ClassWithoutConcrete(t *testing.T) {
	t.Parallel()
	c, reg := newContainer()
	name := container.DefineType[*widget](reg)

	c.Bind(name, nil)

	require.True(t, c.Has(name))
	got, err := c.Get(name)
	require.NoError(t, err)
	assert.IsType(t, &widget{}, got)

	again, err := c.Get(name)
	require.NoError(t, err)
	assert.NotSame(t, got, again)
}

func TestBind_ClassWithArguments(t *testing.T) {
	t.Parallel()
	c, reg := newContainer()
	require.NoError(t, reg.Define("car", newCar))

	e := &engine{HP: 300}
	c.Bind("engine", e)
	c.Bind("my-car", []any{"car", "engine", "roadster"})

	got, err := c.Get("my-car")
	require.NoError(t, err)
	require.IsType(t, &car{}, got)
	assert.Same(t, e, got.(*car).Engine)
	assert.Equal(t, "roadster", got.(*car).Name)
}

func TestBind_ClassWithRequiredParametersAndNoArguments(t *testing.T) {
	t.Parallel()
	c, reg := newContainer()
	require.NoError(t, reg.Define("car", newCar))

	c.Bind("car", nil)

	_, err := c.Get("car")
	assert.ErrorIs(t, err, container.ErrInvalidArgument)
}

func TestBind_Literal(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("port", 8080)
	c.Bind("name", "not a class")

	port, err := c.Get("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	name, err := c.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "not a class", name)
}

func TestBind_NormalizesLeadingSeparator(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind(`\Foo`, 1)

	assert.True(t, c.Has("Foo"))
	assert.True(t, c.Has(`\Foo`))
	got, err := c.Get(`\Foo`)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, []string{"Foo"}, c.Bindings())
}

func TestBind_ReplacesCachedInstance(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("svc", func() int { return 1 })
	got, err := c.Get("svc")
	require.NoError(t, err)
	require.Equal(t, 1, got)

	c.Bind("svc", 2)
	got, err = c.Get("svc")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestBind_FactoryReceivesContainer(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("b", "bee")
	c.Bind("a", func(c *container.Container) (any, error) { return c.Get("b") })

	got, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "bee", got)
}

func TestBind_FactoryErrorIsWrapped(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	boom := errors.New("boom")

	c.Bind("bad", func() (*widget, error) { return nil, boom })

	_, err := c.Get("bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestBind_ArgumentConversion(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("wide", []any{func(n int64) int64 { return n * 2 }, 21})
	c.Bind("joined", []any{func(parts ...string) string { return strings.Join(parts, "-") }, "x", "y"})
	c.Bind("nil-ptr", []any{func(w *widget) bool { return w == nil }, nil})

	got, err := c.Get("wide")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = c.Get("joined")
	require.NoError(t, err)
	assert.Equal(t, "x-y", got)

	got, err = c.Get("nil-ptr")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestBind_ArgumentErrors(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("mismatch", []any{func(n int) int { return n }, "str"})
	c.Bind("arity", []any{func(a, b int) int { return a + b }, 1})
	c.Bind("unbound", func(n int) int { return n })

	for _, id := range []string{"mismatch", "arity", "unbound"} {
		_, err := c.Get(id)
		assert.ErrorIs(t, err, container.ErrInvalidArgument, id)
	}
}

func TestBind_ArgumentConversionIsLossless(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("small", []any{func(n int8) int8 { return n }, 127})
	c.Bind("unsigned", []any{func(n uint) uint { return n }, int64(7)})
	c.Bind("float", []any{func(f float64) float64 { return f }, 3})
	c.Bind("narrow-float", []any{func(f float32) float32 { return f }, 0.5})

	for id, want := range map[string]any{
		"small":        int8(127),
		"unsigned":     uint(7),
		"float":        float64(3),
		"narrow-float": float32(0.5),
	} {
		got, err := c.Get(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}

	c.Bind("truncated", []any{func(n int) int { return n }, 3.9})
	c.Bind("whole-float", []any{func(n int) int { return n }, 3.0})
	c.Bind("overflow", []any{func(n int8) int8 { return n }, int64(300)})
	c.Bind("negative", []any{func(n uint) uint { return n }, -1})
	c.Bind("too-big", []any{func(n int64) int64 { return n }, uint64(1 << 63)})
	c.Bind("rounded", []any{func(f float32) float32 { return f }, 0.1})
	c.Bind("imprecise", []any{func(f float64) float64 { return f }, int64(1<<53 + 1)})
	c.Bind("bool", []any{func(n int) int { return n }, true})

	for _, id := range []string{"truncated", "whole-float", "overflow", "negative", "too-big", "rounded", "imprecise", "bool"} {
		_, err := c.Get(id)
		assert.ErrorIs(t, err, container.ErrInvalidArgument, id)
	}
}

// ── Get ───────────────────────────────────────────────────────────────────────

func TestGet_MissingIsNotFound(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	_, err := c.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrNotFound)

	var nf container.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)
	assert.False(t, c.Has("missing"))
}

func TestGet_ResolvesArgumentsThatNameIdentifiers(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("engine", func() *engine { return &engine{HP: 120} })
	c.Bind("car", []any{newCar, "engine", "hatch"})

	first, err := c.Get("car")
	require.NoError(t, err)
	second, err := c.Get("car")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, first.(*car).Engine, second.(*car).Engine)
}

// ── Extend ────────────────────────────────────────────────────────────────────

func TestExtend_MissingIsNotFound(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	err := c.Extend("something", func(v any, _ *container.Container) any { return v })
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestExtend_NilExtenderIsInvalid(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Bind("x", 1)

	err := c.Extend("x", nil)
	assert.ErrorIs(t, err, container.ErrInvalidArgument)
}

func TestExtend_AppliedInRegistrationOrder(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Bind("n", func() int { return 1 })

	require.NoError(t, c.Extend("n", func(v any, _ *container.Container) any { return v.(int) + 1 }))
	require.NoError(t, c.Extend("n", func(v any, _ *container.Container) any { return v.(int) * 10 }))

	got, err := c.Get("n")
	require.NoError(t, err)
	assert.Equal(t, 20, got)
}

func TestExtend_SharedValueExtendedOnce(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Share("svc", func() *widget { return &widget{} })

	calls := 0
	require.NoError(t, c.Extend("svc", func(v any, _ *container.Container) any {
		calls++
		v.(*widget).n++
		return v
	}))

	first, err := c.Get("svc")
	require.NoError(t, err)
	second, err := c.Get("svc")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, first.(*widget).n)
}

func TestExtend_InstanceBoundAfterExtendIsExtended(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Bind("cfg", &widget{n: 1})

	require.NoError(t, c.Extend("cfg", func(v any, _ *container.Container) any {
		return &widget{n: v.(*widget).n + 1}
	}))

	c.Bind("cfg", &widget{n: 10})
	got, err := c.Get("cfg")
	require.NoError(t, err)
	assert.Equal(t, 11, got.(*widget).n)
}

// ── Delegation ────────────────────────────────────────────────────────────────

func TestDelegate_ResultIsExtendedByRoot(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	d := &mockDelegate{}
	d.On("Has", "x").Return(true)
	d.On("Get", "x").Return("from-delegate", nil)
	d.On("Has", mock.Anything).Return(false)
	c.Delegate(d)

	require.NoError(t, c.Extend("x", func(v any, _ *container.Container) any { return v.(string) + "!" }))

	got, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "from-delegate!", got)
	d.AssertCalled(t, "Get", "x")

	assert.False(t, c.Has("y"))
	d.AssertNotCalled(t, "Get", "y")
}

func TestDelegate_ErrorPropagates(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	boom := errors.New("delegate failed")

	d := &mockDelegate{}
	d.On("Has", "x").Return(true)
	d.On("Get", "x").Return(nil, boom)
	c.Delegate(d)

	_, err := c.Get("x")
	assert.ErrorIs(t, err, boom)
}

func TestDelegate_FirstDelegateWins(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	first, _ := newContainer()
	second, _ := newContainer()
	first.Bind("x", "first")
	second.Bind("x", "second")
	second.Bind("y", "only-second")

	c.Delegate(first).Delegate(second)

	got, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = c.Get("y")
	require.NoError(t, err)
	assert.Equal(t, "only-second", got)
}

func TestDelegate_LocalBindingWins(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	d, _ := newContainer()
	d.Bind("x", "delegate")
	c.Delegate(d)
	c.Bind("x", "local")

	got, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "local", got)
}

func TestDelegate_SelfAndMutualDelegationTerminate(t *testing.T) {
	t.Parallel()
	a, _ := newContainer()
	b, _ := newContainer()

	a.Delegate(a)
	a.Delegate(b)
	b.Delegate(a)
	b.Bind("y", 1)

	assert.False(t, a.Has("z"))
	_, err := a.Get("z")
	assert.ErrorIs(t, err, container.ErrNotFound)

	got, err := a.Get("y")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestDelegate_SetsBackReference(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	refl := container.NewReflectionContainer(nil)

	c.Delegate(refl)

	assert.Same(t, c, refl.Container())
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestGet_CyclicArgumentsFail(t *testing.T) {
	t.Parallel()
	c, _ := newContainer(container.WithMaxDepth(16))

	c.Bind("a", []any{identity, "b"})
	c.Bind("b", []any{identity, "a"})

	_, err := c.Get("a")
	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrCyclicResolution)

	var cyc container.CyclicResolutionError
	require.True(t, errors.As(err, &cyc))
	assert.Contains(t, cyc.Path, "a")
	assert.Contains(t, cyc.Path, "b")
}

func TestGet_CyclicFactoriesFail(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Bind("a", func(c *container.Container) (any, error) { return c.Get("b") })
	c.Bind("b", func(c *container.Container) (any, error) { return c.Get("a") })

	_, err := c.Get("a")
	assert.ErrorIs(t, err, container.ErrCyclicResolution)
}

func TestGet_SharedSelfReferenceFailsImmediately(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("s", func(c *container.Container) (any, error) { return c.Get("s") })

	_, err := c.Get("s")
	var cyc container.CyclicResolutionError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, "s", cyc.ID)
	assert.False(t, c.Resolved("s"))
}

func TestGet_SharedCycleThroughCapturedContainerFails(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("a", func() (any, error) { return c.Get("b") })
	c.Share("b", func() (any, error) { return c.Get("a") })

	done := make(chan error, 1)
	go func() {
		_, err := c.Get("a")
		done <- err
	}()

	select {
	case err := <-done:
		var cyc container.CyclicResolutionError
		require.True(t, errors.As(err, &cyc), "%v", err)
		assert.Equal(t, "a", cyc.ID)
		assert.Equal(t, []string{"a", "b", "a"}, cyc.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("Get blocked on a shared cycle")
	}
	assert.False(t, c.Resolved("a"))
	assert.False(t, c.Resolved("b"))
}

func TestGet_TransientCycleThroughCapturedContainerFails(t *testing.T) {
	t.Parallel()
	c, _ := newContainer(container.WithMaxDepth(8))

	c.Bind("x", func() (any, error) { return c.Get("y") })
	c.Bind("y", func() (any, error) { return c.Get("x") })

	_, err := c.Get("x")
	assert.ErrorIs(t, err, container.ErrCyclicResolution)
}

func TestGet_CapturedContainerInExtenderTakesPartInCycles(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Share("s", func() *widget { return &widget{} })
	require.NoError(t, c.Extend("s", func(instance any, _ *container.Container) any {
		_, err := c.Get("s")
		return err
	}))

	got, err := c.Get("s")
	require.NoError(t, err)
	assert.ErrorIs(t, got.(error), container.ErrCyclicResolution)
}

// ── Concurrency ───────────────────────────────────────────────────────────────

func TestShare_ConcurrentFirstAccessBuildsOnce(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	var calls int32
	c.Share("slow", func() *widget {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return &widget{}
	})

	const n = 16
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get("slow")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results[1:] {
		assert.Same(t, results[0], v)
	}
}

func TestShare_ConcurrentNestedGetsOnCapturedContainer(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	var calls int32
	c.Share("inner", func() *widget {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return &widget{n: 1}
	})
	c.Share("outer", func() (any, error) { return c.Get("inner") })

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.Get(id)
			assert.NoError(t, err)
		}([]string{"inner", "outer"}[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// ── Forwarding ────────────────────────────────────────────────────────────────

func TestForwarding_WithoutRegistrarIsUnsupported(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Delegate(container.NewReflectionContainer(nil))

	assert.ErrorIs(t, c.AddServiceProvider("anything"), container.ErrUnsupported)
	assert.ErrorIs(t, c.BootServiceProviders(), container.ErrUnsupported)
}

func TestForwarding_ThroughNestedContainer(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	inner, _ := newContainer()
	inner.Delegate(container.NewServiceProviderContainer())
	c.Delegate(inner)

	require.NoError(t, c.AddServiceProvider(newLazyProvider()))
	assert.True(t, c.Has("lazy-svc"))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func TestResolve_Generic(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Bind("n", 5)

	n, err := container.Resolve[int](c, "n")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = container.Resolve[string](c, "n")
	assert.ErrorIs(t, err, container.ErrInvalidArgument)

	_, err = container.Resolve[int](c, "missing")
	assert.ErrorIs(t, err, container.ErrNotFound)

	assert.Equal(t, 5, container.MustResolve[int](c, "n"))
	assert.Panics(t, func() { container.MustResolve[int](c, "missing") })
}

func TestAfterResolving_FiredOnConstructionOnly(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Share("svc", func() *widget { return &widget{} })

	var seen []string
	c.AfterResolving(func(id string, _ any) { seen = append(seen, id) })

	_, err := c.Get("svc")
	require.NoError(t, err)
	_, err = c.Get("svc")
	require.NoError(t, err)

	assert.Equal(t, []string{"svc"}, seen)
}

func TestBindings_Sorted(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()
	c.Bind("zeta", 1)
	c.Share("alpha", func() int { return 1 })
	c.Bind("mid", func() int { return 1 })

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, c.Bindings())
}

func TestDefine_Builder(t *testing.T) {
	t.Parallel()
	c, _ := newContainer()

	c.Define("shout").Uses(strings.ToUpper).WithArguments("hi").Register()
	c.Define("w").Uses(func() *widget { return &widget{} }).Shared().Register()

	got, err := c.Get("shout")
	require.NoError(t, err)
	assert.Equal(t, "HI", got)

	first, err := c.Get("w")
	require.NoError(t, err)
	second, err := c.Get("w")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
