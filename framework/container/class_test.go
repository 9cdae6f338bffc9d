package container_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-container/framework/container"
)

func TestClassRegistry_DefineConstructor(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	require.NoError(t, reg.Define(`\car`, newCar, container.WithDefault(1, "coupe")))

	k, ok := reg.Lookup("car")
	require.True(t, ok)
	assert.Equal(t, "car", k.Name())
	assert.True(t, k.HasConstructor())
	assert.Equal(t, reflect.TypeOf(&car{}), k.Type())

	def, ok := k.Default(1)
	assert.True(t, ok)
	assert.Equal(t, "coupe", def)
	_, ok = k.Default(0)
	assert.False(t, ok)

	name, ok := reg.NameOf(reflect.TypeOf(&car{}))
	assert.True(t, ok)
	assert.Equal(t, "car", name)
}

func TestClassRegistry_DefineFromValueAndType(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	require.NoError(t, reg.Define("w", (*widget)(nil)))
	require.NoError(t, reg.Define("e", reflect.TypeOf(engine{})))

	k, ok := reg.Lookup("w")
	require.True(t, ok)
	assert.False(t, k.HasConstructor())
	assert.Equal(t, []string{"e", "w"}, reg.Names())
}

func TestClassRegistry_DefineErrors(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	cases := map[string]error{
		"nil target":      reg.Define("a", nil),
		"empty name":      reg.Define("", (*widget)(nil)),
		"interface":       reg.Define("b", reflect.TypeOf((*fmt.Stringer)(nil)).Elem()),
		"bad return":      reg.Define("c", func() (int, int) { return 0, 0 }),
		"nil constructor": reg.Define("d", (func() *widget)(nil)),
	}
	for name, err := range cases {
		assert.True(t, errors.Is(err, container.ErrInvalidArgument), name)
	}
	assert.Empty(t, reg.Names())
}

func TestClassRegistry_InterfaceWithConstructorIsAllowed(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	name, err := container.DefineConstructor(reg, func() fmt.Stringer { return &stringer{"x"} })
	require.NoError(t, err)
	assert.Equal(t, "fmt.Stringer", name)
	assert.True(t, reg.Has(name))
}

func TestClassRegistry_RedefineReplaces(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	require.NoError(t, reg.Define("thing", (*widget)(nil)))
	require.NoError(t, reg.Define("thing", (*engine)(nil)))

	k, ok := reg.Lookup("thing")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(&engine{}), k.Type())
	_, ok = reg.NameOf(reflect.TypeOf(&widget{}))
	assert.False(t, ok)
}

func TestDefineType_UsesTypeKey(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	name := container.DefineType[*widget](reg)

	assert.Equal(t, container.TypeKey(&widget{}), name)
	assert.True(t, reg.Has(name))
}

func TestDefineConstructor_RejectsNonFunc(t *testing.T) {
	t.Parallel()
	reg := container.NewClassRegistry()

	_, err := container.DefineConstructor(reg, 42)
	assert.ErrorIs(t, err, container.ErrInvalidArgument)
}

func TestTypeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "github.com/km-arc/go-container/framework/container_test.widget", container.TypeKey(&widget{}))
	assert.Equal(t, container.TypeKey(widget{}), container.TypeKey(&widget{}))
	assert.Equal(t, "fmt.Stringer", container.TypeKey((*fmt.Stringer)(nil)))
	assert.Equal(t, "int", container.TypeKey(0))
	assert.Equal(t, "fmt.Stringer", container.TypeKey(reflect.TypeOf((*fmt.Stringer)(nil)).Elem()))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Foo", container.Normalize(`\Foo`))
	assert.Equal(t, "Foo", container.Normalize("Foo"))
	assert.Equal(t, `\Foo`, container.Normalize(`\\Foo`))
}

type stringer struct{ s string }

func (s *stringer) String() string { return s.s }
