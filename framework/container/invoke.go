package container

import (
	"fmt"
	"math"
	"reflect"
)

var (
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	containerType = reflect.TypeOf((*Container)(nil))
)

// call invokes fn with args converted to its parameter types. fn may
// return nothing, T, or (T, error).
func call(op string, fn reflect.Value, args []any) (any, error) {
	in, err := arguments(op, fn.Type(), args)
	if err != nil {
		return nil, err
	}
	return results(fn.Call(in))
}

// callWithContainer invokes a callable that was bound without arguments:
// it receives the container when it takes exactly one parameter that
// accepts it, and nothing when it takes none.
func callWithContainer(op string, fn reflect.Value, c *Container) (any, error) {
	ft := fn.Type()
	switch {
	case ft.NumIn() == 0:
		return results(fn.Call(nil))
	case ft.NumIn() == 1 && !ft.IsVariadic() && containerType.AssignableTo(ft.In(0)):
		return results(fn.Call([]reflect.Value{reflect.ValueOf(c)}))
	}
	return nil, InvalidArgumentError{
		Op:     op,
		Reason: fmt.Sprintf("%s takes arguments but none were bound", ft),
	}
}

// construct builds an instance of class k from positional args.
func construct(op string, k *Class, args []any) (any, error) {
	if !k.HasConstructor() {
		if len(args) > 0 {
			return nil, InvalidArgumentError{
				Op:     op,
				Reason: fmt.Sprintf("class %s has no constructor but %d arguments were bound", k.name, len(args)),
			}
		}
		return k.zero(), nil
	}
	return call(op, k.ctor, args)
}

// arguments converts args positionally to the parameter types of ft.
func arguments(op string, ft reflect.Type, args []any) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, arityError(op, ft, len(args))
		}
	} else if len(args) != n {
		return nil, arityError(op, ft, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := paramType(ft, i)
		v, err := convert(arg, pt)
		if err != nil {
			return nil, InvalidArgumentError{Op: op, Reason: fmt.Sprintf("argument %d: %v", i, err)}
		}
		in[i] = v
	}
	return in, nil
}

// paramType returns the type of the i-th positional argument, unrolling a
// variadic tail.
func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

func convert(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch to.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", to)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if scalarKind(v.Kind()) != notScalar && scalarKind(to.Kind()) != notScalar {
		if out, ok := convertScalar(v, to); ok {
			return out, nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use %s %v as %s without loss", v.Type(), arg, to)
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), to)
}

type scalar int

const (
	notScalar scalar = iota
	boolScalar
	intScalar
	uintScalar
	floatScalar
)

func scalarKind(k reflect.Kind) scalar {
	switch k {
	case reflect.Bool:
		return boolScalar
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intScalar
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintScalar
	case reflect.Float32, reflect.Float64:
		return floatScalar
	}
	return notScalar
}

// convertScalar converts v to the scalar type to when the value survives
// unchanged. Floats never convert to integers.
func convertScalar(v reflect.Value, to reflect.Type) (reflect.Value, bool) {
	out := reflect.New(to).Elem()
	from, dst := scalarKind(v.Kind()), scalarKind(to.Kind())

	switch {
	case from == boolScalar && dst == boolScalar:
		out.SetBool(v.Bool())

	case from == intScalar && dst == intScalar:
		if out.OverflowInt(v.Int()) {
			return out, false
		}
		out.SetInt(v.Int())

	case from == intScalar && dst == uintScalar:
		n := v.Int()
		if n < 0 || out.OverflowUint(uint64(n)) {
			return out, false
		}
		out.SetUint(uint64(n))

	case from == uintScalar && dst == uintScalar:
		if out.OverflowUint(v.Uint()) {
			return out, false
		}
		out.SetUint(v.Uint())

	case from == uintScalar && dst == intScalar:
		n := v.Uint()
		if n > math.MaxInt64 || out.OverflowInt(int64(n)) {
			return out, false
		}
		out.SetInt(int64(n))

	case from == intScalar && dst == floatScalar:
		n := v.Int()
		f := float64(n)
		if f >= 0x1p63 || int64(f) != n {
			return out, false
		}
		return setFloat(out, f)

	case from == uintScalar && dst == floatScalar:
		n := v.Uint()
		f := float64(n)
		if f >= 0x1p64 || uint64(f) != n {
			return out, false
		}
		return setFloat(out, f)

	case from == floatScalar && dst == floatScalar:
		return setFloat(out, v.Float())

	default:
		return out, false
	}
	return out, true
}

// setFloat stores f in out unless out's precision would round it.
func setFloat(out reflect.Value, f float64) (reflect.Value, bool) {
	if math.IsNaN(f) {
		out.SetFloat(f)
		return out, true
	}
	if out.OverflowFloat(f) {
		return out, false
	}
	out.SetFloat(f)
	return out, out.Float() == f
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType && !last.IsNil() {
		return nil, last.Interface().(error)
	}
	return out[0].Interface(), nil
}

func arityError(op string, ft reflect.Type, got int) error {
	return InvalidArgumentError{
		Op:     op,
		Reason: fmt.Sprintf("%s called with %d arguments", ft, got),
	}
}
