package entry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrNotFunc is returned when Positional is given something other than a function.
var ErrNotFunc = errors.New("entrypoint is not a function")

// ErrArgumentType is returned when a takeover argument does not fit its parameter.
var ErrArgumentType = errors.New("argument type mismatch")

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Positional adapts an ordinary function to Func by passing Input.Positional()
// as its arguments.
//
// fn may take a leading context.Context. Arguments are converted to the
// parameter types; nil becomes the zero value, surplus arguments are dropped
// and missing ones are zero. fn may return nothing, a value, an error, or a
// value and an error.
func Positional(fn any) (Func, error) {
	value := reflect.ValueOf(fn)
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrNotFunc, fn)
	}

	fnType := value.Type()

	if fnType.NumOut() > 2 || (fnType.NumOut() == 2 && fnType.Out(1) != errorType) { //nolint:mnd
		return nil, fmt.Errorf("%w: unsupported results in %s", ErrNotFunc, fnType)
	}

	return func(ctx context.Context, in Input) (any, error) {
		args, err := buildCall(ctx, fnType, in.Positional())
		if err != nil {
			return nil, err
		}

		var results []reflect.Value
		if fnType.IsVariadic() {
			results = value.CallSlice(args)
		} else {
			results = value.Call(args)
		}

		return unpackResults(fnType, results)
	}, nil
}

// MustPositional is Positional for functions known to be valid; it panics otherwise.
func MustPositional(fn any) Func {
	adapted, err := Positional(fn)
	if err != nil {
		panic(err)
	}

	return adapted
}

func buildCall(ctx context.Context, fnType reflect.Type, positional []any) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	args := make([]reflect.Value, 0, numIn)
	first := 0

	if numIn > 0 && fnType.In(0) == contextType {
		args = append(args, reflect.ValueOf(&ctx).Elem())
		first = 1
	}

	fixed := numIn
	if fnType.IsVariadic() {
		fixed--
	}

	next := 0

	for i := first; i < fixed; i++ {
		var arg any
		if next < len(positional) {
			arg = positional[next]
		}

		next++

		converted, err := convert(arg, fnType.In(i), i)
		if err != nil {
			return nil, err
		}

		args = append(args, converted)
	}

	if !fnType.IsVariadic() {
		return args, nil
	}

	sliceType := fnType.In(numIn - 1)
	rest := reflect.MakeSlice(sliceType, 0, max(len(positional)-next, 0))

	for ; next < len(positional); next++ {
		converted, err := convert(positional[next], sliceType.Elem(), numIn-1)
		if err != nil {
			return nil, err
		}

		rest = reflect.Append(rest, converted)
	}

	return append(args, rest), nil
}

func convert(arg any, target reflect.Type, index int) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(target), nil
	}

	value := reflect.ValueOf(arg)

	switch {
	case value.Type().AssignableTo(target):
		return value, nil
	case value.Type().ConvertibleTo(target) && value.Kind() == target.Kind():
		return value.Convert(target), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: argument %d is %T, parameter wants %s", ErrArgumentType, index, arg, target)
	}
}

func unpackResults(fnType reflect.Type, results []reflect.Value) (any, error) {
	switch len(results) {
	case 0:
		return nil, nil //nolint:nilnil
	case 1:
		if fnType.Out(0) == errorType {
			return nil, asError(results[0])
		}

		return results[0].Interface(), nil
	default:
		return results[0].Interface(), asError(results[1])
	}
}

func asError(value reflect.Value) error {
	if value.IsNil() {
		return nil
	}

	return value.Interface().(error) //nolint:forcetypeassert // checked against errorType
}
