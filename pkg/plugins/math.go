package plugins

import (
	"context"
	"errors"
	"math"

	"github.com/aretw0/conductor/pkg/registry"
)

type pair struct {
	A float64 `arg:"a"`
	B float64 `arg:"b"`
}

type single struct {
	X float64 `arg:"x"`
}

type rounding struct {
	X      float64 `arg:"x"`
	Digits int     `arg:"digits"`
}

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeRoot   = errors.New("square root of a negative number")
)

func binary(name, description string, fn func(a, b float64) (float64, error)) registry.Capability {
	c := registry.New(name, description, func(_ context.Context, args map[string]any) (any, error) {
		in, err := decode[pair](args)
		if err != nil {
			return nil, err
		}
		return fn(in.A, in.B)
	}, param("a", "number", "First operand"), param("b", "number", "Second operand"))
	return withOutput(c, "number")
}

func unary(name, description string, fn func(x float64) (float64, error)) registry.Capability {
	c := registry.New(name, description, func(_ context.Context, args map[string]any) (any, error) {
		in, err := decode[single](args)
		if err != nil {
			return nil, err
		}
		return fn(in.X)
	}, param("x", "number", "Operand"))
	return withOutput(c, "number")
}

// Math returns arithmetic capabilities.
func Math() []registry.Capability {
	return []registry.Capability{
		binary("add", "Adds b to a", func(a, b float64) (float64, error) { return a + b, nil }),
		binary("subtract", "Subtracts b from a", func(a, b float64) (float64, error) { return a - b, nil }),
		binary("multiply", "Multiplies a by b", func(a, b float64) (float64, error) { return a * b, nil }),
		binary("divide", "Divides a by b", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, ErrDivisionByZero
			}
			return a / b, nil
		}),
		binary("power", "Raises a to the power of b", func(a, b float64) (float64, error) { return math.Pow(a, b), nil }),
		binary("min", "Returns the smaller of a and b", func(a, b float64) (float64, error) { return math.Min(a, b), nil }),
		binary("max", "Returns the larger of a and b", func(a, b float64) (float64, error) { return math.Max(a, b), nil }),
		unary("sqrt", "Returns the square root of x", func(x float64) (float64, error) {
			if x < 0 {
				return 0, ErrNegativeRoot
			}
			return math.Sqrt(x), nil
		}),
		unary("abs", "Returns the absolute value of x", func(x float64) (float64, error) { return math.Abs(x), nil }),
		withOutput(registry.New("round", "Rounds x to the given number of decimal digits", func(_ context.Context, args map[string]any) (any, error) {
			in, err := decode[rounding](args)
			if err != nil {
				return nil, err
			}
			scale := math.Pow(10, float64(in.Digits))
			return math.Round(in.X*scale) / scale, nil
		}, param("x", "number", "Value to round"), optional("digits", "int", "Decimal digits to keep", 0)), "number"),
	}
}
