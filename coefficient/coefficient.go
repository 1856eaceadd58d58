// Package coefficient resolves the PDE data a, b, f (volumetric) and gD, gN1,
// gN2 (boundary) into value tables before assembly starts. Each coefficient is
// a constant, a precomputed array or an evaluator function.
package coefficient

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrShapeMismatch   = errors.New("coefficient: shape mismatch")
	ErrUnknownFunction = errors.New("coefficient: unknown function")
	ErrUnset           = errors.New("coefficient: no value given")
)

type Kind uint8

const (
	KindUnset Kind = iota
	KindConstant
	KindArray
	KindEvaluator
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindArray:
		return "Array"
	case KindEvaluator:
		return "Evaluator"
	}
	return "Unset"
}

// VolumeFunc evaluates a coefficient at quadrature points; tags holds the
// element owning each point. It returns one value per point.
type VolumeFunc func(p []r2.Vec, tags []int) []float64

// BoundaryFunc evaluates boundary data at points, one value per point.
type BoundaryFunc func(p []r2.Vec) []float64

type Volume struct {
	Kind  Kind
	Value float64
	Data  []float64
	Fn    VolumeFunc
	Name  string
}

func Const(v float64) Volume { return Volume{Kind: KindConstant, Value: v} }

// Array takes one value per quadrature point in mesh order.
func Array(flat []float64) Volume { return Volume{Kind: KindArray, Data: flat} }

// Rows takes the quadrature values of each element as a row and flattens them.
func Rows(rows [][]float64) Volume {
	var flat []float64
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return Array(flat)
}

func Func(fn VolumeFunc) Volume { return Volume{Kind: KindEvaluator, Fn: fn} }

func (c Volume) String() string { return describe(c.Kind, c.Value, len(c.Data), c.Name) }

func describe(kind Kind, value float64, n int, name string) string {
	switch kind {
	case KindConstant:
		return fmt.Sprintf("%g", value)
	case KindArray:
		return fmt.Sprintf("array[%d]", n)
	case KindEvaluator:
		if name != "" {
			return name
		}
		return "func"
	}
	return "unset"
}

// Resolve produces the coefficient values at the quadrature points gp, tagged
// with their elements gpt. The result has one row per element and one column
// per quadrature point of that element.
func Resolve(c Volume, gp []r2.Vec, gpt []int, nElem int) (V *mat.Dense, err error) {
	var (
		nGP  = len(gp)
		flat []float64
	)
	if nElem <= 0 || nGP == 0 || nGP%nElem != 0 || len(gpt) != nGP {
		err = fmt.Errorf("%w: %d quadrature points, %d tags over %d elements",
			ErrShapeMismatch, nGP, len(gpt), nElem)
		return
	}
	switch c.Kind {
	case KindConstant:
		flat = make([]float64, nGP)
		for i := range flat {
			flat[i] = c.Value
		}
	case KindArray:
		flat = make([]float64, len(c.Data))
		copy(flat, c.Data)
	case KindEvaluator:
		flat = c.Fn(gp, gpt)
	default:
		err = ErrUnset
		return
	}
	if len(flat) != nGP {
		err = fmt.Errorf("%w: %s coefficient gives %d values for %d quadrature points",
			ErrShapeMismatch, c.Kind, len(flat), nGP)
		return
	}
	V = mat.NewDense(nElem, nGP/nElem, flat)
	return
}
