package coefficient

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Boundary holds gD, gN1 or gN2. An array gD holds one value per mesh node,
// an array gN1/gN2 two values per mesh edge, one per Gauss point.
type Boundary struct {
	Kind  Kind
	Value float64
	Data  []float64
	Fn    BoundaryFunc
	Name  string
}

func BConst(v float64) Boundary         { return Boundary{Kind: KindConstant, Value: v} }
func BArray(data []float64) Boundary    { return Boundary{Kind: KindArray, Data: data} }
func BFunc(fn BoundaryFunc) Boundary    { return Boundary{Kind: KindEvaluator, Fn: fn} }
func (c Boundary) IsZeroConstant() bool { return c.Kind == KindConstant && c.Value == 0 }

func (c Boundary) String() string { return describe(c.Kind, c.Value, len(c.Data), c.Name) }

// ResolveNodes evaluates c at the listed nodes.
func ResolveNodes(c Boundary, nodes []r2.Vec, idx []int) (vals []float64, err error) {
	vals = make([]float64, len(idx))
	switch c.Kind {
	case KindConstant:
		for i := range vals {
			vals[i] = c.Value
		}
	case KindArray:
		if len(c.Data) != len(nodes) {
			err = fmt.Errorf("%w: nodal array has %d values for %d nodes", ErrShapeMismatch, len(c.Data), len(nodes))
			return
		}
		for i, n := range idx {
			vals[i] = c.Data[n]
		}
	case KindEvaluator:
		if len(idx) == 0 {
			return
		}
		pts := make([]r2.Vec, len(idx))
		for i, n := range idx {
			pts[i] = nodes[n]
		}
		if vals = c.Fn(pts); len(vals) != len(idx) {
			err = fmt.Errorf("%w: function gives %d values for %d nodes", ErrShapeMismatch, len(vals), len(idx))
			return
		}
	default:
		err = ErrUnset
	}
	return
}

// ResolveEdges evaluates c at two Gauss points per listed edge. pts holds the
// points edge by edge, edgeIdx the mesh edge of each pair and nEdges the mesh
// edge count that an array is aligned to.
func ResolveEdges(c Boundary, pts []r2.Vec, edgeIdx []int, nEdges int) (vals []float64, err error) {
	if len(pts) != 2*len(edgeIdx) {
		err = fmt.Errorf("%w: %d Gauss points for %d edges", ErrShapeMismatch, len(pts), len(edgeIdx))
		return
	}
	vals = make([]float64, len(pts))
	switch c.Kind {
	case KindConstant:
		for i := range vals {
			vals[i] = c.Value
		}
	case KindArray:
		if len(c.Data) != 2*nEdges {
			err = fmt.Errorf("%w: edge array has %d values for %d edges", ErrShapeMismatch, len(c.Data), nEdges)
			return
		}
		for i, e := range edgeIdx {
			vals[2*i], vals[2*i+1] = c.Data[2*e], c.Data[2*e+1]
		}
	case KindEvaluator:
		if len(pts) == 0 {
			return
		}
		if vals = c.Fn(pts); len(vals) != len(pts) {
			err = fmt.Errorf("%w: function gives %d values for %d Gauss points", ErrShapeMismatch, len(vals), len(pts))
			return
		}
	default:
		err = ErrUnset
	}
	return
}
