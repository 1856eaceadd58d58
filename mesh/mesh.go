// Package mesh holds the triangulation tables consumed by the assembler: node
// coordinates, counter-clockwise triangles with their areas, tagged edges, the
// volumetric quadrature points and the node to degree-of-freedom map.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/types"
)

// NQ is the number of quadrature points per triangle. Point q sits at
// barycentric weight 2/3 on local node q and 1/6 on the other two.
const NQ = 3

var (
	ErrShapeMismatch     = errors.New("mesh: table size mismatch")
	ErrIndexRange        = errors.New("mesh: node index out of range")
	ErrBadDOFMap         = errors.New("mesh: malformed node to DOF map")
	ErrDegenerateElement = errors.New("mesh: degenerate element")
)

type Mesh struct {
	Nodes    []r2.Vec
	Elem     [][3]int
	ElemArea []float64
	Edges    [][2]int
	EdgesT   []types.EdgeTag
	GP       []r2.Vec // Quadrature points, NQ consecutive points per element
	GPT      []int    // Element owning each quadrature point
	Node2DOF []int    // 1-based free DOF, <= 0 for a Dirichlet node
	NDOF     int
}

func (m *Mesh) NumElements() int { return len(m.Elem) }

func (m *Mesh) NumRobinEdges() (n int) {
	for _, t := range m.EdgesT {
		if t.IsRobin() {
			n++
		}
	}
	return
}

func (m *Mesh) ElementCoordinates(k int) (cor [3]r2.Vec) {
	for i, n := range m.Elem[k] {
		cor[i] = m.Nodes[n]
	}
	return
}

func (m *Mesh) Centroid(k int) r2.Vec {
	cor := m.ElementCoordinates(k)
	return r2.Scale(1./3., r2.Add(r2.Add(cor[0], cor[1]), cor[2]))
}

func (m *Mesh) EdgeLength(e int) float64 {
	v := m.Edges[e]
	return r2.Norm(r2.Sub(m.Nodes[v[1]], m.Nodes[v[0]]))
}

// SignedArea is half the determinant of the triangle's edge vectors, positive
// for counter-clockwise vertex order.
func SignedArea(cor [3]r2.Vec) float64 {
	return 0.5 * r2.Cross(r2.Sub(cor[1], cor[0]), r2.Sub(cor[2], cor[0]))
}

// QuadraturePoints returns the NQ interior points of a triangle, point q
// nearest to vertex q.
func QuadraturePoints(cor [3]r2.Vec) (gp [NQ]r2.Vec) {
	for q := 0; q < NQ; q++ {
		gp[q] = r2.Scale(1./6., r2.Add(r2.Scale(4, cor[q]),
			r2.Add(cor[(q+1)%3], cor[(q+2)%3])))
	}
	return
}

// Validate checks every precondition the assembler relies on.
func (m *Mesh) Validate() (err error) {
	var (
		nNodes = len(m.Nodes)
		nElem  = len(m.Elem)
	)
	if nElem == 0 {
		return fmt.Errorf("%w: mesh has no elements", ErrShapeMismatch)
	}
	switch {
	case len(m.ElemArea) != nElem:
		return fmt.Errorf("%w: %d element areas for %d elements", ErrShapeMismatch, len(m.ElemArea), nElem)
	case len(m.EdgesT) != len(m.Edges):
		return fmt.Errorf("%w: %d edge tags for %d edges", ErrShapeMismatch, len(m.EdgesT), len(m.Edges))
	case len(m.GP) != len(m.GPT):
		return fmt.Errorf("%w: %d quadrature points with %d element tags", ErrShapeMismatch, len(m.GP), len(m.GPT))
	case len(m.GP) != NQ*nElem:
		return fmt.Errorf("%w: %d quadrature points, need %d per element for %d elements",
			ErrShapeMismatch, len(m.GP), NQ, nElem)
	case len(m.Node2DOF) != nNodes:
		return fmt.Errorf("%w: DOF map has %d entries for %d nodes", ErrShapeMismatch, len(m.Node2DOF), nNodes)
	}
	inRange := func(n int) bool { return n >= 0 && n < nNodes }
	for k, tri := range m.Elem {
		for _, n := range tri {
			if !inRange(n) {
				return fmt.Errorf("%w: element %d references node %d of %d", ErrIndexRange, k, n, nNodes)
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			return fmt.Errorf("%w: element %d repeats a node %v", ErrDegenerateElement, k, tri)
		}
		area := SignedArea(m.ElementCoordinates(k))
		if !(area > 0) || !(m.ElemArea[k] > 0) {
			return fmt.Errorf("%w: element %d has area %g", ErrDegenerateElement, k, area)
		}
		if math.Abs(area-m.ElemArea[k]) > 1.e-9*area {
			return fmt.Errorf("%w: element %d area %g does not match its geometry %g",
				ErrShapeMismatch, k, m.ElemArea[k], area)
		}
	}
	for e, edge := range m.Edges {
		if !inRange(edge[0]) || !inRange(edge[1]) {
			return fmt.Errorf("%w: edge %d references nodes %v of %d", ErrIndexRange, e, edge, nNodes)
		}
		if edge[0] == edge[1] {
			return fmt.Errorf("%w: edge %d repeats node %d", ErrIndexRange, e, edge[0])
		}
	}
	// Points are grouped NQ at a time in element order
	for i, k := range m.GPT {
		if k < 0 || k >= nElem {
			return fmt.Errorf("%w: quadrature point %d belongs to element %d of %d", ErrShapeMismatch, i, k, nElem)
		}
		if k != i/NQ {
			return fmt.Errorf("%w: quadrature point %d belongs to element %d, expected %d", ErrShapeMismatch, i, k, i/NQ)
		}
	}
	return m.validateDOFMap()
}

func (m *Mesh) validateDOFMap() error {
	if m.NDOF < 0 {
		return fmt.Errorf("%w: negative DOF count %d", ErrBadDOFMap, m.NDOF)
	}
	used := make([]bool, m.NDOF)
	for n, d := range m.Node2DOF {
		if d <= 0 {
			continue
		}
		if d > m.NDOF {
			return fmt.Errorf("%w: node %d maps to DOF %d, only %d DOFs", ErrBadDOFMap, n, d, m.NDOF)
		}
		used[d-1] = true
	}
	for d, ok := range used {
		if !ok {
			return fmt.Errorf("%w: DOF %d is not used by any node", ErrBadDOFMap, d+1)
		}
	}
	return nil
}
