package assembly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/types"
)

// gridMesh triangulates the unit square with n x n cells, two triangles each.
func gridMesh(t *testing.T, n int, opts ...mesh.Option) *mesh.Mesh {
	var (
		nodes []r2.Vec
		elems [][3]int
		h     = 1. / float64(n)
	)
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			nodes = append(nodes, r2.Vec{X: float64(i) * h, Y: float64(j) * h})
		}
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			n0 := i + (n+1)*j
			elems = append(elems, [3]int{n0, n0 + 1, n0 + n + 2}, [3]int{n0, n0 + n + 2, n0 + n + 1})
		}
	}
	m, err := mesh.New(nodes, elems, opts...)
	require.NoError(t, err)
	return m
}

func allFree() mesh.Option {
	return mesh.WithClassifier(func([2]int, r2.Vec, r2.Vec) types.EdgeTag { return types.EdgeInterior })
}

// dirichletLeft fixes the x=0 side, every other boundary edge is Robin.
func dirichletLeft() mesh.Option {
	return mesh.WithClassifier(func(_ [2]int, a, b r2.Vec) types.EdgeTag {
		if a.X == 0 && b.X == 0 {
			return types.EdgeDirichlet
		}
		return types.EdgeRobin
	})
}

func singleTriangle(t *testing.T, cor [3]r2.Vec, opts ...mesh.Option) *mesh.Mesh {
	m, err := mesh.New(cor[:], [][3]int{{0, 1, 2}}, opts...)
	require.NoError(t, err)
	return m
}

func laplaceProblem() Problem {
	return Problem{
		A: coefficient.Const(1), B: coefficient.Const(0), F: coefficient.Const(0),
		GD: coefficient.BConst(0), GN1: coefficient.BConst(0), GN2: coefficient.BConst(0),
	}
}

// linear is u = 1 + 2x + 3y
func linear(p r2.Vec) float64 { return 1 + 2*p.X + 3*p.Y }

func nodalValues(m *mesh.Mesh, fn func(r2.Vec) float64) (u []float64) {
	u = make([]float64, len(m.Nodes))
	for i, p := range m.Nodes {
		u[i] = fn(p)
	}
	return
}

func maxAbs(v []float64) (m float64) {
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return
}
