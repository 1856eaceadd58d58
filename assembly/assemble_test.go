package assembly

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/types"
	"github.com/notargets/femassemble/utils"
)

func TestAssembleSingleElement(t *testing.T) {
	ctx := context.Background()
	{ // Reference triangle, all nodes free
		m := singleTriangle(t, [3]r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, allFree())
		sys, err := Assemble(ctx, m, laplaceProblem())
		require.NoError(t, err)
		want := mat.NewDense(3, 3, []float64{
			1, -0.5, -0.5,
			-0.5, 0.5, 0,
			-0.5, 0, 0.5,
		})
		assert.True(t, mat.EqualApprox(want, sys.Matrix.ToDense(), 1e-15))
		assert.Equal(t, []float64{0, 0, 0}, sys.Vector)
		assert.Equal(t, []int{1, 2, 3}, sys.DOFMap)
	}
	{ // Arbitrary triangle matches GᵗG/(4 area)
		cor := [3]r2.Vec{{X: 0.3, Y: 0.1}, {X: 2, Y: 0.4}, {X: 0.7, Y: 1.9}}
		m := singleTriangle(t, cor, allFree())
		sys, err := Assemble(ctx, m, laplaceProblem())
		require.NoError(t, err)
		G := GradientCoefficients(cor)
		var want mat.Dense
		want.Mul(G.T(), G)
		want.Scale(1/(4*m.ElemArea[0]), &want)
		assert.True(t, mat.EqualApprox(&want, sys.Matrix.ToDense(), 1e-14))
		assert.Equal(t, 9, sys.Matrix.NNZ())
	}
}

func TestAssembleLoad(t *testing.T) {
	m := gridMesh(t, 2)
	p := laplaceProblem()
	p.F = coefficient.Const(1)
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	require.Equal(t, 1, m.NDOF)
	// The center node touches 6 triangles of area 1/8, each giving -area/3
	assert.InDelta(t, -6*(1./8.)/3, sys.Vector[0], 1e-15)
}

func TestAssembleDirichletZero(t *testing.T) {
	ctx := context.Background()
	m := gridMesh(t, 4)
	p := laplaceProblem()
	p.A = coefficient.Const(2)
	p.B = coefficient.Const(1)
	p.F = coefficient.Func(func(pts []r2.Vec, _ []int) (v []float64) {
		v = make([]float64, len(pts))
		for i, q := range pts {
			v[i] = math.Sin(q.X) + q.Y
		}
		return
	})
	sys, err := Assemble(ctx, m, p)
	require.NoError(t, err)

	// Sum of the element loads alone, no lifting term
	want := make([]float64, m.NDOF)
	F, err := coefficient.Resolve(p.F, m.GP, m.GPT, m.NumElements())
	require.NoError(t, err)
	for k, tri := range m.Elem {
		load := ElementLoad(m.ElemArea[k], F.RawRowView(k))
		for i, n := range tri {
			if d := m.Node2DOF[n]; d > 0 {
				want[d-1] += load.AtVec(i)
			}
		}
	}
	assert.InDeltaSlice(t, want, sys.Vector, 1e-15)

	// Zero through an evaluator is the same as a zero constant
	p.GD = coefficient.BFunc(coefficient.Pointwise(func(r2.Vec) float64 { return 0 }))
	sys2, err := Assemble(ctx, m, p)
	require.NoError(t, err)
	assert.Equal(t, sys.Vector, sys2.Vector)
}

func TestAssemblePatchDirichlet(t *testing.T) {
	m := gridMesh(t, 5)
	p := laplaceProblem()
	p.A = coefficient.Const(2.5)
	p.B = coefficient.Const(2)
	p.F = coefficient.Func(func(pts []r2.Vec, _ []int) (v []float64) {
		v = make([]float64, len(pts))
		for i, q := range pts {
			v[i] = 2 * linear(q)
		}
		return
	})
	p.GD = coefficient.BFunc(coefficient.Pointwise(linear))
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	require.Equal(t, 16, m.NDOF)

	u, err := sys.FreeValues(nodalValues(m, linear))
	require.NoError(t, err)
	r, err := sys.Residual(u)
	require.NoError(t, err)
	assert.Less(t, maxAbs(r), 1e-12)
	assert.True(t, sys.Matrix.IsSymmetric(1e-14))

	// Fixed nodes carry their Dirichlet values back
	vals, err := sys.NodalValues(u)
	require.NoError(t, err)
	assert.InDeltaSlice(t, nodalValues(m, linear), vals, 1e-14)
}

// On the x=0 side u is fixed; elsewhere a du/dn = gN1 + gN2 u holds with
// gN2 = -1 and gN1 = a du/dn + u, exercising the mixed free/fixed edge cases.
func TestAssemblePatchRobin(t *testing.T) {
	const a = 1.5
	m := gridMesh(t, 4, dirichletLeft())
	require.Equal(t, 12, m.NumRobinEdges())
	fluxNormal := func(q r2.Vec) float64 {
		switch {
		case q.X == 1:
			return 2 * a
		case q.Y == 1:
			return 3 * a
		case q.Y == 0:
			return -3 * a
		}
		panic("Gauss point off the Robin boundary")
	}
	p := laplaceProblem()
	p.A = coefficient.Const(a)
	p.GD = coefficient.BFunc(coefficient.Pointwise(linear))
	p.GN1 = coefficient.BFunc(coefficient.Pointwise(func(q r2.Vec) float64 { return fluxNormal(q) + linear(q) }))
	p.GN2 = coefficient.BConst(-1)
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	require.Equal(t, 20, m.NDOF)

	u, err := sys.FreeValues(nodalValues(m, linear))
	require.NoError(t, err)
	r, err := sys.Residual(u)
	require.NoError(t, err)
	assert.Less(t, maxAbs(r), 1e-12)
	assert.True(t, sys.Matrix.IsSymmetric(1e-14))
}

func TestAssemblePatchNeumann(t *testing.T) {
	m := gridMesh(t, 3, dirichletLeft())
	p := laplaceProblem()
	p.GD = coefficient.BFunc(coefficient.Pointwise(linear))
	p.GN1 = coefficient.BFunc(coefficient.Pointwise(func(q r2.Vec) float64 {
		switch {
		case q.X == 1:
			return 2
		case q.Y == 1:
			return 3
		}
		return -3
	}))
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	u, err := sys.FreeValues(nodalValues(m, linear))
	require.NoError(t, err)
	r, err := sys.Residual(u)
	require.NoError(t, err)
	assert.Less(t, maxAbs(r), 1e-12)

	// A pure Neumann problem with no reaction leaves the matrix unchanged
	p.GN1 = coefficient.BConst(0)
	sys0, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(sys0.Matrix.ToDense(), sys.Matrix.ToDense(), 0))
}

func TestAssembleSymmetric(t *testing.T) {
	m := gridMesh(t, 6, dirichletLeft())
	p := laplaceProblem()
	p.A = coefficient.Func(func(pts []r2.Vec, _ []int) (v []float64) {
		v = make([]float64, len(pts))
		for i, q := range pts {
			v[i] = 1 + q.X*q.X
		}
		return
	})
	p.B = coefficient.Const(0.7)
	p.GN2 = coefficient.BFunc(coefficient.Pointwise(func(q r2.Vec) float64 { return q.X + q.Y }))
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	assert.True(t, sys.Matrix.IsSymmetric(1e-14))
}

func TestAssembleFullyDirichlet(t *testing.T) {
	m := gridMesh(t, 1, mesh.WithDirichletNodes(0, 1, 2, 3))
	require.Equal(t, 0, m.NDOF)
	p := laplaceProblem()
	p.F = coefficient.Const(3)
	p.GD = coefficient.BConst(1)
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	nr, nc := sys.Matrix.Dims()
	assert.Equal(t, 0, nr)
	assert.Equal(t, 0, nc)
	assert.Equal(t, 0, sys.Matrix.NNZ())
	assert.Empty(t, sys.Vector)
	assert.Equal(t, []float64{1, 1, 1, 1}, sys.Dirichlet)
}

func TestAssembleRobinBothFixed(t *testing.T) {
	var (
		nodes = []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.5, Y: 0.5}}
		elems = [][3]int{{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}}
		robin = mesh.WithClassifier(func([2]int, r2.Vec, r2.Vec) types.EdgeTag { return types.EdgeRobin })
	)
	m, err := mesh.New(nodes, elems, robin, mesh.WithDirichletNodes(0, 1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, 4, m.NumRobinEdges())
	require.Equal(t, 1, m.NDOF)

	p := laplaceProblem()
	p.GD = coefficient.BConst(2)
	base, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	p.GN1 = coefficient.BConst(5)
	p.GN2 = coefficient.BConst(7)
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	assert.Equal(t, base.Vector, sys.Vector)
	assert.Equal(t, base.Matrix.ToDense().RawMatrix().Data, sys.Matrix.ToDense().RawMatrix().Data)
	// Lifting of the constant gD balances the center row
	assert.InDelta(t, 0., base.Vector[0]+base.Matrix.At(0, 0)*2, 1e-14)
}

func TestAssembleRobinEdgeCases(t *testing.T) {
	// Triangle with the bottom edge Robin and node 0 fixed
	cor := [3]r2.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	bottom := mesh.WithClassifier(func(_ [2]int, a, b r2.Vec) types.EdgeTag {
		if a.Y == 0 && b.Y == 0 {
			return types.EdgeRobin
		}
		return types.EdgeInterior
	})
	p := laplaceProblem()
	p.GD = coefficient.BConst(4)
	p.GN1 = coefficient.BConst(1)
	p.GN2 = coefficient.BConst(3)
	_, B := EdgeBlock(1, [2]float64{1, 1}, [2]float64{3, 3})

	free := singleTriangle(t, cor, bottom)
	sysFree, err := Assemble(context.Background(), free, p)
	require.NoError(t, err)
	K := ElementMatrix(cor, 2, []float64{1, 1, 1}, []float64{0, 0, 0})
	assert.InDelta(t, K.At(0, 0)-B.At(0, 0), sysFree.Matrix.At(0, 0), 1e-14)
	assert.InDelta(t, K.At(0, 1)-B.At(0, 1), sysFree.Matrix.At(0, 1), 1e-14)
	assert.InDelta(t, K.At(1, 1)-B.At(1, 1), sysFree.Matrix.At(1, 1), 1e-14)
	assert.InDelta(t, K.At(0, 2), sysFree.Matrix.At(0, 2), 1e-14)
	assert.InDeltaSlice(t, []float64{-1, -1, 0}, sysFree.Vector, 1e-14)

	first := singleTriangle(t, cor, bottom, mesh.WithDirichletNodes(0))
	sys1, err := Assemble(context.Background(), first, p)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, sys1.DOFMap)
	assert.InDelta(t, K.At(1, 1)-B.At(1, 1), sys1.Matrix.At(0, 0), 1e-14)
	assert.InDelta(t, K.At(1, 0)*4-(1+B.At(1, 0)*4), sys1.Vector[0], 1e-14)

	second := singleTriangle(t, cor, bottom, mesh.WithDirichletNodes(1))
	sys2, err := Assemble(context.Background(), second, p)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, sys2.DOFMap)
	assert.InDelta(t, K.At(0, 0)-B.At(0, 0), sys2.Matrix.At(0, 0), 1e-14)
	assert.InDelta(t, K.At(0, 1)*4-(1+B.At(0, 1)*4), sys2.Vector[0], 1e-14)
}

func TestAssembleParallelDegree(t *testing.T) {
	m := gridMesh(t, 9, dirichletLeft())
	p := laplaceProblem()
	p.A = coefficient.Func(func(pts []r2.Vec, tags []int) (v []float64) {
		v = make([]float64, len(pts))
		for i := range pts {
			v[i] = 1 + float64(tags[i]%7)
		}
		return
	})
	p.F = coefficient.Const(1)
	p.GD = coefficient.BFunc(coefficient.Pointwise(linear))
	p.GN2 = coefficient.BConst(0.5)
	serial, err := Assemble(context.Background(), m, p, WithParallelDegree(1))
	require.NoError(t, err)
	for _, np := range []int{2, 5, 1000} {
		par, err := Assemble(context.Background(), m, p, WithParallelDegree(np))
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(serial.Matrix.ToDense(), par.Matrix.ToDense(), 1e-14), "np = %d", np)
		assert.InDeltaSlice(t, serial.Vector, par.Vector, 1e-14, "np = %d", np)
	}
}

func TestAssembleErrors(t *testing.T) {
	ctx := context.Background()
	{ // Coefficient with the wrong number of values
		m := gridMesh(t, 2)
		p := laplaceProblem()
		p.B = coefficient.Array([]float64{1, 2})
		_, err := Assemble(ctx, m, p)
		assert.True(t, errors.Is(err, ErrShapeMismatch))
		assert.True(t, errors.Is(err, coefficient.ErrShapeMismatch))
	}
	{ // Missing coefficient
		_, err := Assemble(ctx, gridMesh(t, 2), Problem{})
		assert.True(t, errors.Is(err, ErrShapeMismatch))
		assert.True(t, errors.Is(err, coefficient.ErrUnset))
	}
	{ // DOF map out of range
		m := gridMesh(t, 2)
		m.Node2DOF[0] = 5
		_, err := Assemble(ctx, m, laplaceProblem())
		assert.True(t, errors.Is(err, ErrBadDOFMap))
	}
	{ // Degenerate element
		m := gridMesh(t, 2)
		m.Nodes[4] = r2.Vec{X: 0, Y: 0}
		_, err := Assemble(ctx, m, laplaceProblem())
		assert.True(t, errors.Is(err, ErrDegenerateElement))
	}
	{ // Robin edge of zero length
		m := gridMesh(t, 2)
		m.Nodes = append(m.Nodes, m.Nodes[0])
		m.Node2DOF = append(m.Node2DOF, m.NDOF+1)
		m.NDOF++
		m.Edges = append(m.Edges, [2]int{0, len(m.Nodes) - 1})
		m.EdgesT = append(m.EdgesT, types.EdgeRobin)
		_, err := Assemble(ctx, m, laplaceProblem())
		assert.True(t, errors.Is(err, ErrDegenerateEdge))
	}
	{ // Element index out of range
		m := gridMesh(t, 2)
		m.Elem[0][0] = 99
		_, err := Assemble(ctx, m, laplaceProblem())
		assert.True(t, errors.Is(err, ErrInvalidMesh))
	}
	{ // Cancelled before the parallel pass
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Assemble(cctx, gridMesh(t, 2), laplaceProblem(), WithParallelDegree(4))
		assert.True(t, errors.Is(err, context.Canceled))
	}
}

func TestRobinEdgesCanceled(t *testing.T) {
	m := gridMesh(t, 2, dirichletLeft())
	p := laplaceProblem()
	p.GN1 = coefficient.BConst(1)
	re, err := newRobinEdges(m, p.GN1, p.GN2)
	require.NoError(t, err)
	require.NotEmpty(t, re.idx)
	gD, err := resolveDirichlet(m, p.GD)
	require.NoError(t, err)

	var (
		T            = utils.NewTriplets(0)
		vec          = make([]float64, m.NDOF)
		cctx, cancel = context.WithCancel(context.Background())
	)
	cancel()
	err = re.assemble(cctx, m, gD, T, vec)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, T.Len())

	require.NoError(t, re.assemble(context.Background(), m, gD, T, vec))
	assert.NotZero(t, T.Len())
}

func TestSystemValues(t *testing.T) {
	m := gridMesh(t, 2)
	p := laplaceProblem()
	p.GD = coefficient.BConst(3)
	sys, err := Assemble(context.Background(), m, p)
	require.NoError(t, err)
	vals, err := sys.NodalValues([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3, 3, 7, 3, 3, 3, 3}, vals)
	u, err := sys.FreeValues(vals)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, u)

	_, err = sys.NodalValues([]float64{1, 2})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = sys.FreeValues([]float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	_, err = sys.Residual(nil)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
