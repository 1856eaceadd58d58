package assembly

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	invSqrt3 = 0.57735026918962576450914878050195745564760175127013
	// Value of the opposite linear basis function at a 2 point Gauss location
	alpha = (1 - invSqrt3) / 2
)

// Interpolation of nodal values to the three quadrature points of a triangle
var quadInterp = mat.NewDense(3, 3, []float64{
	4. / 6., 1. / 6., 1. / 6.,
	1. / 6., 4. / 6., 1. / 6.,
	1. / 6., 1. / 6., 4. / 6.,
})

// Linear basis functions at the two Gauss points of an edge
var edgeInterp = mat.NewDense(2, 2, []float64{
	1 - alpha, alpha,
	alpha, 1 - alpha,
})

// GradientCoefficients returns the 2x3 matrix whose column i is the gradient
// of the linear basis function of vertex i scaled by twice the element area.
func GradientCoefficients(cor [3]r2.Vec) (G *mat.Dense) {
	G = mat.NewDense(2, 3, nil)
	for i := 0; i < 3; i++ {
		p, q := cor[(i+1)%3], cor[(i+2)%3]
		G.Set(0, i, p.Y-q.Y)
		G.Set(1, i, q.X-p.X)
	}
	return
}

// ElementMatrix is the local stiffness plus reaction matrix
//
//	sum(a)/(12 area) GᵗG + area/3 M diag(b) M
//
// with a and b sampled at the element's three quadrature points.
func ElementMatrix(cor [3]r2.Vec, area float64, a, b []float64) (K *mat.Dense) {
	var (
		G    = GradientCoefficients(cor)
		MB   mat.Dense
		Mass mat.Dense
	)
	K = mat.NewDense(3, 3, nil)
	K.Mul(G.T(), G)
	K.Scale(floats.Sum(a)/(12*area), K)
	MB.Mul(quadInterp, mat.NewDiagDense(3, []float64{b[0], b[1], b[2]}))
	Mass.Mul(&MB, quadInterp)
	Mass.Scale(area/3, &Mass)
	K.Add(K, &Mass)
	return
}

// ElementLoad is the local load -area/3 M f.
func ElementLoad(area float64, f []float64) (F *mat.VecDense) {
	F = mat.NewVecDense(3, nil)
	F.MulVec(quadInterp, mat.NewVecDense(3, []float64{f[0], f[1], f[2]}))
	F.ScaleVec(-area/3, F)
	return
}

// EdgeGaussPoints maps the 2 point Gauss rule onto the edge from a to b and
// returns the points together with half the edge length.
func EdgeGaussPoints(a, b r2.Vec) (p1, p2 r2.Vec, L float64) {
	var (
		d   = r2.Sub(b, a)
		mid = r2.Scale(0.5, r2.Add(a, b))
	)
	L = 0.5 * r2.Norm(d)
	off := r2.Scale(0.5*invSqrt3, d) // L/√3 along the unit direction
	p1, p2 = r2.Sub(mid, off), r2.Add(mid, off)
	return
}

// EdgeBlock returns the load L W g1 of the flux term and the Robin block
// L W diag(g2) W, from the values of gN1 and gN2 at the edge's Gauss points.
func EdgeBlock(L float64, g1, g2 [2]float64) (vec [2]float64, B *mat.Dense) {
	var (
		WG mat.Dense
		v  = mat.NewVecDense(2, nil)
	)
	v.MulVec(edgeInterp, mat.NewVecDense(2, []float64{g1[0], g1[1]}))
	vec = [2]float64{L * v.AtVec(0), L * v.AtVec(1)}
	WG.Mul(edgeInterp, mat.NewDiagDense(2, []float64{g2[0], g2[1]}))
	B = mat.NewDense(2, 2, nil)
	B.Mul(&WG, edgeInterp)
	B.Scale(L, B)
	return
}
