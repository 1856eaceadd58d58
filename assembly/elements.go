package assembly

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/utils"
)

// volumeData is the resolved form of a, b and f, one row per element.
type volumeData struct {
	A, B, F *mat.Dense
}

type elementPass struct {
	m  *mesh.Mesh
	c  volumeData
	gD []float64 // Dirichlet value per node, zero at free nodes
}

// dof returns the 0-based row of node n, -1 for a Dirichlet node.
func dof(node2DOF []int, n int) int {
	if d := node2DOF[n]; d > 0 {
		return d - 1
	}
	return -1
}

// run assembles elements [kMin, kMax) into T and vec. Rows of Dirichlet nodes
// are skipped, columns of Dirichlet nodes are lifted into vec.
func (ep *elementPass) run(kMin, kMax int, T *utils.Triplets, vec []float64) {
	var (
		m = ep.m
	)
	for k := kMin; k < kMax; k++ {
		var (
			nodes = m.Elem[k]
			area  = m.ElemArea[k]
			K     = ElementMatrix(m.ElementCoordinates(k), area, ep.c.A.RawRowView(k), ep.c.B.RawRowView(k))
			F     = ElementLoad(area, ep.c.F.RawRowView(k))
			dofs  [3]int
		)
		for i, n := range nodes {
			dofs[i] = dof(m.Node2DOF, n)
		}
		for k1 := 0; k1 < 3; k1++ {
			d1 := dofs[k1]
			if d1 < 0 {
				continue
			}
			vec[d1] += F.AtVec(k1)
			for k2 := 0; k2 < 3; k2++ {
				if d2 := dofs[k2]; d2 >= 0 {
					T.Add(d1, d2, K.At(k1, k2))
				} else {
					vec[d1] += K.At(k1, k2) * ep.gD[nodes[k2]]
				}
			}
		}
	}
}

// assemble splits the elements into buckets, each filling a private
// triplet buffer and load vector. Buckets are merged in order into T and vec.
func (ep *elementPass) assemble(ctx context.Context, parallelDegree int, T *utils.Triplets, vec []float64) (err error) {
	var (
		nElem = ep.m.NumElements()
	)
	if parallelDegree > nElem {
		parallelDegree = nElem
	}
	if parallelDegree <= 1 {
		if err = ctx.Err(); err != nil {
			return
		}
		ep.run(0, nElem, T, vec)
		return
	}
	var (
		pm    = utils.NewPartitionMap(parallelDegree, nElem)
		parts = make([]*utils.Triplets, pm.ParallelDegree)
		vecs  = make([][]float64, pm.ParallelDegree)
	)
	g, gctx := errgroup.WithContext(ctx)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		parts[bn] = utils.NewTriplets(9 * pm.GetBucketDimension(bn))
		vecs[bn] = make([]float64, len(vec))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ep.run(kMin, kMax, parts[bn], vecs[bn])
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	for bn := range parts {
		T.Append(parts[bn])
		for i, v := range vecs[bn] {
			vec[i] += v
		}
	}
	return
}
