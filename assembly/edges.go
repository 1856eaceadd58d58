package assembly

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/utils"
)

// robinEdges are the Robin/Neumann edges with their Gauss points and the
// resolved boundary data, two values per edge.
type robinEdges struct {
	idx      []int
	pts      []r2.Vec
	halfLen  []float64
	gN1, gN2 []float64
}

func newRobinEdges(m *mesh.Mesh, gN1, gN2 coefficient.Boundary) (re *robinEdges, err error) {
	n := m.NumRobinEdges()
	re = &robinEdges{
		idx:     make([]int, 0, n),
		pts:     make([]r2.Vec, 0, 2*n),
		halfLen: make([]float64, 0, n),
	}
	for e, tag := range m.EdgesT {
		if !tag.IsRobin() {
			continue
		}
		v := m.Edges[e]
		p1, p2, L := EdgeGaussPoints(m.Nodes[v[0]], m.Nodes[v[1]])
		if !(L > 0) {
			err = fmt.Errorf("%w: edge %d %v has zero length", ErrDegenerateEdge, e, v)
			return
		}
		re.idx = append(re.idx, e)
		re.pts = append(re.pts, p1, p2)
		re.halfLen = append(re.halfLen, L)
	}
	if re.gN1, err = coefficient.ResolveEdges(gN1, re.pts, re.idx, len(m.Edges)); err != nil {
		err = fmt.Errorf("gN1: %w", err)
		return
	}
	if re.gN2, err = coefficient.ResolveEdges(gN2, re.pts, re.idx, len(m.Edges)); err != nil {
		err = fmt.Errorf("gN2: %w", err)
		return
	}
	return
}

// assemble adds the edge terms as extra triplets and subtracts them from
// vec. An edge with both endpoints fixed contributes nothing.
func (re *robinEdges) assemble(ctx context.Context, m *mesh.Mesh, gD []float64, T *utils.Triplets, vec []float64) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	for i, e := range re.idx {
		var (
			v      = m.Edges[e]
			d1, d2 = dof(m.Node2DOF, v[0]), dof(m.Node2DOF, v[1])
		)
		if d1 < 0 && d2 < 0 {
			continue
		}
		ev, B := EdgeBlock(re.halfLen[i],
			[2]float64{re.gN1[2*i], re.gN1[2*i+1]},
			[2]float64{re.gN2[2*i], re.gN2[2*i+1]})
		switch {
		case d1 >= 0 && d2 >= 0:
			vec[d1] -= ev[0]
			vec[d2] -= ev[1]
			T.Add(d1, d1, -B.At(0, 0))
			T.Add(d1, d2, -B.At(0, 1))
			T.Add(d2, d1, -B.At(1, 0))
			T.Add(d2, d2, -B.At(1, 1))
		case d1 >= 0:
			vec[d1] -= ev[0] + B.At(0, 1)*gD[v[1]]
			T.Add(d1, d1, -B.At(0, 0))
		default:
			vec[d2] -= ev[1] + B.At(1, 0)*gD[v[0]]
			T.Add(d2, d2, -B.At(1, 1))
		}
	}
	return
}
