package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/types"
)

// Classifier tags a boundary edge running from node verts[0] at a to node
// verts[1] at b.
type Classifier func(verts [2]int, a, b r2.Vec) types.EdgeTag

type builder struct {
	classify  Classifier
	edgeTags  map[types.EdgeKey]types.EdgeTag
	dirichlet []int
}

type Option func(*builder)

func WithClassifier(c Classifier) Option {
	return func(b *builder) { b.classify = c }
}

// WithEdgeTags tags boundary edges by vertex pair, overriding the classifier.
func WithEdgeTags(tags map[types.EdgeKey]types.EdgeTag) Option {
	return func(b *builder) { b.edgeTags = tags }
}

// WithDirichletNodes fixes nodes in addition to those on Dirichlet edges.
func WithDirichletNodes(nodes ...int) Option {
	return func(b *builder) { b.dirichlet = append(b.dirichlet, nodes...) }
}

// New derives the assembler tables from a triangulation. Clockwise triangles
// are reordered, the boundary edges are extracted and tagged (Dirichlet
// unless a classifier or explicit tag says otherwise), quadrature points are
// placed and the free nodes are numbered in node order.
func New(nodes []r2.Vec, elems [][3]int, opts ...Option) (m *Mesh, err error) {
	b := &builder{
		classify: func([2]int, r2.Vec, r2.Vec) types.EdgeTag { return types.EdgeDirichlet },
	}
	for _, opt := range opts {
		opt(b)
	}
	var (
		nNodes = len(nodes)
		nElem  = len(elems)
	)
	if nElem == 0 {
		err = fmt.Errorf("%w: mesh has no elements", ErrShapeMismatch)
		return
	}
	m = &Mesh{
		Nodes:    nodes,
		Elem:     make([][3]int, nElem),
		ElemArea: make([]float64, nElem),
		GP:       make([]r2.Vec, 0, NQ*nElem),
		GPT:      make([]int, 0, NQ*nElem),
		Node2DOF: make([]int, nNodes),
	}
	edges := make(types.EdgeMap, 3*nElem/2+1)
	for k, tri := range elems {
		for _, n := range tri {
			if n < 0 || n >= nNodes {
				err = fmt.Errorf("%w: element %d references node %d of %d", ErrIndexRange, k, n, nNodes)
				return nil, err
			}
		}
		cor := [3]r2.Vec{nodes[tri[0]], nodes[tri[1]], nodes[tri[2]]}
		area := SignedArea(cor)
		if area < 0 {
			tri[1], tri[2] = tri[2], tri[1]
			cor[1], cor[2] = cor[2], cor[1]
			area = -area
		}
		if !(area > 0) {
			err = fmt.Errorf("%w: element %d has zero area", ErrDegenerateElement, k)
			return nil, err
		}
		m.Elem[k], m.ElemArea[k] = tri, area
		for _, p := range QuadraturePoints(cor) {
			m.GP = append(m.GP, p)
			m.GPT = append(m.GPT, k)
		}
		edges.AddTriangle(tri)
	}
	// Boundary edges in element order
	for _, tri := range m.Elem {
		for i := 0; i < 3; i++ {
			key := types.NewEdgeKey([2]int{tri[i], tri[(i+1)%3]})
			ec := edges[key]
			if ec.Count != 1 {
				continue
			}
			ec.Count = 0 // visited
			tag, ok := b.edgeTags[key]
			if !ok {
				tag = b.classify(ec.Verts, nodes[ec.Verts[0]], nodes[ec.Verts[1]])
			}
			m.Edges = append(m.Edges, ec.Verts)
			m.EdgesT = append(m.EdgesT, tag)
		}
	}
	for key := range b.edgeTags {
		if ec, ok := edges[key]; !ok || ec.Count > 1 {
			err = fmt.Errorf("%w: tagged edge %v is not a boundary edge", ErrIndexRange, key.GetVertices(false))
			return nil, err
		}
	}
	fixed := make([]bool, nNodes)
	for e, edge := range m.Edges {
		if m.EdgesT[e].IsDirichlet() {
			fixed[edge[0]], fixed[edge[1]] = true, true
		}
	}
	for _, n := range b.dirichlet {
		if n < 0 || n >= nNodes {
			err = fmt.Errorf("%w: Dirichlet node %d of %d", ErrIndexRange, n, nNodes)
			return nil, err
		}
		fixed[n] = true
	}
	for n := range nodes {
		if !fixed[n] {
			m.NDOF++
			m.Node2DOF[n] = m.NDOF
		}
	}
	return
}
