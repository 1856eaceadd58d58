package types

import (
	"fmt"
	"math"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

// EdgeCount tracks how many triangles share an edge along with the vertex
// order of the first triangle that produced it.
type EdgeCount struct {
	Verts [2]int
	Count int
}

// EdgeMap collects the unique edges of a triangulation. Edges with a Count of
// one lie on the boundary.
type EdgeMap map[EdgeKey]*EdgeCount

func (em EdgeMap) AddTriangle(tri [3]int) {
	for i := 0; i < 3; i++ {
		verts := [2]int{tri[i], tri[(i+1)%3]}
		key := NewEdgeKey(verts)
		if ec, ok := em[key]; ok {
			ec.Count++
			continue
		}
		em[key] = &EdgeCount{Verts: verts, Count: 1}
	}
}
