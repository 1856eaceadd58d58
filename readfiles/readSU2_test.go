package readfiles

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/femassemble/types"
)

func TestReadSU2(t *testing.T) {
	{ // Test reading the file structure
		reader := bufio.NewReader(bytes.NewReader(inputFile))

		dim, err := readNumber(reader)
		require.NoError(t, err)
		assert.Equal(t, 2, dim)
		nelem, _ := readNumber(reader)
		assert.Equal(t, 22, nelem)
		require.NoError(t, skipLines(22, reader))
		npts, _ := readNumber(reader)
		assert.Equal(t, 18, npts)
		require.NoError(t, skipLines(18, reader))
		nmark, _ := readNumber(reader)
		assert.Equal(t, 4, nmark)
		labels := []string{"periodic-left", "periodic-right", "top", "bottom"}
		nptsBC := []int{2, 2, 4, 4}
		for n := 0; n < nmark; n++ {
			mark, err := readLabel(reader)
			require.NoError(t, err)
			assert.Equal(t, labels[n], mark)
			nm, _ := readNumber(reader)
			assert.Equal(t, nptsBC[n], nm)
			require.NoError(t, skipLines(nm, reader))
		}
	}
	{ // Test read elements, vertices and BCs
		g, err := ParseSU2(bytes.NewReader(inputFile))
		require.NoError(t, err)
		assert.Equal(t, 2, g.Dim)
		require.Len(t, g.Elements, 22)
		assert.Equal(t, 17, g.Elements[21][2])
		require.Len(t, g.Nodes, 18)
		assert.Equal(t, -7.100939331382065, g.Nodes[17].X)
		assert.Equal(t, 2.889910324036197, g.Nodes[17].Y)
		assert.Equal(t, []string{"periodic-left", "periodic-right", "top", "bottom"}, g.MarkerOrder)
		assert.Equal(t, [][2]int{{3, 11}, {11, 0}}, g.Markers["periodic-left"])
		assert.Len(t, g.Markers["bottom"], 4)
	}
}

func TestSU2Mesh(t *testing.T) {
	g, err := ParseSU2(bytes.NewReader(inputFile))
	require.NoError(t, err)

	m, err := g.Mesh(nil, types.EdgeDirichlet)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.InDelta(t, 200., floats.Sum(m.ElemArea), 1e-9)
	assert.Len(t, m.Edges, 12)
	assert.Equal(t, 6, m.NDOF)

	bcs := map[string]types.EdgeTag{"top": types.EdgeRobin, "bottom": types.EdgeRobin}
	m, err = g.Mesh(bcs, types.EdgeDirichlet)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NumRobinEdges())
	assert.Equal(t, 12, m.NDOF)
	for e, verts := range m.Edges {
		onWall := math.Abs(m.Nodes[verts[0]].Y-m.Nodes[verts[1]].Y) < 1e-9
		assert.Equal(t, onWall, m.EdgesT[e].IsRobin(), "edge %v", verts)
	}

	// Marker names that parse as tags need no mapping
	tags := (&SU2Grid{
		MarkerOrder: []string{"neumann", "wall"},
		Markers:     map[string][][2]int{"neumann": {{0, 1}}, "wall": {{1, 2}}},
	}).EdgeTags(nil, -7)
	assert.Equal(t, types.EdgeRobin, tags[types.NewEdgeKey([2]int{1, 0})])
	assert.Equal(t, types.EdgeTag(-7), tags[types.NewEdgeKey([2]int{2, 1})])
}

func TestParseSU2Errors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":                 "",
		"3D":                    "NDIME= 3\n",
		"no equals":             "NDIME 2\n",
		"short":                 "NDIME= 2\nNELEM= 2\n5 0 1 2\n",
		"quad":                  "NDIME= 2\nNELEM= 1\n9 0 1 2 3\n",
		"bad vertex":            "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 x\n",
		"bad marker":            "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= 1\n5 0 1 2\n",
		"bad count":             "NDIME= two\n",
		"negative elements":     "NDIME= 2\nNELEM= -1\n",
		"negative nodes":        "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= -3\n",
		"negative markers":      "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= -1\n",
		"negative marker edges": "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= -2\n",
		"marker vertex":         "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= 1\n3 -1 7\n",
		"marker outside":        "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= 1\n3 0 3\n",
		"marker loop":           "NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= 1\n3 1 1\n",
		"element vertex":        "NDIME= 2\nNELEM= 1\n5 0 1 5\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSU2(bytes.NewReader([]byte(input)))
			assert.True(t, errors.Is(err, ErrSU2Format), "got %v", err)
		})
	}
	g, err := ParseSU2(bytes.NewReader([]byte(
		"NDIME= 2\nNELEM= 1\n5 0 1 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= w\nMARKER_ELEMS= 1\n3 0 1\n")))
	require.NoError(t, err)
	assert.Len(t, g.EdgeTags(nil, types.EdgeDirichlet), 1)

	_, err = ReadSU2("does-not-exist.su2", false)
	assert.Error(t, err)
}

var (
	inputFile = []byte(` %This is an example input file in SU2 format, output from gmsh
% Comments can appear outside of data areas
NDIME= 2
% Comments can appear outside of data areas
NELEM= 22
5 5 6 13 0
5 9 10 12 1
5 12 5 13 2
5 9 12 13 3
5 13 6 14 4
5 12 10 15 5
5 8 9 13 6
5 4 5 12 7
5 1 7 14 8
5 6 1 14 9
5 3 11 15 10
5 10 3 15 11
5 8 13 16 12
5 4 12 17 13
5 13 14 16 14
5 12 15 17 15
5 7 2 16 16
5 11 0 17 17
5 2 8 16 18
5 0 4 17 19
5 14 7 16 20
5 15 11 17 21
% Comments can appear outside of data areas
NPOIN= 18
-10 0 0
10 0 1
10 10 2
-10 10 3
-5.000000000004944 0 4
-1.231725832440134e-11 0 5
4.99999999999384 0 6
10 4.999999999992398 7
5.000000000004944 10 8
1.231725832440134e-11 10 9
-4.99999999999384 10 10
-10 5 11
-2.500000000008632 4.330127018915808 12
2.50000000000863 5.669872981084192 13
6.712741669205853 3.668411415814691 14
-6.712741669205681 6.331588584184096 15
7.100939331384343 7.110089675963254 16
-7.100939331382065 2.889910324036197 17
NMARK= 4
% Comments can appear outside of data areas
MARKER_TAG= periodic-left
% Comments can appear outside of data areas
MARKER_ELEMS= 2
3 3 11
3 11 0
% Comments can appear outside of data areas
MARKER_TAG= periodic-right
MARKER_ELEMS= 2
3 1 7
3 7 2
% Comments can appear outside of data areas
MARKER_TAG= top
MARKER_ELEMS= 4
3 2 8
3 8 9
3 9 10
3 10 3
MARKER_TAG= bottom
% Comments can appear outside of data areas
MARKER_ELEMS= 4
3 0 4
3 4 5
3 5 6
3 6 1
% Comments can appear outside of data areas
`)
)
