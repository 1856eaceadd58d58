package readfiles

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/types"
)

var ErrSU2Format = errors.New("su2: malformed grid file")

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
	ELType_Tetrahedral                  = 10
	ELType_Hexahedral                   = 12
	ELType_Prism                        = 13
	ELType_Pyramid                      = 14
)

// SU2Grid is a 2D triangular grid with its boundary markers.
type SU2Grid struct {
	Dim         int
	Nodes       []r2.Vec
	Elements    [][3]int
	Markers     map[string][][2]int
	MarkerOrder []string
}

func ReadSU2(filename string, verbose bool) (g *SU2Grid, err error) {
	var (
		file *os.File
	)
	if verbose {
		slog.Info("reading SU2 file", "file", filename)
	}
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if g, err = ParseSU2(file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if verbose {
		slog.Info("read SU2 grid", "dim", g.Dim, "nodes", len(g.Nodes),
			"elements", len(g.Elements), "markers", len(g.MarkerOrder))
	}
	return
}

func ParseSU2(r io.Reader) (g *SU2Grid, err error) {
	reader := bufio.NewReader(r)
	g = &SU2Grid{}
	if g.Dim, err = readNumber(reader); err != nil {
		return nil, err
	}
	if g.Dim != 2 {
		return nil, fmt.Errorf("%w: NDIME = %d, only 2D grids are supported", ErrSU2Format, g.Dim)
	}
	if g.Elements, err = readElements(reader); err != nil {
		return nil, err
	}
	if g.Nodes, err = readVertices(reader); err != nil {
		return nil, err
	}
	for k, tri := range g.Elements {
		for _, v := range tri {
			if v < 0 || v >= len(g.Nodes) {
				return nil, fmt.Errorf("%w: element %d references vertex %d of %d", ErrSU2Format, k, v, len(g.Nodes))
			}
		}
	}
	if g.Markers, g.MarkerOrder, err = readBCs(reader, len(g.Nodes)); err != nil {
		return nil, err
	}
	return
}

// EdgeTags maps every marker edge to the tag of its marker. Markers missing
// from bcs are tagged by parsing the marker name, or dflt when that fails.
func (g *SU2Grid) EdgeTags(bcs map[string]types.EdgeTag, dflt types.EdgeTag) (tags map[types.EdgeKey]types.EdgeTag) {
	tags = make(map[types.EdgeKey]types.EdgeTag)
	for _, label := range g.MarkerOrder {
		tag, ok := bcs[label]
		if !ok {
			var err error
			if tag, err = types.ParseEdgeTag(label); err != nil {
				tag = dflt
			}
		}
		for _, e := range g.Markers[label] {
			tags[types.NewEdgeKey(e)] = tag
		}
	}
	return
}

// Mesh builds the assembler mesh, marker tags take precedence over opts.
func (g *SU2Grid) Mesh(bcs map[string]types.EdgeTag, dflt types.EdgeTag, opts ...mesh.Option) (*mesh.Mesh, error) {
	opts = append(opts, mesh.WithEdgeTags(g.EdgeTags(bcs, dflt)))
	return mesh.New(g.Nodes, g.Elements, opts...)
}

func readBCs(reader *bufio.Reader, nNodes int) (BCEdges map[string][][2]int, order []string, err error) {
	var (
		nType   int
		v1, v2  int
		NBCs    int
		nEdges  int
		label   string
		prevInd int
	)
	if NBCs, err = readCount(reader); err != nil {
		return
	}
	BCEdges = make(map[string][][2]int, NBCs)
	for n := 0; n < NBCs; n++ {
		if label, err = readLabel(reader); err != nil {
			return
		}
		if nEdges, err = readCount(reader); err != nil {
			return
		}
		// Repeated labels are appended to a common slice
		if _, ok := BCEdges[label]; !ok {
			order = append(order, label)
		}
		prevInd = len(BCEdges[label])
		BCEdges[label] = append(BCEdges[label], make([][2]int, nEdges)...)
		for i := 0; i < nEdges; i++ {
			var line string
			if line, err = getLine(reader); err != nil {
				return
			}
			if _, err = fmt.Sscanf(line, "%d %d %d", &nType, &v1, &v2); err != nil {
				err = fmt.Errorf("%w: marker %s line [%s]: %w", ErrSU2Format, label, line, err)
				return
			}
			if SU2ElementType(nType) != ELType_LINE {
				err = fmt.Errorf("%w: marker %s: BCs should only contain line elements in 2D", ErrSU2Format, label)
				return
			}
			if v1 < 0 || v1 >= nNodes || v2 < 0 || v2 >= nNodes || v1 == v2 {
				err = fmt.Errorf("%w: marker %s edge [%d %d] is not a pair of vertices of %d",
					ErrSU2Format, label, v1, v2, nNodes)
				return
			}
			BCEdges[label][i+prevInd] = [2]int{v1, v2}
		}
	}
	return
}

func readVertices(reader *bufio.Reader) (nodes []r2.Vec, err error) {
	var (
		n    int
		x, y float64
		Nv   int
		line string
	)
	if Nv, err = readCount(reader); err != nil {
		return
	}
	nodes = make([]r2.Vec, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%f %f", &x, &y); err != nil || n != 2 {
			err = fmt.Errorf("%w: unable to read coordinates from [%s]", ErrSU2Format, line)
			return
		}
		nodes[i] = r2.Vec{X: x, Y: y}
	}
	return
}

func readElements(reader *bufio.Reader) (EToV [][3]int, err error) {
	var (
		n          int
		nType      int
		v1, v2, v3 int
		K          int
		line       string
	)
	if K, err = readCount(reader); err != nil {
		return
	}
	EToV = make([][3]int, K)
	for k := 0; k < K; k++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%d %d %d %d", &nType, &v1, &v2, &v3); err != nil || n != 4 {
			err = fmt.Errorf("%w: unable to read vertices from [%s]", ErrSU2Format, line)
			return
		}
		if SU2ElementType(nType) != ELType_Triangle {
			err = fmt.Errorf("%w: element %d has type %d, only triangles are supported", ErrSU2Format, k, nType)
			return
		}
		EToV[k] = [3]int{v1, v2, v3}
	}
	return
}

func getToken(reader *bufio.Reader) (token string, err error) {
	var (
		line string
	)
	if line, err = getLineNoComments(reader); err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		err = fmt.Errorf("%w: badly formed input line [%s], should have an =", ErrSU2Format, line)
		return
	}
	token = line[ind+1:]
	return
}

func readLabel(reader *bufio.Reader) (label string, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%s", &label); err != nil {
		err = fmt.Errorf("%w: unable to read label from token: [%s]", ErrSU2Format, token)
	}
	return
}

func readNumber(reader *bufio.Reader) (num int, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%d", &num); err != nil {
		err = fmt.Errorf("%w: unable to read number from token: [%s]", ErrSU2Format, token)
	}
	return
}

// readCount reads a section size, which can not be negative.
func readCount(reader *bufio.Reader) (num int, err error) {
	if num, err = readNumber(reader); err != nil {
		return
	}
	if num < 0 {
		err = fmt.Errorf("%w: negative count %d", ErrSU2Format, num)
	}
	return
}

func getLineNoComments(reader *bufio.Reader) (line string, err error) {
	for {
		if line, err = getLine(reader); err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if len(line) != 0 && !strings.HasPrefix(line, "%") {
			return
		}
	}
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err == io.EOF && len(line) != 0 {
		err = nil
	}
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: early end of file", ErrSU2Format)
		}
		return
	}
	line = strings.TrimRight(line, "\r\n")
	return
}

func skipLines(n int, reader *bufio.Reader) (err error) {
	for i := 0; i < n; i++ {
		if _, err = getLine(reader); err != nil {
			return
		}
	}
	return
}
