package InputParameters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/femassemble/assembly"
	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/readfiles"
	"github.com/notargets/femassemble/types"
	"github.com/notargets/femassemble/utils"
)

var ErrBadInput = errors.New("input: invalid problem file")

var validate = validator.New()

// Parameters obtained from the YAML input file
type Problem2D struct {
	Title          string       `json:"Title" validate:"max=256"`
	ParallelDegree int          `json:"ParallelDegree" validate:"gte=0"`
	Mesh           MeshInput    `json:"Mesh"`
	Coefficients   Coefficients `json:"Coefficients"`
	baseDir        string
}

// MeshInput gives the triangulation inline or as an SU2 grid file, a
// relative SU2File is taken from the directory of the problem file.
type MeshInput struct {
	SU2File        string            `json:"SU2File"`
	MarkerBCs      map[string]string `json:"MarkerBCs" validate:"dive,required"`
	Nodes          [][2]float64      `json:"Nodes" validate:"required_without=SU2File"`
	Elements       [][3]int          `json:"Elements" validate:"required_without=SU2File"`
	DefaultBC      string            `json:"DefaultBC"`
	SideBCs        map[string]string `json:"SideBCs" validate:"dive,keys,oneof=xmin xmax ymin ymax,endkeys,required"`
	BCs            []EdgeBC          `json:"BCs" validate:"dive"`
	DirichletNodes []int             `json:"DirichletNodes" validate:"dive,gte=0"`
}

// EdgeBC tags the boundary edge joining two nodes, BC is a name from
// types.BCNameMap or an integer tag.
type EdgeBC struct {
	Edge [2]int `json:"Edge"`
	BC   string `json:"BC" validate:"required"`
}

type Coefficients struct {
	A   CoefficientSpec `json:"a"`
	B   CoefficientSpec `json:"b"`
	F   CoefficientSpec `json:"f"`
	GD  CoefficientSpec `json:"gD"`
	GN1 CoefficientSpec `json:"gN1"`
	GN2 CoefficientSpec `json:"gN2"`
}

// CoefficientSpec holds one of a number, a list of values or the name of a
// registered function.
type CoefficientSpec struct {
	Value  *float64
	Values []float64
	Name   string
}

func (cs *CoefficientSpec) UnmarshalJSON(data []byte) (err error) {
	var raw interface{}
	if err = json.Unmarshal(data, &raw); err != nil {
		return
	}
	*cs = CoefficientSpec{}
	switch v := raw.(type) {
	case nil:
	case float64:
		cs.Value = &v
	case string:
		s := strings.TrimSpace(v)
		if f, perr := strconv.ParseFloat(s, 64); perr == nil {
			cs.Value = &f
		} else {
			cs.Name = s
		}
	case []interface{}:
		cs.Values = make([]float64, len(v))
		for i, x := range v {
			f, ok := x.(float64)
			if !ok {
				return fmt.Errorf("%w: coefficient list entry %d is %v, not a number", ErrBadInput, i, x)
			}
			cs.Values[i] = f
		}
	default:
		err = fmt.Errorf("%w: coefficient must be a number, a list or a function name, got %s", ErrBadInput, string(data))
	}
	return
}

func (cs CoefficientSpec) MarshalJSON() ([]byte, error) {
	switch {
	case cs.Value != nil:
		return json.Marshal(*cs.Value)
	case cs.Values != nil:
		return json.Marshal(cs.Values)
	case cs.Name != "":
		return json.Marshal(cs.Name)
	}
	return []byte("null"), nil
}

func (cs CoefficientSpec) IsSet() bool {
	return cs.Value != nil || cs.Values != nil || cs.Name != ""
}

func (cs CoefficientSpec) String() string {
	switch {
	case cs.Value != nil:
		return strconv.FormatFloat(*cs.Value, 'g', -1, 64)
	case cs.Values != nil:
		return fmt.Sprintf("[%d values]", len(cs.Values))
	case cs.Name != "":
		return cs.Name
	}
	return "unset"
}

// Volume gives the coefficient as a volume variant, unset specs take dflt.
func (cs CoefficientSpec) Volume(r *coefficient.Registry, dflt float64) (coefficient.Volume, error) {
	switch {
	case cs.Value != nil:
		return coefficient.Const(*cs.Value), nil
	case cs.Values != nil:
		return coefficient.Array(cs.Values), nil
	case cs.Name != "":
		return r.Volume(cs.Name)
	}
	return coefficient.Const(dflt), nil
}

// Boundary gives the coefficient as a boundary variant, unset specs are zero.
func (cs CoefficientSpec) Boundary(r *coefficient.Registry) (coefficient.Boundary, error) {
	switch {
	case cs.Value != nil:
		return coefficient.BConst(*cs.Value), nil
	case cs.Values != nil:
		return coefficient.BArray(cs.Values), nil
	case cs.Name != "":
		return r.Boundary(cs.Name)
	}
	return coefficient.BConst(0), nil
}

func (ip *Problem2D) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return fmt.Errorf("%w: %w", ErrBadInput, err)
	}
	if err = validate.Struct(ip); err != nil {
		return fmt.Errorf("%w: %w", ErrBadInput, err)
	}
	return
}

func (ip *Problem2D) ReadFile(fileName string) (err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	ip.baseDir = filepath.Dir(fileName)
	return ip.Parse(data)
}

func (ip *Problem2D) Print() { ip.Fprint(os.Stdout) }

func (ip *Problem2D) Fprint(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", ip.Title)
	if ip.Mesh.SU2File != "" {
		fmt.Fprintf(w, "\"%s\"\t\t= SU2 File\n", ip.Mesh.SU2File)
	}
	fmt.Fprintf(w, "[%d]\t\t\t\t= Nodes\n", len(ip.Mesh.Nodes))
	fmt.Fprintf(w, "[%d]\t\t\t\t= Elements\n", len(ip.Mesh.Elements))
	fmt.Fprintf(w, "[%s]\t\t\t= Default BC\n", ip.defaultBC())
	fmt.Fprintf(w, "[%d]\t\t\t\t= Parallel Degree\n", ip.ParallelDegree)
	c := ip.Coefficients
	for _, pair := range []struct {
		name string
		spec CoefficientSpec
	}{{"a", c.A}, {"b", c.B}, {"f", c.F}, {"gD", c.GD}, {"gN1", c.GN1}, {"gN2", c.GN2}} {
		fmt.Fprintf(w, "[%s]\t\t\t= %s\n", pair.spec, pair.name)
	}
	keys := make([]string, 0, len(ip.Mesh.SideBCs))
	for k := range ip.Mesh.SideBCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "SideBCs[%s] = %v\n", key, ip.Mesh.SideBCs[key])
	}
	keys = keys[:0]
	for k := range ip.Mesh.MarkerBCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "MarkerBCs[%s] = %v\n", key, ip.Mesh.MarkerBCs[key])
	}
	for _, bc := range ip.Mesh.BCs {
		fmt.Fprintf(w, "BCs[%d-%d] = %v\n", bc.Edge[0], bc.Edge[1], bc.BC)
	}
}

func (ip *Problem2D) defaultBC() string {
	if ip.Mesh.DefaultBC == "" {
		return "dirichlet"
	}
	return ip.Mesh.DefaultBC
}

// BuildMesh hands the connectivity, inline or from the SU2 file, to mesh.New
// with the boundary conditions of the file. Explicit edge BCs take precedence
// over grid markers, which take precedence over side BCs and the default.
func (ip *Problem2D) BuildMesh() (m *mesh.Mesh, err error) {
	var (
		mi    = ip.Mesh
		nodes []r2.Vec
		elems = mi.Elements
		dflt  types.EdgeTag
		grid  *readfiles.SU2Grid
	)
	if dflt, err = types.ParseEdgeTag(ip.defaultBC()); err != nil {
		return nil, fmt.Errorf("%w: DefaultBC: %w", ErrBadInput, err)
	}
	if mi.SU2File != "" {
		fileName := mi.SU2File
		if !filepath.IsAbs(fileName) {
			fileName = filepath.Join(ip.baseDir, fileName)
		}
		if grid, err = readfiles.ReadSU2(fileName, false); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadInput, err)
		}
		nodes, elems = grid.Nodes, grid.Elements
	} else {
		nodes = make([]r2.Vec, len(mi.Nodes))
		for i, xy := range mi.Nodes {
			nodes[i] = r2.Vec{X: xy[0], Y: xy[1]}
		}
	}
	sides := make(map[string]types.EdgeTag, len(mi.SideBCs))
	for side, label := range mi.SideBCs {
		var tag types.EdgeTag
		if tag, err = types.ParseEdgeTag(label); err != nil {
			return nil, fmt.Errorf("%w: SideBCs[%s]: %w", ErrBadInput, side, err)
		}
		sides[side] = tag
	}
	edgeTags := make(map[types.EdgeKey]types.EdgeTag)
	if grid != nil {
		markers := make(map[string]types.EdgeTag, len(mi.MarkerBCs))
		for label, bc := range mi.MarkerBCs {
			if markers[label], err = types.ParseEdgeTag(bc); err != nil {
				return nil, fmt.Errorf("%w: MarkerBCs[%s]: %w", ErrBadInput, label, err)
			}
		}
		// Unmapped markers fall through to the side classifier
		for label := range grid.Markers {
			if _, ok := markers[label]; !ok {
				if _, perr := types.ParseEdgeTag(label); perr != nil {
					delete(grid.Markers, label)
				}
			}
		}
		edgeTags = grid.EdgeTags(markers, dflt)
	}
	for i, bc := range mi.BCs {
		var tag types.EdgeTag
		if tag, err = types.ParseEdgeTag(bc.BC); err != nil {
			return nil, fmt.Errorf("%w: BCs[%d]: %w", ErrBadInput, i, err)
		}
		v0, v1 := bc.Edge[0], bc.Edge[1]
		if v0 < 0 || v1 < 0 || v0 >= len(nodes) || v1 >= len(nodes) || v0 == v1 {
			return nil, fmt.Errorf("%w: BCs[%d]: edge %v: %w", ErrBadInput, i, bc.Edge, mesh.ErrIndexRange)
		}
		edgeTags[types.NewEdgeKey([2]int{v0, v1})] = tag
	}
	opts := []mesh.Option{
		mesh.WithClassifier(sideClassifier(nodes, sides, dflt)),
		mesh.WithEdgeTags(edgeTags),
	}
	if len(mi.DirichletNodes) != 0 {
		opts = append(opts, mesh.WithDirichletNodes(mi.DirichletNodes...))
	}
	return mesh.New(nodes, elems, opts...)
}

// sideClassifier tags edges lying on a side of the node bounding box.
func sideClassifier(nodes []r2.Vec, sides map[string]types.EdgeTag, dflt types.EdgeTag) mesh.Classifier {
	if len(sides) == 0 {
		return func([2]int, r2.Vec, r2.Vec) types.EdgeTag { return dflt }
	}
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, p := range nodes {
		xMin, xMax = math.Min(xMin, p.X), math.Max(xMax, p.X)
		yMin, yMax = math.Min(yMin, p.Y), math.Max(yMax, p.Y)
	}
	on := func(a, b, c float64) bool {
		return math.Abs(a-c) < utils.NODETOL && math.Abs(b-c) < utils.NODETOL
	}
	return func(_ [2]int, a, b r2.Vec) types.EdgeTag {
		for _, side := range []string{"xmin", "xmax", "ymin", "ymax"} {
			tag, ok := sides[side]
			if !ok {
				continue
			}
			switch {
			case side == "xmin" && on(a.X, b.X, xMin),
				side == "xmax" && on(a.X, b.X, xMax),
				side == "ymin" && on(a.Y, b.Y, yMin),
				side == "ymax" && on(a.Y, b.Y, yMax):
				return tag
			}
		}
		return dflt
	}
}

// BuildProblem resolves the coefficient specs against the registry. An unset
// diffusion defaults to 1, every other coefficient to 0.
func (ip *Problem2D) BuildProblem(r *coefficient.Registry) (p assembly.Problem, err error) {
	c := ip.Coefficients
	for _, v := range []struct {
		name string
		spec CoefficientSpec
		dflt float64
		dst  *coefficient.Volume
	}{{"a", c.A, 1, &p.A}, {"b", c.B, 0, &p.B}, {"f", c.F, 0, &p.F}} {
		if *v.dst, err = v.spec.Volume(r, v.dflt); err != nil {
			return p, fmt.Errorf("%w: coefficient %s: %w", ErrBadInput, v.name, err)
		}
	}
	for _, v := range []struct {
		name string
		spec CoefficientSpec
		dst  *coefficient.Boundary
	}{{"gD", c.GD, &p.GD}, {"gN1", c.GN1, &p.GN1}, {"gN2", c.GN2, &p.GN2}} {
		if *v.dst, err = v.spec.Boundary(r); err != nil {
			return p, fmt.Errorf("%w: coefficient %s: %w", ErrBadInput, v.name, err)
		}
	}
	return
}
