package types

import (
	"fmt"
	"strconv"
	"strings"
)

// EdgeTag classifies a mesh edge. Values below EdgeDirichlet mark a
// Robin/Neumann edge, EdgeDirichlet marks a Dirichlet edge and anything else
// is an interior (or otherwise unconstrained) edge.
type EdgeTag int

const (
	EdgeInterior  EdgeTag = 0
	EdgeDirichlet EdgeTag = -1
	EdgeRobin     EdgeTag = -2
)

func (t EdgeTag) IsRobin() bool     { return t < EdgeDirichlet }
func (t EdgeTag) IsDirichlet() bool { return t == EdgeDirichlet }

func (t EdgeTag) String() string {
	switch {
	case t.IsRobin():
		if t == EdgeRobin {
			return "Robin"
		}
		return "Robin(" + strconv.Itoa(int(t)) + ")"
	case t.IsDirichlet():
		return "Dirichlet"
	case t == EdgeInterior:
		return "Interior"
	}
	return "Tag(" + strconv.Itoa(int(t)) + ")"
}

var BCNameMap = map[string]EdgeTag{
	"interior":  EdgeInterior,
	"none":      EdgeInterior,
	"dirichlet": EdgeDirichlet,
	"fixed":     EdgeDirichlet,
	"neumann":   EdgeRobin,
	"neuman":    EdgeRobin,
	"robin":     EdgeRobin,
	"flux":      EdgeRobin,
}

// ParseEdgeTag accepts either a boundary condition name from BCNameMap or an
// integer tag as found in mesh files, e.g. "-3".
func ParseEdgeTag(label string) (tag EdgeTag, err error) {
	name := strings.ToLower(strings.TrimSpace(label))
	if t, ok := BCNameMap[name]; ok {
		return t, nil
	}
	var ti int
	if ti, err = strconv.Atoi(name); err != nil {
		err = fmt.Errorf("unknown boundary condition label [%s]", label)
		return
	}
	tag = EdgeTag(ti)
	return
}
