// Package assembly builds the linear system of a piecewise linear Galerkin
// discretization of
//
//	-div(a grad u) + b u = f,  u = gD on Dirichlet edges,  a du/dn = gN1 + gN2 u on Robin edges
//
// on a triangle mesh. Dirichlet nodes are eliminated while assembling, so the
// system only couples free nodes and satisfies Matrix * u = -Vector.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
	"github.com/notargets/femassemble/utils"
)

var tracer = otel.Tracer("femassemble.assembly")

// Problem holds the volume coefficients and the boundary data.
type Problem struct {
	A, B, F      coefficient.Volume
	GD, GN1, GN2 coefficient.Boundary
}

// System is the assembled result. DOFMap is the mesh's node to DOF map and
// Dirichlet the prescribed value at every fixed node.
type System struct {
	Matrix    utils.CSR
	Vector    []float64
	DOFMap    []int
	Dirichlet []float64
}

type options struct {
	parallelDegree int
	logger         *slog.Logger
}

// Option configures Assemble.
type Option func(*options)

// WithParallelDegree sets the number of element buckets assembled
// concurrently, default runtime.NumCPU().
func WithParallelDegree(n int) Option {
	return func(o *options) { o.parallelDegree = n }
}

// WithLogger sets the logger for assembly diagnostics, default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Assemble validates m, resolves the coefficients of p and returns the
// system over the free nodes. No partial system is returned on error.
func Assemble(ctx context.Context, m *mesh.Mesh, p Problem, opts ...Option) (sys *System, err error) {
	o := &options{parallelDegree: runtime.NumCPU(), logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	ctx, span := tracer.Start(ctx, "Assemble")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		recordAssemble(ctx, sys, err)
		span.End()
	}()
	start := time.Now()

	if err = m.Validate(); err != nil {
		return nil, classify(err)
	}
	span.SetAttributes(
		attribute.Int("mesh.elements", m.NumElements()),
		attribute.Int("mesh.robin_edges", m.NumRobinEdges()),
		attribute.Int("system.dofs", m.NDOF),
	)

	var (
		ep = &elementPass{m: m}
		re *robinEdges
	)
	err = stage(ctx, "resolve", func(ctx context.Context) (err error) {
		if ep.c, err = resolveVolume(m, p); err != nil {
			return
		}
		if ep.gD, err = resolveDirichlet(m, p.GD); err != nil {
			return
		}
		re, err = newRobinEdges(m, p.GN1, p.GN2)
		return
	})
	if err != nil {
		return nil, classify(err)
	}

	var (
		T   = utils.NewTriplets(9*m.NumElements() + 4*len(re.idx))
		vec = make([]float64, m.NDOF)
	)
	err = stage(ctx, "elements", func(ctx context.Context) error {
		return ep.assemble(ctx, o.parallelDegree, T, vec)
	})
	if err != nil {
		return nil, err
	}
	err = stage(ctx, "edges", func(ctx context.Context) error {
		return re.assemble(ctx, m, ep.gD, T, vec)
	})
	if err != nil {
		return nil, err
	}

	sys = &System{
		Vector:    vec,
		DOFMap:    append([]int(nil), m.Node2DOF...),
		Dirichlet: ep.gD,
	}
	err = stage(ctx, "sparse", func(context.Context) (err error) {
		if sys.Matrix, err = T.ToCSR(m.NDOF, m.NDOF); err != nil {
			return fmt.Errorf("%w: %w", ErrBadDOFMap, err)
		}
		sys.Matrix.SetName("gMat")
		return
	})
	if err != nil {
		return nil, err
	}
	o.logger.Debug("assembled system",
		"elements", m.NumElements(),
		"robin_edges", len(re.idx),
		"dofs", m.NDOF,
		"triplets", T.Len(),
		"nnz", sys.Matrix.NNZ(),
		"parallel_degree", o.parallelDegree,
		"elapsed", time.Since(start))
	return
}

func stage(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()
	start := time.Now()
	err = fn(ctx)
	recordStage(ctx, name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return
}

func resolveVolume(m *mesh.Mesh, p Problem) (c volumeData, err error) {
	var (
		nElem = m.NumElements()
	)
	if c.A, err = coefficient.Resolve(p.A, m.GP, m.GPT, nElem); err != nil {
		return c, fmt.Errorf("a: %w", err)
	}
	if c.B, err = coefficient.Resolve(p.B, m.GP, m.GPT, nElem); err != nil {
		return c, fmt.Errorf("b: %w", err)
	}
	if c.F, err = coefficient.Resolve(p.F, m.GP, m.GPT, nElem); err != nil {
		return c, fmt.Errorf("f: %w", err)
	}
	return
}

// resolveDirichlet evaluates gD once at every fixed node.
func resolveDirichlet(m *mesh.Mesh, gD coefficient.Boundary) (vals []float64, err error) {
	var (
		fixed []int
	)
	for n := range m.Nodes {
		if m.Node2DOF[n] <= 0 {
			fixed = append(fixed, n)
		}
	}
	var fv []float64
	if fv, err = coefficient.ResolveNodes(gD, m.Nodes, fixed); err != nil {
		return nil, fmt.Errorf("gD: %w", err)
	}
	vals = make([]float64, len(m.Nodes))
	for i, n := range fixed {
		vals[n] = fv[i]
	}
	return
}

// Residual returns Matrix*u + Vector for a vector of free values, zero when u
// solves the assembled system.
func (s *System) Residual(u []float64) (r []float64, err error) {
	if len(u) != len(s.Vector) {
		return nil, fmt.Errorf("%w: %d values for %d DOFs", ErrShapeMismatch, len(u), len(s.Vector))
	}
	r = s.Matrix.MulVec(u)
	for i, v := range s.Vector {
		r[i] += v
	}
	return
}

// NodalValues maps a vector of free values back onto the mesh nodes, filling
// fixed nodes with their Dirichlet value.
func (s *System) NodalValues(u []float64) (vals []float64, err error) {
	if len(u) != len(s.Vector) {
		return nil, fmt.Errorf("%w: %d values for %d DOFs", ErrShapeMismatch, len(u), len(s.Vector))
	}
	vals = make([]float64, len(s.DOFMap))
	for n, d := range s.DOFMap {
		if d > 0 {
			vals[n] = u[d-1]
		} else {
			vals[n] = s.Dirichlet[n]
		}
	}
	return
}

// FreeValues restricts nodal values to the free DOFs, the inverse of
// NodalValues for nodes that do not share a DOF.
func (s *System) FreeValues(nodal []float64) (u []float64, err error) {
	if len(nodal) != len(s.DOFMap) {
		return nil, fmt.Errorf("%w: %d values for %d nodes", ErrShapeMismatch, len(nodal), len(s.DOFMap))
	}
	u = make([]float64, len(s.Vector))
	for n, d := range s.DOFMap {
		if d > 0 {
			u[d-1] = nodal[n]
		}
	}
	return
}
