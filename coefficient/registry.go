package coefficient

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Pointwise lifts a scalar function of position into a BoundaryFunc.
func Pointwise(fn func(p r2.Vec) float64) BoundaryFunc {
	return func(p []r2.Vec) (v []float64) {
		v = make([]float64, len(p))
		for i := range p {
			v[i] = fn(p[i])
		}
		return
	}
}

// Registry maps function names, as used in problem files, to evaluators.
// Spatial functions serve as both boundary and volumetric coefficients,
// volumetric ones may also read the element tag.
type Registry struct {
	mu       sync.RWMutex
	spatial  map[string]BoundaryFunc
	volume   map[string]VolumeFunc
	describe map[string]string
}

func NewRegistry() (r *Registry) {
	r = &Registry{
		spatial:  make(map[string]BoundaryFunc),
		volume:   make(map[string]VolumeFunc),
		describe: make(map[string]string),
	}
	r.RegisterSpatial("zero", "0", Pointwise(func(r2.Vec) float64 { return 0 }))
	r.RegisterSpatial("one", "1", Pointwise(func(r2.Vec) float64 { return 1 }))
	r.RegisterSpatial("x", "x", Pointwise(func(p r2.Vec) float64 { return p.X }))
	r.RegisterSpatial("y", "y", Pointwise(func(p r2.Vec) float64 { return p.Y }))
	r.RegisterSpatial("xy", "x*y", Pointwise(func(p r2.Vec) float64 { return p.X * p.Y }))
	r.RegisterSpatial("r2", "x^2+y^2", Pointwise(func(p r2.Vec) float64 { return r2.Dot(p, p) }))
	r.RegisterVolume("elem", "element tag", func(p []r2.Vec, tags []int) (v []float64) {
		v = make([]float64, len(tags))
		for i, k := range tags {
			v[i] = float64(k)
		}
		return
	})
	return
}

func (r *Registry) RegisterSpatial(name, description string, fn BoundaryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volume, name)
	r.spatial[name] = fn
	r.describe[name] = description
}

func (r *Registry) RegisterVolume(name, description string, fn VolumeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spatial, name)
	r.volume[name] = fn
	r.describe[name] = description
}

func (r *Registry) Volume(name string) (c Volume, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.volume[name]; ok {
		return Volume{Kind: KindEvaluator, Fn: fn, Name: name}, nil
	}
	if fn, ok := r.spatial[name]; ok {
		return Volume{Kind: KindEvaluator, Name: name,
			Fn: func(p []r2.Vec, _ []int) []float64 { return fn(p) }}, nil
	}
	err = fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	return
}

func (r *Registry) Boundary(name string) (c Boundary, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.spatial[name]; ok {
		return Boundary{Kind: KindEvaluator, Fn: fn, Name: name}, nil
	}
	if _, ok := r.volume[name]; ok {
		err = fmt.Errorf("%w: %q needs element tags and cannot be used on the boundary", ErrUnknownFunction, name)
		return
	}
	err = fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	return
}

// Names lists the registered functions with their descriptions, sorted.
func (r *Registry) Names() (names []string, descriptions []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.describe {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		descriptions = append(descriptions, r.describe[name])
	}
	return
}
