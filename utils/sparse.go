package utils

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

var ErrIndexRange = errors.New("utils: triplet index out of range")

// Triplets is a coordinate (COO) accumulator. Storage is allocated up front
// and filled through an explicit counter, so the worst case capacity is
// claimed once and only the used prefix is compressed.
type Triplets struct {
	Rows, Cols []int
	Vals       []float64
	n          int
}

func NewTriplets(capacity int) (T *Triplets) {
	if capacity < 0 {
		capacity = 0
	}
	T = &Triplets{
		Rows: make([]int, capacity),
		Cols: make([]int, capacity),
		Vals: make([]float64, capacity),
	}
	return
}

func (T *Triplets) Len() int { return T.n }
func (T *Triplets) Cap() int { return len(T.Rows) }

func (T *Triplets) Add(i, j int, val float64) {
	if T.n == len(T.Rows) {
		T.Rows = append(T.Rows, i)
		T.Cols = append(T.Cols, j)
		T.Vals = append(T.Vals, val)
	} else {
		T.Rows[T.n], T.Cols[T.n], T.Vals[T.n] = i, j, val
	}
	T.n++
}

// Append copies the used entries of O after the used entries of T.
func (T *Triplets) Append(O *Triplets) {
	for k := 0; k < O.n; k++ {
		T.Add(O.Rows[k], O.Cols[k], O.Vals[k])
	}
}

// Trim truncates the storage to the entries actually added.
func (T *Triplets) Trim() {
	T.Rows, T.Cols, T.Vals = T.Rows[:T.n], T.Cols[:T.n], T.Vals[:T.n]
}

// ToCSR compresses the triplets into an nr x nc CSR matrix. Entries sharing a
// (row, column) position are summed in insertion order, columns are sorted
// within each row. sparse.COO.ToCSR keeps duplicates as separate entries, so
// the compression is done here and the result handed to sparse.NewCSR.
func (T *Triplets) ToCSR(nr, nc int) (R CSR, err error) {
	T.Trim()
	R = CSR{nr: nr, nc: nc}
	for k := 0; k < T.n; k++ {
		if T.Rows[k] < 0 || T.Rows[k] >= nr || T.Cols[k] < 0 || T.Cols[k] >= nc {
			err = fmt.Errorf("%w: entry %d at (%d,%d) in a %dx%d matrix",
				ErrIndexRange, k, T.Rows[k], T.Cols[k], nr, nc)
			return
		}
	}
	if nr == 0 || nc == 0 {
		return
	}
	// Counting sort by row keeps insertion order inside a row
	var (
		rowStart = make([]int, nr+1)
		order    = make([]int, T.n)
	)
	for _, i := range T.Rows {
		rowStart[i+1]++
	}
	for i := 0; i < nr; i++ {
		rowStart[i+1] += rowStart[i]
	}
	next := make([]int, nr)
	copy(next, rowStart[:nr])
	for k, i := range T.Rows {
		order[next[i]] = k
		next[i]++
	}
	var (
		ia   = make([]int, nr+1)
		ja   = make([]int, 0, T.n)
		data = make([]float64, 0, T.n)
	)
	for i := 0; i < nr; i++ {
		seg := order[rowStart[i]:rowStart[i+1]]
		sort.SliceStable(seg, func(a, b int) bool { return T.Cols[seg[a]] < T.Cols[seg[b]] })
		for _, k := range seg {
			j := T.Cols[k]
			if last := len(ja) - 1; last >= ia[i] && ja[last] == j {
				data[last] += T.Vals[k]
				continue
			}
			ja = append(ja, j)
			data = append(data, T.Vals[k])
		}
		ia[i+1] = len(ja)
	}
	R.M = sparse.NewCSR(nr, nc, ia, ja, data)
	return
}

// CSR wraps a compressed sparse row matrix. A matrix with a zero dimension has
// no storage and M is nil.
type CSR struct {
	M      *sparse.CSR
	nr, nc int
	name   string
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int) { return m.nr, m.nc }
func (m CSR) At(i, j int) float64 {
	if m.M == nil {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.M.At(i, j)
}
func (m CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

func (m *CSR) SetName(name string) CSR {
	m.name = name
	return *m
}

func (m CSR) Name() string { return m.name }

func (m CSR) NNZ() int {
	if m.M == nil {
		return 0
	}
	return m.M.NNZ()
}

// DoNonZero calls fn for every stored entry in row major order.
func (m CSR) DoNonZero(fn func(i, j int, v float64)) {
	if m.M == nil {
		return
	}
	m.M.DoNonZero(fn)
}

func (m CSR) MulVec(x []float64) (y []float64) {
	if len(x) != m.nc {
		panic(mat.ErrShape)
	}
	y = make([]float64, m.nr)
	if m.M != nil {
		m.M.MulVecTo(y, false, x)
	}
	return
}

// IsSymmetric compares every stored entry with its transpose, which also
// catches entries whose mirror is not stored.
func (m CSR) IsSymmetric(tol float64) (sym bool) {
	if m.nr != m.nc {
		return false
	}
	sym = true
	m.DoNonZero(func(i, j int, v float64) {
		if i != j && math.Abs(v-m.M.At(j, i)) > tol {
			sym = false
		}
	})
	return
}

// ToDense expands the matrix, nil for an empty matrix.
func (m CSR) ToDense() *mat.Dense {
	if m.M == nil {
		return nil
	}
	return m.M.ToDense()
}
