package problem

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Cell is one entry of the travel matrix as supplied by the caller.
type Cell struct {
	From int64   `json:"from" yaml:"from"`
	To   int64   `json:"to" yaml:"to"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// Matrix holds pairwise travel costs between location ids.
// It is read-only once handed to a Problem and safe for concurrent reads.
type Matrix struct {
	ids   []int64
	index map[int64]int
	dense *mat.Dense
}

// NewMatrix builds a dense matrix over ids (or over every id seen in cells when ids is empty).
// Diagonal cells default to 0, missing off-diagonal cells are +Inf and every cost is
// multiplied by factor.
func NewMatrix(cells []Cell, ids []int64, factor float64) (*Matrix, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("new matrix: factor %v must be positive: %w", factor, ErrInvalidInput)
	}
	if len(ids) == 0 {
		for _, c := range cells {
			ids = append(ids, c.From, c.To)
		}
	}
	uniq := dedupIDs(ids)
	if len(uniq) == 0 {
		return nil, fmt.Errorf("new matrix: no locations: %w", ErrInvalidInput)
	}

	m := &Matrix{
		ids:   uniq,
		index: make(map[int64]int, len(uniq)),
		dense: mat.NewDense(len(uniq), len(uniq), nil),
	}
	for i, id := range uniq {
		m.index[id] = i
	}
	n := len(uniq)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				m.dense.Set(i, j, math.Inf(1))
			}
		}
	}
	for _, c := range cells {
		i, ok := m.index[c.From]
		if !ok {
			continue
		}
		j, ok := m.index[c.To]
		if !ok || i == j {
			continue
		}
		if c.Cost < 0 || math.IsNaN(c.Cost) {
			return nil, fmt.Errorf("new matrix: cell %d->%d has cost %v: %w", c.From, c.To, c.Cost, ErrInvalidInput)
		}
		m.dense.Set(i, j, c.Cost*factor)
	}
	return m, nil
}

func dedupIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	w := 0
	for i, id := range out {
		if i > 0 && id == out[w-1] {
			continue
		}
		out[w] = id
		w++
	}
	return out[:w]
}

// Len returns the number of locations.
func (m *Matrix) Len() int { return len(m.ids) }

// IDs returns the location ids in index order.
func (m *Matrix) IDs() []int64 { return append([]int64(nil), m.ids...) }

// Index maps a location id to its row/column.
func (m *Matrix) Index(id int64) (int, error) {
	i, ok := m.index[id]
	if !ok {
		return 0, fmt.Errorf("location %d: %w", id, ErrOutOfRange)
	}
	return i, nil
}

// Cost returns the travel cost between two location ids.
func (m *Matrix) Cost(from, to int64) (float64, error) {
	i, err := m.Index(from)
	if err != nil {
		return 0, err
	}
	j, err := m.Index(to)
	if err != nil {
		return 0, err
	}
	return m.dense.At(i, j), nil
}

// At returns the cost between two matrix indices.
func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

// HasNoInfinity reports whether every cell holds a finite cost.
func (m *Matrix) HasNoInfinity() bool {
	n := len(m.ids)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.IsInf(m.dense.At(i, j), 0) {
				return false
			}
		}
	}
	return true
}

// ObeysTriangleInequality reports whether no detour through a third location is cheaper.
func (m *Matrix) ObeysTriangleInequality() bool {
	n := len(m.ids)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			ik := m.dense.At(i, k)
			if math.IsInf(ik, 1) {
				continue
			}
			for j := 0; j < n; j++ {
				if ik+m.dense.At(k, j) < m.dense.At(i, j)-1e-9 {
					return false
				}
			}
		}
	}
	return true
}

// FixTriangleInequality replaces cells by shorter detours, repeating up to maxCycles
// passes. It returns the number of passes used. It must run before the matrix is shared.
func (m *Matrix) FixTriangleInequality(maxCycles int) int {
	n := len(m.ids)
	cycles := 0
	for cycles < maxCycles {
		cycles++
		changed := false
		for k := 0; k < n; k++ {
			for i := 0; i < n; i++ {
				ik := m.dense.At(i, k)
				if math.IsInf(ik, 1) {
					continue
				}
				for j := 0; j < n; j++ {
					if alt := ik + m.dense.At(k, j); alt < m.dense.At(i, j)-1e-9 {
						m.dense.Set(i, j, alt)
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return cycles
}
