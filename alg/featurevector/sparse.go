package featurevector

import (
	"sort"
)

// Sparse is a list of (index, value) pairs. Indices are local to the
// sub-vector and may repeat; repeated entries are summed when read.
//
// A Sparse added to a Hashed is shared, not copied, and must not be
// modified afterwards.
type Sparse struct {
	Index []int
	Value []float64
}

func NewSparse(capacity int) *Sparse {
	return &Sparse{
		Index: make([]int, 0, capacity),
		Value: make([]float64, 0, capacity),
	}
}

func (s *Sparse) Add(index int, value float64) {
	s.Index = append(s.Index, index)
	s.Value = append(s.Value, value)
}

func (s *Sparse) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Index)
}

// StringSparse holds named feature values before they are hashed
type StringSparse map[string]float64

func (v StringSparse) Add(key string, value float64) {
	v[key] += value
}

func (v StringSparse) Inc(key string) {
	v[key] += 1
}

// Hash turns the named features into a Sparse. Keys are visited in sorted
// order so that the result does not depend on map iteration.
func (v StringSparse) Hash() *Sparse {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	retval := NewSparse(len(keys))
	for _, k := range keys {
		if val := v[k]; val != 0 {
			retval.Add(Hash(k), val)
		}
	}
	return retval
}
