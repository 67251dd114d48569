package featurevector

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type subVector struct {
	offset int
	scale  float64
	vec    *Sparse
}

// Hashed is a feature vector in a space of Dim() coordinates, made of
// scaled sub-vectors each placed at a namespace offset. A local index i of
// a sub-vector at offset o lands on coordinate (i+o) & (Dim()-1).
type Hashed struct {
	mask int
	subs []subVector
}

func NewHashed(dim int) *Hashed {
	if !IsPowerOfTwo(dim) {
		panic(fmt.Sprintf("feature space size %d is not a power of two", dim))
	}
	return &Hashed{mask: dim - 1}
}

func (h *Hashed) Dim() int {
	return h.mask + 1
}

// Copy returns a vector sharing the sub-vector data but not the list,
// so scaling or adding to the copy leaves h untouched.
func (h *Hashed) Copy() *Hashed {
	retval := &Hashed{mask: h.mask, subs: make([]subVector, len(h.subs))}
	copy(retval.subs, h.subs)
	return retval
}

// Add merges other into h, scaled by w
func (h *Hashed) Add(w float64, other *Hashed) {
	if other == nil || w == 0 {
		return
	}
	for _, sub := range other.subs {
		h.subs = append(h.subs, subVector{sub.offset & h.mask, sub.scale * w, sub.vec})
	}
}

// AddHeader merges other into h under the namespace of header
func (h *Hashed) AddHeader(other *Hashed, header string) {
	if other == nil {
		return
	}
	offset := Hash(header)
	for _, sub := range other.subs {
		h.subs = append(h.subs, subVector{(sub.offset + offset) & h.mask, sub.scale, sub.vec})
	}
}

func (h *Hashed) AddSparse(s *Sparse, header string) {
	if s.Len() == 0 {
		return
	}
	h.subs = append(h.subs, subVector{Hash(header) & h.mask, 1, s})
}

func (h *Hashed) AddStrings(v StringSparse, header string) {
	h.AddSparse(v.Hash(), header)
}

// Each visits every stored entry with its masked coordinate and scaled
// value. Entries of an uncompacted vector may share a coordinate.
func (h *Hashed) Each(f func(index int, value float64)) {
	for _, sub := range h.subs {
		for i, idx := range sub.vec.Index {
			f((idx+sub.offset)&h.mask, sub.vec.Value[i]*sub.scale)
		}
	}
}

// Compact rewrites h as a single sub-vector at offset 0 with one entry per
// coordinate, summing collisions and dropping zeros.
func (h *Hashed) Compact() {
	if len(h.subs) == 0 {
		return
	}
	sums := make(map[int]float64, h.Size())
	h.Each(func(index int, value float64) {
		sums[index] += value
	})
	indices := make([]int, 0, len(sums))
	for idx, val := range sums {
		if val != 0 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	vec := NewSparse(len(indices))
	for _, idx := range indices {
		vec.Add(idx, sums[idx])
	}
	h.subs = h.subs[:0]
	if vec.Len() > 0 {
		h.subs = append(h.subs, subVector{0, 1, vec})
	}
}

func (h *Hashed) Compacted() bool {
	return len(h.subs) <= 1
}

func (h *Hashed) Dot(w *Weight) float64 {
	var result float64
	values := w.Values
	for _, sub := range h.subs {
		var local float64
		for i, idx := range sub.vec.Index {
			local += values[(idx+sub.offset)&h.mask] * sub.vec.Value[i]
		}
		result += local * sub.scale
	}
	return result
}

// AddToWeight adds scale*h into w in place
func (h *Hashed) AddToWeight(scale float64, w *Weight) {
	if scale == 0 {
		return
	}
	values := w.Values
	for _, sub := range h.subs {
		s := sub.scale * scale
		for i, idx := range sub.vec.Index {
			values[(idx+sub.offset)&h.mask] += sub.vec.Value[i] * s
		}
	}
}

func (h *Hashed) Scale(f float64) {
	for i := range h.subs {
		h.subs[i].scale *= f
	}
}

// Norm is the L2 norm of the vector as a point in the hashed space, so it
// agrees between the compacted and uncompacted forms.
func (h *Hashed) Norm() float64 {
	target := h
	if !h.Compacted() {
		target = h.Copy()
		target.Compact()
	}
	var sum float64
	target.Each(func(_ int, value float64) {
		sum += value * value
	})
	return math.Sqrt(sum)
}

// Normalize rescales h to have norm n; the zero vector is left alone
func (h *Hashed) Normalize(n float64) {
	norm := h.Norm()
	if norm == 0 {
		return
	}
	h.Scale(n / norm)
}

// Size is the number of stored entries
func (h *Hashed) Size() int {
	var size int
	for _, sub := range h.subs {
		size += sub.vec.Len()
	}
	return size
}

func (h *Hashed) String() string {
	strs := make([]string, 0, h.Size())
	h.Each(func(index int, value float64) {
		strs = append(strs, fmt.Sprintf("%d:%v", index, value))
	})
	return strings.Join(strs, " ")
}
