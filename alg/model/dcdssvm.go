package model

import (
	"math"
	"math/rand"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// SweepPasses is the number of shuffled passes over the working sets run
// at the start of every epoch
const SweepPasses = 5

// WorkingSetModel is a learner that also optimizes over the examples it
// has collected, independently of new search results.
type WorkingSetModel interface {
	Model
	// UpdateWeight runs one coordinate-descent pass over the working set
	// of the instance with the given index.
	UpdateWeight(index int)
	WorkingSetIndices() []int
}

// Example is a violating state kept in a working set with its dual
// variable
type Example struct {
	State *search.State
	Alpha float64
	C     float64
	diff  *featurevector.Hashed
}

// DCDSSVMModel is a structural SVM trained by dual coordinate descent over
// per-instance working sets of violating states.
type DCDSSVMModel struct {
	base
	c          float64
	tolerance  float64
	rand       *rand.Rand
	workingSet map[int][]*Example
}

var _ WorkingSetModel = &DCDSSVMModel{}

func NewDCDSSVM(gen sequence.FeatureGenerator, opts Options) *DCDSSVMModel {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(0))
	}
	return &DCDSSVMModel{
		base:       newBase(gen, opts),
		c:          opts.C,
		tolerance:  opts.Tolerance,
		rand:       r,
		workingSet: make(map[int][]*Example),
	}
}

func (m *DCDSSVMModel) Method() Method {
	return DCDSSVM
}

// WorkingSet returns the examples kept for an instance
func (m *DCDSSVMModel) WorkingSet(index int) []*Example {
	return m.workingSet[index]
}

func (m *DCDSSVMModel) WorkingSetIndices() []int {
	indices := make([]int, 0, len(m.workingSet))
	for idx := range m.workingSet {
		indices = append(indices, idx)
	}
	return indices
}

// sumAlpha sums the dual variables of examples; removed ones hold 0
func sumAlpha(examples []*Example) float64 {
	var sum float64
	for _, e := range examples {
		sum += e.Alpha
	}
	return sum
}

// cost scales C by the importance of the labels where gold and the
// prediction differ
func (m *DCDSSVMModel) cost(s *search.State) float64 {
	if m.opts.Importance == nil {
		return m.c
	}
	gold, star := s.Instance().Gold(), s.Label()
	c, diff := 1.0, 0.0
	for i := 0; i < star.Len(); i++ {
		if !gold.At(i).Equal(star.At(i)) {
			c *= m.opts.Importance(gold.At(i))
			c *= m.opts.Importance(star.At(i))
			diff++
		}
	}
	if diff == 0 || c <= 0 {
		return m.c
	}
	return m.c * math.Pow(c, 2/diff)
}

func (m *DCDSSVMModel) Update(states []*search.State) {
	for _, s := range states {
		if s == nil || s.Correct() {
			continue
		}
		index := s.Instance().Index()
		diff := m.delta(s, m.goldFeatures(s), 1)
		c := m.cost(s)
		if s.Margin()-diff.Dot(m.weight)-sumAlpha(m.workingSet[index])/(2*c) > m.tolerance {
			e := &Example{State: s, C: c, diff: diff}
			m.workingSet[index] = append([]*Example{e}, m.workingSet[index]...)
		}
	}
	for _, s := range states {
		if s == nil {
			continue
		}
		m.UpdateWeight(s.Instance().Index())
	}
}

func (m *DCDSSVMModel) UpdateWeight(index int) {
	examples := m.workingSet[index]
	if len(examples) == 0 {
		return
	}
	if len(examples) > 2 {
		rest := examples[1:]
		m.rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	}
	all := append([]*Example(nil), examples...)
	kept := examples[:0]
	for _, e := range all {
		if e.diff == nil {
			e.diff = m.delta(e.State, m.goldFeatures(e.State), 1)
		}
		c := e.C
		violation := e.State.Margin() - e.diff.Dot(m.weight) - sumAlpha(all)/(2*c)
		if violation+e.Alpha/(2*c) <= m.tolerance {
			e.Alpha = 0
			continue
		}
		norm := e.diff.Norm()
		d := violation / (norm*norm + 1/(2*c))
		alpha := math.Min(c, math.Max(e.Alpha+d, 0))
		m.addAveraged(alpha-e.Alpha, e.diff)
		m.trainStep++
		e.Alpha = alpha
		if alpha > 0 {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(examples); i++ {
		examples[i] = nil
	}
	if len(kept) == 0 {
		delete(m.workingSet, index)
	} else {
		m.workingSet[index] = kept
	}
}
