package search

import (
	"fmt"
	"math"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/sequence"
)

// State is a node of the search tree: a labeled prefix of an instance
type State struct {
	instance  sequence.Instance
	label     sequence.Label
	score     float64
	margin    float64
	goldScore float64
	index     int
	correct   bool
	test      bool
	diff      *featurevector.Hashed
}

// NewState returns the root state of inst, with no position labeled
func NewState(inst sequence.Instance, test bool) *State {
	return &State{
		instance: inst,
		index:    -1,
		correct:  true,
		test:     test,
	}
}

func (s *State) Instance() sequence.Instance {
	return s.instance
}

func (s *State) Label() sequence.Label {
	return s.label
}

// Score is the sum of the local scores along the path
func (s *State) Score() float64 {
	return s.score
}

func (s *State) Margin() float64 {
	return s.margin
}

// Key is the value states are ranked by
func (s *State) Key() float64 {
	return s.score + s.margin
}

// GoldScore is the score of the gold prefix of the same length
func (s *State) GoldScore() float64 {
	return s.goldScore
}

// Index is the last labeled position, -1 at the root
func (s *State) Index() int {
	return s.index
}

// Correct is true while every label so far matches gold
func (s *State) Correct() bool {
	return s.correct
}

func (s *State) Test() bool {
	return s.test
}

// Diff is the accumulated gold-minus-path feature vector kept by the
// confidence margin policy; nil otherwise.
func (s *State) Diff() *featurevector.Hashed {
	return s.diff
}

func (s *State) HasNext() bool {
	return s.index+1 < s.instance.Size()
}

func (s *State) String() string {
	return fmt.Sprintf("[%d] %v score %.4f margin %.4f correct %v", s.index, s.label, s.score, s.margin, s.correct)
}

// expansion holds what every child of one parent shares
type expansion struct {
	parent     *State
	instance   sequence.Instance
	position   int
	candidates []sequence.LabelUnit
	gold       sequence.LabelUnit
	goldFv     *featurevector.Hashed
	goldScore  float64
	fastPath   bool
}

// prepare computes the shared part of expanding s. goldScores holds the
// precomputed gold prefix scores, or nil when they cannot be reused.
func (b *Beam) prepare(m Model, s *State, goldScores []float64) *expansion {
	e := &expansion{parent: s, instance: s.instance, position: s.index + 1}
	if b.DynamicSort {
		if r, ok := s.instance.Clone().(sequence.Reorderer); ok {
			r.Reorder(m.Generator(), m, s.label, e.position, s.test)
			e.instance = r
		}
	}
	e.candidates = e.instance.Candidates(s.label, e.position)
	if s.test {
		return e
	}
	e.gold = e.instance.Gold().At(e.position)
	if goldScores != nil {
		e.goldScore = goldScores[e.position+1]
		e.fastPath = true
	} else {
		e.goldFv = sequence.GoldLocal(m.Generator(), e.instance, e.position)
		e.goldScore = s.goldScore + m.Score(e.goldFv, false)
	}
	if b.Policy == ConfidenceMargin && e.goldFv == nil {
		e.goldFv = sequence.GoldLocal(m.Generator(), e.instance, e.position)
	}
	return e
}

// child extends the parent of e with candidate
func (b *Beam) child(m Model, e *expansion, candidate sequence.LabelUnit) *State {
	s := e.parent
	next := &State{
		instance: e.instance,
		label:    s.label.Extend(candidate),
		index:    e.position,
		test:     s.test,
		margin:   s.margin,
		diff:     s.diff,
	}
	if !s.test {
		next.goldScore = e.goldScore
		if s.correct && candidate.Equal(e.gold) {
			next.correct = true
			if e.fastPath {
				next.score = e.goldScore
				return next
			}
		}
	}
	fv := m.Generator().Local(e.instance, s.label, e.position, candidate)
	next.score = s.score + m.Score(fv, s.test)
	if !s.test {
		b.updateMargin(m, e, next, candidate, fv)
	}
	return next
}

func (b *Beam) updateMargin(m Model, e *expansion, next *State, candidate sequence.LabelUnit, fv *featurevector.Hashed) {
	switch b.Policy {
	case HammingMargin:
		if candidate.Equal(e.gold) {
			return
		}
		if b.WeightedMargin && b.Importance != nil {
			next.margin += b.Margin * b.Importance(e.gold)
		} else {
			next.margin += b.Margin
		}
	case ConfidenceMargin:
		if (!b.GlobalFeatures || next.diff == nil || next.diff.Size() == 0) && candidate.Equal(e.gold) {
			return
		}
		conf := m.(Confidence)
		diff := featurevector.NewHashed(fv.Dim())
		diff.Add(1, next.diff)
		diff.Add(1, e.goldFv)
		diff.Add(-1, fv)
		diff.Compact()
		next.diff = diff
		next.margin = math.Sqrt(conf.Confidence(diff)) * conf.Phi()
	default:
		panic(fmt.Sprintf("unknown margin policy %d", b.Policy))
	}
}
