package search

import (
	"slices"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/sequence"
)

// AllOut logs every beam step
var AllOut bool = false

// Model scores local feature vectors and supplies the generator producing
// them.
type Model interface {
	sequence.Scorer
	Generator() sequence.FeatureGenerator
}

// Confidence is implemented by models tracking a per-coordinate variance,
// required by the ConfidenceMargin policy.
type Confidence interface {
	Confidence(fv *featurevector.Hashed) float64
	Phi() float64
}

// MarginPolicy selects how a state's structured margin accumulates
type MarginPolicy int

const (
	// HammingMargin adds a constant (optionally importance weighted) for
	// every position whose label differs from gold.
	HammingMargin MarginPolicy = iota
	// ConfidenceMargin recomputes the margin as phi times the square root of
	// the model's confidence in the accumulated gold-minus-path vector.
	ConfidenceMargin
)

func (p MarginPolicy) String() string {
	switch p {
	case HammingMargin:
		return "Hamming"
	case ConfidenceMargin:
		return "Confidence"
	default:
		return "Unknown"
	}
}

// compareStates orders by score+margin descending, then by label
func compareStates(a, b *State) int {
	ka, kb := a.Key(), b.Key()
	switch {
	case ka > kb:
		return -1
	case ka < kb:
		return 1
	}
	return a.label.Compare(b.label)
}

// SortStates sorts states best first. The order is total and deterministic
// for distinct labels.
func SortStates(states []*State) {
	slices.SortStableFunc(states, compareStates)
}

// topK sorts states and truncates them to the k best
func topK(states []*State, k int) []*State {
	SortStates(states)
	if len(states) > k {
		for i := k; i < len(states); i++ {
			states[i] = nil
		}
		states = states[:k]
	}
	return states
}

func anyCorrect(states []*State) bool {
	for _, s := range states {
		if s.correct {
			return true
		}
	}
	return false
}
