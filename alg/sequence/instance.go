package sequence

import (
	"github.com/tticoin/JointER/alg/featurevector"
)

// Instance is one training or test example: an ordered list of decision
// positions with, for training data, a gold label per position.
type Instance interface {
	// Index is the position of the instance in its data set
	Index() int
	Size() int
	Gold() Label
	// Candidates returns the legal labels for position given the labels
	// chosen for the positions before it. The result is never empty.
	Candidates(prefix Label, position int) []LabelUnit
	// Clone returns a deep copy whose positions may be reordered without
	// affecting the receiver.
	Clone() Instance
}

// Reorderer is an instance whose undecided positions can be reordered,
// easiest first. Reorder mutates the receiver; callers reorder clones.
type Reorderer interface {
	Instance
	Reorder(g FeatureGenerator, s Scorer, prefix Label, position int, average bool)
}

// Scorer scores a local feature vector with the current (or averaged)
// weights.
type Scorer interface {
	Score(fv *featurevector.Hashed, average bool) float64
}

// FeatureGenerator computes the local feature vector of assigning
// candidate at position, given the labels of the positions before it.
type FeatureGenerator interface {
	Dim() int
	Local(inst Instance, prefix Label, position int, candidate LabelUnit) *featurevector.Hashed
}

// LocalOnly is implemented by generators that can drop the features
// depending on earlier decisions.
type LocalOnly interface {
	LocalOnly() FeatureGenerator
}

// Features returns the feature vector of the first size positions of y
func Features(g FeatureGenerator, inst Instance, y Label, size int) *featurevector.Hashed {
	fv := featurevector.NewHashed(g.Dim())
	for i := 0; i < size; i++ {
		fv.Add(1, g.Local(inst, y.Prefix(i), i, y.At(i)))
	}
	return fv
}

// GoldFeatures returns the feature vector of the first size gold positions
func GoldFeatures(g FeatureGenerator, inst Instance, size int) *featurevector.Hashed {
	if c, ok := g.(*FeatureCache); ok {
		return c.GoldFeatures(inst, size)
	}
	return Features(g, inst, inst.Gold(), size)
}

// GoldLocal returns the local feature vector of the gold label at position.
// The result may be shared and must not be modified.
func GoldLocal(g FeatureGenerator, inst Instance, position int) *featurevector.Hashed {
	if c, ok := g.(*FeatureCache); ok {
		return c.GoldLocal(inst, position)
	}
	gold := inst.Gold()
	return g.Local(inst, gold.Prefix(position), position, gold.At(position))
}
