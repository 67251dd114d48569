package learning

import (
	"fmt"

	"github.com/tticoin/JointER/alg/search"
)

// Score is a precision/recall count for one kind of prediction
type Score struct {
	Name      string
	Correct   int
	Predicted int
	Gold      int
}

func (s Score) Precision() float64 {
	if s.Predicted == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predicted)
}

func (s Score) Recall() float64 {
	if s.Gold == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Gold)
}

func (s Score) F1() float64 {
	p, r := s.Precision(), s.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (s Score) String() string {
	return fmt.Sprintf("%s P %.4f (%d/%d) R %.4f (%d/%d) F %.4f",
		s.Name, s.Precision(), s.Correct, s.Predicted, s.Recall(), s.Correct, s.Gold, s.F1())
}

// Evaluator scores the terminal states of a test-mode search against the
// gold labels of their instances
type Evaluator interface {
	Evaluate(predicted []*search.State) []Score
}

// ExactMatch counts instances whose whole predicted label equals gold
type ExactMatch struct{}

var _ Evaluator = ExactMatch{}

func (ExactMatch) Evaluate(predicted []*search.State) []Score {
	score := Score{Name: "Accuracy", Predicted: len(predicted), Gold: len(predicted)}
	for _, s := range predicted {
		if s != nil && s.Label().Equal(s.Instance().Gold()) {
			score.Correct++
		}
	}
	return []Score{score}
}
