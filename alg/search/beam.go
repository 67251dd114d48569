package search

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/tticoin/JointER/alg/sequence"
	"golang.org/x/sync/errgroup"
)

// Beam is a beam search decoder over the positions of an instance
type Beam struct {
	Size int

	// BestFirst expands only the best agenda state per step instead of
	// every state of a fixed left-to-right beam.
	BestFirst bool
	// EarlyUpdate stops training searches once gold has left the beam
	EarlyUpdate bool
	// Epsilon is the probability of keeping a random sample of the
	// children instead of the best ones during training.
	Epsilon float64

	// Concurrent fans child scoring out over Processors goroutines, or an
	// unbounded number when Processors is 0.
	Concurrent bool
	Processors int

	// Sort reorders each instance easiest first before search when global
	// features are on, DynamicSort before every expansion.
	Sort        bool
	DynamicSort bool

	Policy         MarginPolicy
	Margin         float64
	WeightedMargin bool
	Importance     func(sequence.LabelUnit) float64
	GlobalFeatures bool

	// Rand drives epsilon sampling. It is created on first use when nil;
	// copies of the Beam made after that share it.
	Rand *rand.Rand
	Log  bool
}

func (b *Beam) Name() string {
	discipline := "Left-to-Right"
	if b.BestFirst {
		discipline = "Best-First"
	}
	return fmt.Sprintf("%s Beam [size %d, %s margin]", discipline, b.Size, b.Policy)
}

func (b *Beam) random() *rand.Rand {
	if b.Rand == nil {
		b.Rand = rand.New(rand.NewSource(0))
	}
	return b.Rand
}

// start returns the root state of inst and, when reusable, the gold prefix
// scores: goldScores[k] is the score of the first k gold labels.
func (b *Beam) start(m Model, inst sequence.Instance, test bool) (*State, []float64) {
	if m == nil {
		panic("Set a Model")
	}
	if b.Size < 1 {
		panic("Beam size must be positive")
	}
	if b.Policy == ConfidenceMargin {
		if _, ok := m.(Confidence); !ok {
			panic("Confidence margin requires a model implementing Confidence")
		}
	}
	if b.Sort && b.GlobalFeatures && !b.DynamicSort {
		if r, ok := inst.Clone().(sequence.Reorderer); ok {
			r.Reorder(m.Generator(), m, sequence.Label{}, 0, test)
			inst = r
		}
	}
	root := NewState(inst, test)
	if test || b.DynamicSort {
		return root, nil
	}
	goldScores := make([]float64, inst.Size()+1)
	g := m.Generator()
	for i := 0; i < inst.Size(); i++ {
		goldScores[i+1] = goldScores[i] + m.Score(sequence.GoldLocal(g, inst, i), false)
	}
	return root, goldScores
}

// FindMaxViolatingState searches inst to the end in training mode and
// returns the beam-best state at the step where its score+margin exceeds
// the gold prefix score the most, or nil if no step violates.
func (b *Beam) FindMaxViolatingState(m Model, inst sequence.Instance) (*State, error) {
	root, goldScores := b.start(m, inst, false)
	var (
		beam     = []*State{root}
		maxState *State
		maxV     float64
		err      error
	)
	for len(beam) > 0 && beam[0].HasNext() {
		if beam, err = b.step(m, beam, goldScores); err != nil {
			return nil, err
		}
		if len(beam) == 0 {
			break
		}
		best := beam[0]
		if violation := best.Key() - best.goldScore; violation >= maxV {
			maxV = violation
			maxState = best
		}
		if AllOut {
			log.Println("\tStep", best.index, "best", best, "violation", best.Key()-best.goldScore)
		}
	}
	return maxState, nil
}

// InferBestState searches inst and returns the final beam, best first. In
// training mode with EarlyUpdate set it returns as soon as no state in the
// beam is correct.
func (b *Beam) InferBestState(m Model, inst sequence.Instance, test bool) ([]*State, error) {
	root, goldScores := b.start(m, inst, test)
	var (
		beam = []*State{root}
		err  error
	)
	for len(beam) > 0 && beam[0].HasNext() {
		if beam, err = b.step(m, beam, goldScores); err != nil {
			return nil, err
		}
		if AllOut && len(beam) > 0 {
			log.Println("\tStep", beam[0].index, "best", beam[0])
		}
		if !test && b.EarlyUpdate && !anyCorrect(beam) {
			if b.Log {
				log.Println("Early update at", beam[0].index, "of", inst.Size())
			}
			return beam, nil
		}
	}
	return beam, nil
}

// step advances the beam by one expansion
func (b *Beam) step(m Model, beam []*State, goldScores []float64) ([]*State, error) {
	var parents, rest []*State
	if b.BestFirst {
		parents, rest = beam[:1], beam[1:]
	} else {
		parents = beam
	}
	expansions := make([]*expansion, len(parents))
	for i, s := range parents {
		expansions[i] = b.prepare(m, s, goldScores)
	}
	children, err := b.expand(m, expansions)
	if err != nil {
		return nil, err
	}
	if !parents[0].test && b.Epsilon > 0 && b.random().Float64() < b.Epsilon {
		r := b.random()
		r.Shuffle(len(children), func(i, j int) { children[i], children[j] = children[j], children[i] })
		if len(children) > b.Size {
			children = children[:b.Size]
		}
	}
	next := make([]*State, 0, len(rest)+len(children))
	next = append(next, rest...)
	next = append(next, children...)
	return topK(next, b.Size), nil
}

// expand creates every child of every expansion. Children are stored by
// task index so the result does not depend on scheduling.
func (b *Beam) expand(m Model, expansions []*expansion) ([]*State, error) {
	type task struct {
		e         *expansion
		candidate sequence.LabelUnit
	}
	var tasks []task
	for _, e := range expansions {
		for _, c := range e.candidates {
			tasks = append(tasks, task{e, c})
		}
	}
	children := make([]*State, len(tasks))
	if !b.Concurrent || len(tasks) < 2 {
		for i, t := range tasks {
			children[i] = b.child(m, t.e, t.candidate)
		}
		return children, nil
	}
	var g errgroup.Group
	if b.Processors > 0 {
		g.SetLimit(b.Processors)
	}
	for i, t := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("expanding position %d with %v: %v", t.e.position, t.candidate, r)
				}
			}()
			children[i] = b.child(m, t.e, t.candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}
