// Package learning drives online structured learning: epochs of shuffled
// minibatches searched with a beam and fed to a model's update rule.
package learning

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
	"github.com/tticoin/JointER/util"
)

// UpdateMethod selects the search protocol that produces training states
type UpdateMethod int

const (
	MaxViolation UpdateMethod = iota
	Early
	Standard
)

var updateNames = []string{"MaxViolation", "Early", "Standard"}

func (u UpdateMethod) String() string {
	if u < 0 || int(u) >= len(updateNames) {
		return fmt.Sprintf("UpdateMethod(%d)", int(u))
	}
	return updateNames[u]
}

func ParseUpdateMethod(name string) (UpdateMethod, error) {
	for i, n := range updateNames {
		if strings.EqualFold(n, name) {
			return UpdateMethod(i), nil
		}
	}
	return 0, errors.Errorf("unknown update method %q (want one of %s)", name, strings.Join(updateNames, ", "))
}

type StopCondition func(curIt, numIt, generations int, m model.Model) bool

func DefaultStopCondition(iteration, iterations, generations int, m model.Model) bool {
	return iteration < iterations
}

type Trainer struct {
	Method  model.Method
	Options model.Options
	Beam    *search.Beam
	Update  UpdateMethod

	Iterations int
	// LocalInit trains a local-feature model for LocalIterations epochs
	// and starts from its averaged weights
	LocalInit       bool
	LocalIterations int
	// Weighting scales DCDSSVM example costs by label importance
	Weighting      bool
	OutputInterval int

	Evaluator Evaluator
	Metrics   *Metrics
	Continue  StopCondition
	Verbosity int
	Rand      *rand.Rand
}

func (t *Trainer) random() *rand.Rand {
	if t.Rand == nil {
		t.Rand = rand.New(rand.NewSource(0))
	}
	return t.Rand
}

// Learn trains a model on data. Gold features are cached up front; dev,
// when given, is evaluated every OutputInterval epochs.
func (t *Trainer) Learn(data *sequence.Data, gen sequence.FeatureGenerator, dev *sequence.Data) (model.Model, error) {
	if t.Beam == nil {
		panic("Set a Beam")
	}
	if t.Continue == nil {
		t.Continue = DefaultStopCondition
	}
	start := time.Now()
	cache := sequence.NewFeatureCache(gen)
	if err := cache.Warm(data.Instances, t.Beam.Concurrent, t.Beam.Processors); err != nil {
		return nil, errors.Wrap(err, "caching gold features")
	}
	if t.Verbosity > 2 {
		log.Println("Training data size:", data.Len())
		log.Println("Feature calculation finished in", time.Since(start))
		util.LogMemory()
	}

	// beam copies made below share one random source with the trainer
	if t.Beam.Rand == nil {
		t.Beam.Rand = t.random()
	}
	opts := t.Options
	if t.Beam.WeightedMargin || t.Weighting {
		data.ComputeImportance()
	}
	if t.Beam.WeightedMargin {
		t.Beam.Importance = data.Importance
	}
	if t.Weighting {
		opts.Importance = data.Importance
	}
	if opts.Rand == nil {
		opts.Rand = t.random()
	}
	m, err := model.New(t.Method, cache, opts)
	if err != nil {
		return nil, err
	}
	if t.Verbosity > 0 {
		log.Println("Learning", m.Method(), "with", t.Beam.Name(), t.Update, "update")
	}

	if t.LocalInit {
		start = time.Now()
		local, err := model.New(t.Method, cache.LocalOnly(), opts)
		if err != nil {
			return nil, err
		}
		localBeam := *t.Beam
		localBeam.DynamicSort = false
		localBeam.GlobalFeatures = false
		prevPrefix := log.Prefix()
		log.SetPrefix("LOCAL " + prevPrefix)
		err = t.train(local, &localBeam, data, t.LocalIterations, nil)
		log.SetPrefix(prevPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "local initialization")
		}
		m.InitializeFrom(local)
		m.AverageWeight()
		if err = t.report(m, dev); err != nil {
			return nil, err
		}
		if t.Verbosity > 2 {
			log.Println("Initialization finished in", time.Since(start))
		}
	}

	if err = t.train(m, t.Beam, data, t.Iterations, dev); err != nil {
		return nil, err
	}
	return m, nil
}

func (t *Trainer) train(m model.Model, beam *search.Beam, data *sequence.Data, iterations int, dev *sequence.Data) error {
	var (
		generations   int
		lastTrainStep = m.TrainStep()
		prevPrefix    = log.Prefix()
		interval      = util.Max(t.OutputInterval, 1)
		order         = util.RangeInt(data.Len())
	)
	defer log.SetPrefix(prevPrefix)
	if t.Update == Early && !beam.EarlyUpdate {
		early := *beam
		early.EarlyUpdate = true
		beam = &early
	}
	m.AverageWeight()
	for i := 0; t.Continue(i, iterations, generations, m); i++ {
		iteration := i + 1
		log.SetPrefix(fmt.Sprintf("IT #%d %s", iteration, prevPrefix))
		start := time.Now()
		n, err := t.epoch(m, beam, data, order)
		if err != nil {
			return err
		}
		generations += n
		t.Metrics.epoch()
		if t.Verbosity > 0 && iteration%interval == 0 {
			log.Printf("Iteration: %d, %d updates for %d instances in %v", iteration, m.TrainStep()-lastTrainStep, len(order), time.Since(start))
			if dev != nil {
				m.AverageWeight()
				if err = t.report(m, dev); err != nil {
					return err
				}
			}
		}
		if m.TrainStep() == lastTrainStep {
			if t.Verbosity > 2 {
				log.Println("Converged")
			}
			break
		}
		lastTrainStep = m.TrainStep()
	}
	m.AverageWeight()
	return nil
}

// epoch runs the working-set sweeps of a DCDSSVM model, then one shuffled
// pass of minibatches. It returns the number of states learned from.
func (t *Trainer) epoch(m model.Model, beam *search.Beam, data *sequence.Data, order []int) (int, error) {
	r := t.random()
	shuffle := func() {
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if ws, ok := m.(model.WorkingSetModel); ok {
		before := m.TrainStep()
		for pass := 0; pass < model.SweepPasses; pass++ {
			shuffle()
			for _, idx := range order {
				ws.UpdateWeight(data.Instances[idx].Index())
			}
		}
		t.Metrics.addUpdates(m.TrainStep() - before)
	}
	shuffle()
	batch := util.Max(t.Options.MiniBatch, 1)
	var learned int
	for i := 0; i < len(order); i += batch {
		end := util.Min(i+batch, len(order))
		states := make([]*search.State, 0, end-i)
		for _, idx := range order[i:end] {
			inst := data.Instances[idx]
			s, err := t.search(m, beam, inst)
			if err != nil {
				return learned, errors.Wrapf(err, "searching instance %d", inst.Index())
			}
			if s == nil {
				t.Metrics.skip()
				if t.Verbosity > 3 {
					log.Println("At instance", inst.Index(), "skipped")
				}
				continue
			}
			if t.Verbosity > 3 {
				log.Println("At instance", inst.Index(), s)
			}
			states = append(states, s)
		}
		before := m.TrainStep()
		m.Update(states)
		t.Metrics.addUpdates(m.TrainStep() - before)
		learned += len(states)
	}
	return learned, nil
}

// search returns the state a training search of inst produces
func (t *Trainer) search(m model.Model, beam *search.Beam, inst sequence.Instance) (*search.State, error) {
	start := time.Now()
	defer func() {
		t.Metrics.observeSearch("train", time.Since(start).Seconds())
	}()
	if t.Update == MaxViolation {
		return beam.FindMaxViolatingState(m, inst)
	}
	states, err := beam.InferBestState(m, inst, false)
	if err != nil || len(states) == 0 {
		return nil, err
	}
	return states[0], nil
}

// Predict decodes every instance of test with the averaged weights and
// returns the best terminal state of each, nil where search produced none.
func (t *Trainer) Predict(m model.Model, test *sequence.Data) ([]*search.State, error) {
	start := time.Now()
	predicted := make([]*search.State, test.Len())
	for i, inst := range test.Instances {
		searchStart := time.Now()
		states, err := t.Beam.InferBestState(m, inst, true)
		if err != nil {
			return nil, errors.Wrapf(err, "predicting instance %d", inst.Index())
		}
		t.Metrics.observeSearch("predict", time.Since(searchStart).Seconds())
		if len(states) > 0 {
			predicted[i] = states[0]
		}
	}
	if t.Verbosity > 2 {
		log.Println("Prediction finished in", time.Since(start))
	}
	return predicted, nil
}

// Evaluate predicts dev and scores it with the Evaluator, or ExactMatch
// when none is set
func (t *Trainer) Evaluate(m model.Model, dev *sequence.Data) ([]Score, error) {
	predicted, err := t.Predict(m, dev)
	if err != nil {
		return nil, err
	}
	var evaluator Evaluator = ExactMatch{}
	if t.Evaluator != nil {
		evaluator = t.Evaluator
	}
	scores := evaluator.Evaluate(predicted)
	t.Metrics.setScores(scores)
	return scores, nil
}

func (t *Trainer) report(m model.Model, dev *sequence.Data) error {
	if dev == nil || t.Verbosity == 0 {
		return nil
	}
	start := time.Now()
	scores, err := t.Evaluate(m, dev)
	if err != nil {
		return errors.Wrap(err, "evaluating development data")
	}
	if t.Verbosity > 1 {
		for _, s := range scores {
			log.Println(s)
		}
		log.Println("Evaluation finished in", time.Since(start))
	}
	return nil
}
