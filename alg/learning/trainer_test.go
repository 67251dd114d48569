package learning

import (
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
	"github.com/tticoin/JointER/alg/sequence/seqtest"
)

// cyclic labels position i with "ABC"[i%3], so unigram features separate
// the data
func cyclic(sizes ...int) *sequence.Data {
	var instances []sequence.Instance
	for idx, size := range sizes {
		gold := make([]string, size)
		for i := range gold {
			gold[i] = string("ABC"[i%3])
		}
		instances = append(instances, seqtest.New(idx, gold, []string{"A", "B", "C"}))
	}
	return sequence.NewData(instances)
}

func newTrainer(method model.Method) *Trainer {
	return &Trainer{
		Method:     method,
		Options:    model.Options{Averaging: true, MiniBatch: 2, Lambda: 1, C: 1, Tolerance: 1e-3},
		Beam:       &search.Beam{Size: 2, Margin: 1, Policy: method.Policy()},
		Update:     MaxViolation,
		Iterations: 30,
	}
}

func TestLearnSeparable(t *testing.T) {
	data := cyclic(3, 4, 5, 6)
	for _, method := range []model.Method{model.Perceptron, model.AdaGrad, model.AROW} {
		trainer := newTrainer(method)
		m, err := trainer.Learn(data, &seqtest.Generator{}, nil)
		require.NoError(t, err, method.String())
		assert.Greater(t, m.TrainStep(), 1, method.String())

		scores, err := trainer.Evaluate(m, cyclic(2, 6))
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, 2, scores[0].Correct, "%v: %v", method, scores[0])
	}
}

func TestLearnUpdateMethods(t *testing.T) {
	data := cyclic(3, 5)
	for _, update := range []UpdateMethod{Early, Standard} {
		trainer := newTrainer(model.Perceptron)
		trainer.Update = update
		m, err := trainer.Learn(data, &seqtest.Generator{}, nil)
		require.NoError(t, err, update.String())
		predicted, err := trainer.Predict(m, data)
		require.NoError(t, err)
		for _, s := range predicted {
			assert.True(t, s.Label().Equal(s.Instance().Gold()), "%v predicted %v", update, s.Label())
		}
	}
}

func TestStopCondition(t *testing.T) {
	trainer := newTrainer(model.Perceptron)
	var calls, seen []int
	trainer.Continue = func(curIt, numIt, generations int, m model.Model) bool {
		calls = append(calls, curIt)
		seen = append(seen, generations)
		return curIt < 1
	}
	_, err := trainer.Learn(cyclic(4, 4, 4), &seqtest.Generator{Global: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, calls)
	assert.Equal(t, []int{0, 3}, seen)
}

func TestLocalInit(t *testing.T) {
	trainer := newTrainer(model.Perceptron)
	trainer.LocalInit = true
	trainer.LocalIterations = 3
	trainer.Iterations = 0
	trainer.Beam.GlobalFeatures = true
	m, err := trainer.Learn(cyclic(3, 4), &seqtest.Generator{Global: true}, nil)
	require.NoError(t, err)

	// with no global epochs the model holds exactly the local average
	var nonzero int
	for _, v := range m.Weight().Values {
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 0)
	assert.Equal(t, 1, m.TrainStep())
}

func TestDCDSSVMTraining(t *testing.T) {
	trainer := newTrainer(model.DCDSSVM)
	trainer.Weighting = true
	trainer.Beam.WeightedMargin = true
	trainer.Iterations = 5
	data := cyclic(3, 4, 5)
	m, err := trainer.Learn(data, &seqtest.Generator{Global: true}, nil)
	require.NoError(t, err)
	assert.Greater(t, m.TrainStep(), 1)
	assert.NotNil(t, trainer.Beam.Importance)
	assert.Equal(t, 1.0, data.Importance(seqtest.Unit("A")))
	for _, idx := range m.(model.WorkingSetModel).WorkingSetIndices() {
		for _, e := range m.(*model.DCDSSVMModel).WorkingSet(idx) {
			assert.True(t, e.Alpha > 0 && e.Alpha <= e.C)
		}
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	trainer := newTrainer(model.Perceptron)
	trainer.Metrics = NewMetrics(reg)
	trainer.Iterations = 2
	trainer.Continue = func(curIt, numIt, generations int, m model.Model) bool {
		return curIt < numIt
	}
	trainer.Evaluator = ExactMatch{}
	trainer.Verbosity = 2
	trainer.OutputInterval = 1
	dev := cyclic(3)
	m, err := trainer.Learn(cyclic(3, 4, 5), &seqtest.Generator{}, dev)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(trainer.Metrics.epochs))
	assert.Equal(t, float64(m.TrainStep()-1), testutil.ToFloat64(trainer.Metrics.updates))
	assert.Equal(t, 1, testutil.CollectAndCount(trainer.Metrics.devScore))
	count, err := testutil.GatherAndCount(reg, "jointer_search_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsCountSweepUpdates(t *testing.T) {
	trainer := newTrainer(model.DCDSSVM)
	trainer.Metrics = NewMetrics(prometheus.NewRegistry())
	trainer.Iterations = 4
	trainer.Continue = func(curIt, numIt, generations int, m model.Model) bool {
		return curIt < numIt
	}
	m, err := trainer.Learn(cyclic(3, 4, 5), &seqtest.Generator{Global: true}, nil)
	require.NoError(t, err)
	require.Greater(t, m.TrainStep(), 1)
	assert.Equal(t, float64(m.TrainStep()-1), testutil.ToFloat64(trainer.Metrics.updates))
}

func TestLearnSharesRandomSource(t *testing.T) {
	run := func() (*Trainer, model.Model) {
		trainer := newTrainer(model.Perceptron)
		trainer.Update = Early
		trainer.Beam.Epsilon = 0.5
		trainer.Rand = rand.New(rand.NewSource(3))
		trainer.Iterations = 5
		m, err := trainer.Learn(cyclic(3, 4, 5, 6), &seqtest.Generator{}, nil)
		require.NoError(t, err)
		return trainer, m
	}
	trainer, m := run()
	assert.Same(t, trainer.Rand, trainer.Beam.Rand)
	// the early-update copy is internal to training
	assert.False(t, trainer.Beam.EarlyUpdate)

	_, again := run()
	assert.Equal(t, m.TrainStep(), again.TrainStep())
	assert.Equal(t, m.Weight().Values, again.Weight().Values)
}

type panicGenerator struct {
	seqtest.Generator
}

func (g *panicGenerator) Local(inst sequence.Instance, prefix sequence.Label, position int, candidate sequence.LabelUnit) *featurevector.Hashed {
	panic("broken feature")
}

func TestLearnReportsCachingFailure(t *testing.T) {
	trainer := newTrainer(model.Perceptron)
	trainer.Beam.Concurrent = true
	trainer.Beam.Processors = 2
	_, err := trainer.Learn(cyclic(3, 4), &panicGenerator{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken feature")
}

func TestExactMatch(t *testing.T) {
	data := cyclic(3, 3)
	m, err := model.New(model.Perceptron, &seqtest.Generator{}, model.Options{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		inst := data.Instances[0]
		m.Generator().Local(inst, inst.Gold().Prefix(i), i, inst.Gold().At(i)).AddToWeight(1, m.Weight())
	}
	trainer := &Trainer{Beam: &search.Beam{Size: 1}, Rand: rand.New(rand.NewSource(1))}
	scores, err := trainer.Evaluate(m, data)
	require.NoError(t, err)
	assert.Equal(t, Score{Name: "Accuracy", Correct: 2, Predicted: 2, Gold: 2}, scores[0])
	assert.Equal(t, 1.0, scores[0].F1())
}

func TestScore(t *testing.T) {
	s := Score{Name: "entity", Correct: 3, Predicted: 4, Gold: 6}
	assert.InDelta(t, 0.75, s.Precision(), 1e-12)
	assert.InDelta(t, 0.5, s.Recall(), 1e-12)
	assert.InDelta(t, 0.6, s.F1(), 1e-12)
	assert.Equal(t, 0.0, Score{}.F1())
	assert.Equal(t, "entity P 0.7500 (3/4) R 0.5000 (3/6) F 0.6000", s.String())
}

func TestParseUpdateMethod(t *testing.T) {
	u, err := ParseUpdateMethod("early")
	require.NoError(t, err)
	assert.Equal(t, Early, u)
	_, err = ParseUpdateMethod("late")
	assert.Error(t, err)
}
