package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
	"github.com/tticoin/JointER/alg/sequence/seqtest"
)

func toyInstances() []sequence.Instance {
	return []sequence.Instance{
		seqtest.New(0, []string{"A", "B", "A"}, []string{"A"}, []string{"B", "C"}, []string{"A"}),
		seqtest.New(1, []string{"B", "B", "C", "A"}, []string{"A", "B", "C"}),
		seqtest.New(2, []string{"C", "A", "A", "B", "C"}, []string{"A", "B", "C"}),
		seqtest.New(3, []string{"A", "C"}, []string{"A", "B", "C"}),
	}
}

func newModel(t *testing.T, method Method, opts Options) Model {
	m, err := New(method, &seqtest.Generator{Global: true}, opts)
	require.NoError(t, err)
	return m
}

func beamFor(m Model) *search.Beam {
	return &search.Beam{Size: 2, Margin: 1, Policy: m.Method().Policy(), GlobalFeatures: true}
}

func TestPerceptronAppliesFeatureDifference(t *testing.T) {
	m := newModel(t, Perceptron, Options{MiniBatch: 1})
	inst := toyInstances()[0]
	s, err := beamFor(m).FindMaxViolatingState(m, inst)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "A C A", s.Label().String())

	m.Update([]*search.State{s})

	gen := m.Generator()
	expected := featurevector.NewWeight(seqtest.Dim)
	sequence.Features(gen, inst, inst.Gold(), 3).AddToWeight(1, expected)
	sequence.Features(gen, inst, seqtest.Label("A", "C", "A"), 3).AddToWeight(-1, expected)
	assert.InDeltaSlice(t, expected.Values, m.Weight().Values, 1e-12)
	assert.Equal(t, 2, m.TrainStep())

	// gold now outscores the prediction, so the same state is not a violation
	m.Update([]*search.State{s})
	assert.Equal(t, 2, m.TrainStep())
}

func TestAverageIsMeanOfHistory(t *testing.T) {
	for _, method := range []Method{Perceptron, AdaGrad, AROW, SCW} {
		m := newModel(t, method, Options{Averaging: true, MiniBatch: 1, Lambda: 1})
		b := beamFor(m)
		history := []*featurevector.Weight{m.Weight().Copy()}
		instances := toyInstances()
		for round := 0; round < 20 && m.TrainStep() <= 5; round++ {
			inst := instances[round%len(instances)]
			s, err := b.FindMaxViolatingState(m, inst)
			require.NoError(t, err)
			before := m.TrainStep()
			m.Update([]*search.State{s})
			if m.TrainStep() != before {
				history = append(history, m.Weight().Copy())
			}
		}
		require.Greater(t, len(history), 1, method.String())

		mean := featurevector.NewWeight(seqtest.Dim)
		for _, w := range history {
			mean.Add(1/float64(len(history)), w)
		}
		m.AverageWeight()
		assert.InDeltaSlice(t, mean.Values, m.Average().Values, 1e-9, method.String())
	}
}

func TestUpdateSkipsCorrectAndNil(t *testing.T) {
	for method := Perceptron; method <= DCDSSVM; method++ {
		m := newModel(t, method, Options{Averaging: true, MiniBatch: 1, Lambda: 0.1, C: 1, Tolerance: 1e-3})
		inst := toyInstances()[1]
		weights := make([]float64, seqtest.Dim)
		for i, u := range []string{"B", "B", "C", "A"} {
			fv := m.Generator().Local(inst, inst.Gold().Prefix(i), i, seqtest.Unit(u))
			fv.AddToWeight(10, m.Weight())
		}
		copy(weights, m.Weight().Values)
		s, err := beamFor(m).FindMaxViolatingState(m, inst)
		require.NoError(t, err)
		require.True(t, s.Correct(), method.String())
		m.Update([]*search.State{s, nil})
		assert.Equal(t, 1, m.TrainStep(), method.String())
		assert.Equal(t, weights, m.Weight().Values, method.String())
	}
}

func TestSGDSVMImprovesGoldMargin(t *testing.T) {
	m := newModel(t, SGDSVM, Options{Averaging: true, MiniBatch: 1, Lambda: 1e-4})
	inst := toyInstances()[0]
	s, err := beamFor(m).FindMaxViolatingState(m, inst)
	require.NoError(t, err)
	m.Update([]*search.State{s})
	gen := m.Generator()
	gold := sequence.Features(gen, inst, inst.Gold(), 3).Dot(m.Weight())
	pred := sequence.Features(gen, inst, s.Label(), 3).Dot(m.Weight())
	assert.Greater(t, gold, pred)
	assert.Equal(t, 2, m.TrainStep())

	sgd := m.(*SGDSVMModel)
	for i := 0; i < 30; i++ {
		st, err := beamFor(m).FindMaxViolatingState(m, toyInstances()[i%4])
		require.NoError(t, err)
		m.Update([]*search.State{st})
	}
	m.AverageWeight()
	assert.Equal(t, 1.0, sgd.wdiv)
	for _, v := range m.Average().Values {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestConfidenceShrinks(t *testing.T) {
	for _, method := range []Method{AROW, SCW} {
		m := newModel(t, method, Options{MiniBatch: 1, Lambda: 1})
		for _, inst := range toyInstances() {
			s, err := beamFor(m).FindMaxViolatingState(m, inst)
			require.NoError(t, err)
			m.Update([]*search.State{s})
		}
		require.Greater(t, m.TrainStep(), 1, method.String())
		cov := m.vectors()[len(m.vectors())-1]
		var shrunk int
		for _, c := range cov.Values {
			require.True(t, c > 0 && c <= 1, "%s covariance %v", method, c)
			if c < 1 {
				shrunk++
			}
		}
		assert.Greater(t, shrunk, 0, method.String())
	}
}

func TestSCWPhi(t *testing.T) {
	m := newModel(t, SCW, Options{Lambda: 1})
	assert.InDelta(t, 0.6744897501960817, m.(*SCWModel).Phi(), 1e-9)
}

func TestDCDSSVMAlphaInBox(t *testing.T) {
	const c = 0.05
	m := newModel(t, DCDSSVM, Options{Averaging: true, MiniBatch: 2, C: c, Tolerance: 1e-6, Rand: rand.New(rand.NewSource(5))})
	dcd := m.(*DCDSSVMModel)
	b := beamFor(m)
	instances := toyInstances()
	check := func() {
		for _, idx := range dcd.WorkingSetIndices() {
			set := dcd.WorkingSet(idx)
			require.NotEmpty(t, set)
			for _, e := range set {
				assert.Greater(t, e.Alpha, 0.0)
				assert.LessOrEqual(t, e.Alpha, c)
			}
		}
	}
	for epoch := 0; epoch < 4; epoch++ {
		for pass := 0; pass < SweepPasses; pass++ {
			for _, idx := range dcd.WorkingSetIndices() {
				dcd.UpdateWeight(idx)
				check()
			}
		}
		for i := 0; i < len(instances); i += 2 {
			var batch []*search.State
			for _, inst := range instances[i : i+2] {
				s, err := b.FindMaxViolatingState(m, inst)
				require.NoError(t, err)
				batch = append(batch, s)
			}
			m.Update(batch)
			check()
		}
	}
	assert.Greater(t, m.TrainStep(), 1)
}

func TestDCDSSVMDropsSatisfiedExamples(t *testing.T) {
	m := newModel(t, DCDSSVM, Options{MiniBatch: 1, C: 1, Tolerance: 1e-6})
	dcd := m.(*DCDSSVMModel)
	inst := toyInstances()[0]
	s, err := beamFor(m).FindMaxViolatingState(m, inst)
	require.NoError(t, err)
	m.Update([]*search.State{s})
	require.Len(t, dcd.WorkingSet(0), 1)

	// make the kept example satisfied by a wide margin
	for i, u := range []string{"A", "B", "A"} {
		m.Generator().Local(inst, inst.Gold().Prefix(i), i, seqtest.Unit(u)).AddToWeight(100, m.Weight())
	}
	dcd.UpdateWeight(0)
	assert.Empty(t, dcd.WorkingSet(0))
	assert.NotContains(t, dcd.WorkingSetIndices(), 0)
}

func TestInitializeFrom(t *testing.T) {
	local := newModel(t, Perceptron, Options{Averaging: true, MiniBatch: 1})
	s, err := beamFor(local).FindMaxViolatingState(local, toyInstances()[0])
	require.NoError(t, err)
	local.Update([]*search.State{s})
	local.AverageWeight()

	full := newModel(t, AROW, Options{MiniBatch: 1, Lambda: 1})
	full.InitializeFrom(local)
	assert.Equal(t, local.Average().Values, full.Weight().Values)
}

func TestNewRejectsDegenerateOptions(t *testing.T) {
	gen := &seqtest.Generator{}
	cases := []struct {
		name   string
		method Method
		opts   Options
	}{
		{"sgd lambda one", SGDSVM, Options{Lambda: 1}},
		{"sgd lambda above one", SGDSVM, Options{Lambda: 2}},
		{"sgd lambda zero", SGDSVM, Options{Lambda: 0}},
		{"sgd lambda negative", SGDSVM, Options{Lambda: -0.5}},
		{"sgd lambda nan", SGDSVM, Options{Lambda: math.NaN()}},
		{"arow lambda zero", AROW, Options{Lambda: 0}},
		{"arow lambda negative", AROW, Options{Lambda: -1}},
		{"scw lambda zero", SCW, Options{Lambda: 0}},
		{"dcd C zero", DCDSSVM, Options{C: 0}},
		{"dcd C negative", DCDSSVM, Options{C: -1}},
		{"unknown method", Method(42), Options{}},
	}
	for _, c := range cases {
		_, err := New(c.method, gen, c.opts)
		assert.Error(t, err, c.name)
	}
	for _, lambda := range []float64{1e-4, 0.5, 0.999} {
		_, err := New(SGDSVM, gen, Options{Lambda: lambda})
		assert.NoError(t, err, "lambda %v", lambda)
	}
}

// pegasos replays SGDSVM updates on an explicit weight vector, keeping
// every weight it passes through
type pegasos struct {
	lambda  float64
	step    int
	weight  *featurevector.Weight
	history []*featurevector.Weight
}

func newPegasos(lambda float64) *pegasos {
	w := featurevector.NewWeight(seqtest.Dim)
	return &pegasos{lambda: lambda, step: 1, weight: w, history: []*featurevector.Weight{w.Copy()}}
}

func (p *pegasos) update(gen sequence.FeatureGenerator, s *search.State) {
	eta := 1 / (1 + p.lambda*float64(p.step-1))
	p.weight.Scale(1 - eta*p.lambda)
	if s == nil || s.Correct() {
		return
	}
	inst, n := s.Instance(), s.Label().Len()
	gold := sequence.Features(gen, inst, inst.Gold(), n)
	pred := sequence.Features(gen, inst, s.Label(), n)
	if gold.Dot(p.weight)-pred.Dot(p.weight) > s.Margin() {
		return
	}
	gold.AddToWeight(eta, p.weight)
	pred.AddToWeight(-eta, p.weight)
	p.step++
	p.history = append(p.history, p.weight.Copy())
}

func (p *pegasos) mean() *featurevector.Weight {
	mean := featurevector.NewWeight(seqtest.Dim)
	for _, w := range p.history {
		mean.Add(1/float64(len(p.history)), w)
	}
	return mean
}

// trueWeight is the weight the lazily scaled vector stands for
func trueWeight(m *SGDSVMModel) []float64 {
	w := m.Weight().Copy()
	w.Scale(1 / m.wdiv)
	return w.Values
}

// inflate multiplies the stored weight and its divisor by k, keeping the
// true weight and the running average unchanged
func inflate(m *SGDSVMModel, k float64) {
	m.weight.Scale(k)
	m.wdiv *= k
	m.wfrac /= k
}

func TestSGDSVMAverageMatchesPegasos(t *testing.T) {
	for _, renorm := range []bool{false, true} {
		const lambda = 0.1
		m := newModel(t, SGDSVM, Options{Averaging: true, MiniBatch: 1, Lambda: lambda})
		sgd := m.(*SGDSVMModel)
		ref := newPegasos(lambda)
		b := beamFor(m)
		instances := toyInstances()
		var renormed bool
		for round := 0; round < 12; round++ {
			if renorm && round == 5 {
				inflate(sgd, renormThreshold)
				require.InDeltaSlice(t, ref.weight.Values, trueWeight(sgd), 1e-9)
			}
			s, err := b.FindMaxViolatingState(m, instances[round%len(instances)])
			require.NoError(t, err)
			before := sgd.wdiv
			ref.update(m.Generator(), s)
			m.Update([]*search.State{s})
			if sgd.wdiv < before {
				renormed = true
			}
			require.Equal(t, ref.step, m.TrainStep(), "round %d", round)
			require.InDeltaSlice(t, ref.weight.Values, trueWeight(sgd), 1e-9, "round %d", round)
		}
		require.Greater(t, m.TrainStep(), 3)
		assert.Equal(t, renorm, renormed)

		m.AverageWeight()
		assert.Equal(t, 1.0, sgd.wdiv)
		assert.InDeltaSlice(t, ref.mean().Values, m.Average().Values, 1e-9, "renorm %v", renorm)
		assert.InDeltaSlice(t, ref.weight.Values, m.Weight().Values, 1e-9, "renorm %v", renorm)
	}
}

func TestSGDSVMScoresTrueWeight(t *testing.T) {
	m := newModel(t, SGDSVM, Options{MiniBatch: 1, Lambda: 0.5})
	inst := toyInstances()[0]
	s, err := beamFor(m).FindMaxViolatingState(m, inst)
	require.NoError(t, err)
	m.Update([]*search.State{s})
	sgd := m.(*SGDSVMModel)
	require.NotEqual(t, 1.0, sgd.wdiv)

	fv := sequence.Features(m.Generator(), inst, inst.Gold(), 3)
	assert.InDelta(t, fv.Dot(m.Weight())/sgd.wdiv, m.Score(fv, false), 1e-12)

	// the next search ranks by true scores and prefers gold
	best, err := beamFor(m).InferBestState(m, inst, true)
	require.NoError(t, err)
	require.NotEmpty(t, best)
	assert.Equal(t, "A B A", best[0].Label().String())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("arow")
	require.NoError(t, err)
	assert.Equal(t, AROW, m)
	assert.Equal(t, "DCDSSVM", DCDSSVM.String())
	assert.Equal(t, search.ConfidenceMargin, SCW.Policy())
	_, err = ParseMethod("svm")
	assert.Error(t, err)
}
