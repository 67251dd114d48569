package model

import (
	"math"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// renormThreshold bounds the lazy scaling factors before they are folded
// into the vectors
const renormThreshold = 1e5

// SGDSVMModel is Pegasos-style SGD on the L2-regularized structured hinge
// loss, with averaged SGD. The stored weight is the true weight times wdiv;
// the stored average is (weightDiff + wfrac*weight)/adiv. Lambda must lie
// in [0, 1) so that every step keeps 1 - eta*lambda positive.
type SGDSVMModel struct {
	base
	eta0, mu0 float64
	lambda    float64
	wdiv      float64
	adiv      float64
	wfrac     float64
}

var _ Model = &SGDSVMModel{}

func NewSGDSVM(gen sequence.FeatureGenerator, opts Options) *SGDSVMModel {
	return &SGDSVMModel{
		base:   newBase(gen, opts),
		eta0:   1,
		mu0:    1,
		lambda: opts.Lambda,
		wdiv:   1,
		adiv:   1,
	}
}

func (m *SGDSVMModel) Method() Method {
	return SGDSVM
}

// Score uses the true weight, so margins and scores share one scale
func (m *SGDSVMModel) Score(fv *featurevector.Hashed, average bool) float64 {
	if average && m.opts.Averaging {
		return fv.Dot(m.aveWeight)
	}
	return fv.Dot(m.weight) / m.wdiv
}

func (m *SGDSVMModel) renorm() {
	if m.wdiv == 1 && m.adiv == 1 && m.wfrac == 0 {
		return
	}
	if m.opts.Averaging {
		m.weightDiff.Scale(1 / m.adiv)
		m.weightDiff.Add(m.wfrac/m.adiv, m.weight)
		m.adiv = 1
		m.wfrac = 0
	}
	m.weight.Scale(1 / m.wdiv)
	m.wdiv = 1
}

func (m *SGDSVMModel) AverageWeight() {
	if !m.opts.Averaging {
		return
	}
	m.renorm()
	m.aveWeight.Set(m.weightDiff)
}

// InitializeFrom shifts both the weight and the running average, as the
// other learners do
func (m *SGDSVMModel) InitializeFrom(other Model) {
	m.renorm()
	m.weight.Add(1, other.Average())
	if m.opts.Averaging {
		m.weightDiff.Add(1, other.Average())
	}
}

// vectors folds the lazy scales in first, so saved vectors hold true weights
func (m *SGDSVMModel) vectors() []*featurevector.Weight {
	m.renorm()
	return m.base.vectors()
}

// eta is the step size at the current train step
func (m *SGDSVMModel) eta() float64 {
	return m.eta0 / (1 + m.lambda*m.eta0*float64(m.trainStep-1))
}

func (m *SGDSVMModel) Update(states []*search.State) {
	eta := m.eta()
	m.wdiv /= 1 - eta*m.lambda
	if m.adiv > renormThreshold || m.wdiv > renormThreshold {
		m.renorm()
	}
	update := featurevector.NewHashed(m.gen.Dim())
	var numUpdates int
	for _, s := range states {
		if s == nil || s.Correct() {
			continue
		}
		gold, pred := m.goldFeatures(s), m.features(s)
		if (gold.Dot(m.weight)-pred.Dot(m.weight))/m.wdiv > s.Margin() {
			continue
		}
		alpha := eta * m.wdiv
		if math.Abs(alpha) < math.SmallestNonzeroFloat64 {
			continue
		}
		update.Add(alpha, gold)
		update.Add(-alpha, pred)
		numUpdates++
	}
	if numUpdates == 0 {
		return
	}
	update.Compact()
	update.AddToWeight(1/m.miniBatch(), m.weight)
	if m.opts.Averaging {
		// mu = 1/(t+1) keeps the average equal to the mean of the initial
		// weight and the weight after each of the t steps
		mu := m.mu0 / (1 + m.mu0*float64(m.trainStep))
		update.AddToWeight(-m.wfrac/m.miniBatch(), m.weightDiff)
		m.adiv /= 1 - mu
		m.wfrac += mu * m.adiv / m.wdiv
	}
	m.trainStep++
}
