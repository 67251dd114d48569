package model

import (
	"math"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// AdaGradModel scales each coordinate's hinge subgradient step by the
// inverse root of its accumulated squared gradients.
type AdaGradModel struct {
	base
	eta, smoothing float64
	squared        *featurevector.Weight
}

var _ Model = &AdaGradModel{}

func NewAdaGrad(gen sequence.FeatureGenerator, opts Options) *AdaGradModel {
	return &AdaGradModel{
		base:      newBase(gen, opts),
		eta:       1,
		smoothing: 0.1,
		squared:   featurevector.NewWeight(gen.Dim()),
	}
}

func (m *AdaGradModel) Method() Method {
	return AdaGrad
}

func (m *AdaGradModel) vectors() []*featurevector.Weight {
	return append(m.base.vectors(), m.squared)
}

func (m *AdaGradModel) Update(states []*search.State) {
	update := featurevector.NewHashed(m.gen.Dim())
	var numUpdates int
	for _, s := range states {
		if s == nil || s.Correct() {
			continue
		}
		gold := m.goldFeatures(s)
		if s.Score()+s.Margin() <= gold.Dot(m.weight) {
			continue
		}
		update.Add(1, m.delta(s, gold, 1))
		numUpdates++
	}
	if numUpdates == 0 {
		return
	}
	update.Compact()
	update.Scale(1 / m.miniBatch())
	update.Each(func(i int, g float64) {
		m.squared.Values[i] += g * g
	})
	update.Each(func(i int, g float64) {
		diff := m.eta / (m.smoothing + math.Sqrt(m.squared.Values[i])) * g
		m.weight.Values[i] += diff
		if m.opts.Averaging {
			m.weightDiff.Values[i] += diff * float64(m.trainStep)
		}
	})
	m.trainStep++
}
