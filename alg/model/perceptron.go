package model

import (
	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

type PerceptronModel struct {
	base
}

var _ Model = &PerceptronModel{}

func NewPerceptron(gen sequence.FeatureGenerator, opts Options) *PerceptronModel {
	return &PerceptronModel{newBase(gen, opts)}
}

func (m *PerceptronModel) Method() Method {
	return Perceptron
}

func (m *PerceptronModel) Update(states []*search.State) {
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
		update.Add(1, gold)
		update.Add(-1, m.features(s))
		numUpdates++
	}
	if numUpdates == 0 {
		return
	}
	update.Compact()
	m.addAveraged(1/m.miniBatch(), update)
	m.trainStep++
}
