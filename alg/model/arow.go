package model

import (
	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// AROWModel keeps a diagonal covariance that shrinks along every
// coordinate it updates.
type AROWModel struct {
	base
	r          float64
	covariance *featurevector.Weight
}

var _ Model = &AROWModel{}

func NewAROW(gen sequence.FeatureGenerator, opts Options) *AROWModel {
	m := &AROWModel{
		base:       newBase(gen, opts),
		r:          opts.Lambda,
		covariance: featurevector.NewWeight(gen.Dim()),
	}
	m.covariance.Fill(1)
	return m
}

func (m *AROWModel) Method() Method {
	return AROW
}

func (m *AROWModel) vectors() []*featurevector.Weight {
	return append(m.base.vectors(), m.covariance)
}

func (m *AROWModel) Confidence(fv *featurevector.Hashed) float64 {
	return confidence(m.covariance, fv)
}

func (m *AROWModel) Update(states []*search.State) {
	fv := featurevector.NewHashed(m.gen.Dim())
	var gradSum float64
	for _, s := range states {
		if s == nil || s.Correct() {
			continue
		}
		gold := m.goldFeatures(s)
		grad := s.Score() + s.Margin() - gold.Dot(m.weight)
		if grad > 0 {
			fv.Add(1, m.delta(s, gold, 1))
			gradSum += grad
		}
	}
	fv.Compact()
	if m.opts.MiniBatch != 1 {
		fv.Scale(1 / m.miniBatch())
		gradSum /= m.miniBatch()
	}
	if gradSum == 0 {
		return
	}
	denom := m.r + m.Confidence(fv)
	if denom == 0 {
		return
	}
	alpha := gradSum / denom
	fv.Each(func(i int, g float64) {
		cov := m.covariance.Values[i]
		diff := alpha * cov * g
		m.weight.Values[i] += diff
		if m.opts.Averaging {
			m.weightDiff.Values[i] += float64(m.trainStep) * diff
		}
		m.covariance.Values[i] = 1 / (1/cov + g*g/m.r)
	})
	m.trainStep++
}
