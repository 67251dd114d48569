package model

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// SCWConfidence is the probability with which SCW requires the margin
// constraint to hold
const SCWConfidence = 0.75

// SCWModel is soft confidence-weighted learning (SCW-I) over the
// difference vectors accumulated by the confidence margin policy.
type SCWModel struct {
	base
	phi, phiSquared float64
	psi, zeta       float64
	c               float64
	covariance      *featurevector.Weight
}

var _ Model = &SCWModel{}
var _ search.Confidence = &SCWModel{}

func NewSCW(gen sequence.FeatureGenerator, opts Options) *SCWModel {
	phi := distuv.UnitNormal.Quantile(SCWConfidence)
	m := &SCWModel{
		base:       newBase(gen, opts),
		phi:        phi,
		phiSquared: phi * phi,
		psi:        1 + phi*phi/2,
		zeta:       1 + phi*phi,
		c:          opts.Lambda,
		covariance: featurevector.NewWeight(gen.Dim()),
	}
	m.covariance.Fill(1)
	return m
}

func (m *SCWModel) Method() Method {
	return SCW
}

func (m *SCWModel) vectors() []*featurevector.Weight {
	return append(m.base.vectors(), m.covariance)
}

func (m *SCWModel) Phi() float64 {
	return m.phi
}

func (m *SCWModel) Confidence(fv *featurevector.Hashed) float64 {
	return confidence(m.covariance, fv)
}

func (m *SCWModel) Update(states []*search.State) {
	fv := featurevector.NewHashed(m.gen.Dim())
	var gradSum float64
	for _, s := range states {
		if s == nil || s.Correct() || s.Diff() == nil {
			continue
		}
		diffScore := s.Diff().Dot(m.weight) - s.Margin()
		if -diffScore > 0 {
			fv.Add(1, s.Diff())
			gradSum += diffScore
		}
	}
	fv.Compact()
	if fv.Size() == 0 {
		return
	}
	if m.opts.MiniBatch != 1 {
		fv.Scale(1 / m.miniBatch())
		gradSum /= m.miniBatch()
	}
	m.update(fv, gradSum)
}

func (m *SCWModel) update(fv *featurevector.Hashed, margin float64) {
	v := m.Confidence(fv)
	if v == 0 {
		return
	}
	alpha := -margin*m.psi + math.Sqrt(math.Pow(margin*m.phiSquared/2, 2)+v*m.phiSquared*m.zeta)
	alpha /= v * m.zeta
	alpha = math.Min(m.c, math.Max(0, alpha))
	if alpha == 0 || math.IsNaN(alpha) {
		return
	}
	avp := alpha * v * m.phi
	sqrtU := math.Abs((-avp + math.Sqrt(avp*avp+4*v)) / 2)
	beta := alpha * m.phi / (sqrtU + avp)
	fv.Each(func(i int, g float64) {
		covG := m.covariance.Values[i] * g
		diff := alpha * covG
		m.weight.Values[i] += diff
		if m.opts.Averaging {
			m.weightDiff.Values[i] += float64(m.trainStep) * diff
		}
		m.covariance.Values[i] -= beta * covG * covG
	})
	m.trainStep++
}
