// Package model implements online learners for structured prediction that
// share a hashed weight vector and an averaging scheme.
package model

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

type Method int

const (
	Perceptron Method = iota
	SGDSVM
	AdaGrad
	AROW
	SCW
	DCDSSVM
)

var methodNames = []string{"Perceptron", "SGDSVM", "AdaGrad", "AROW", "SCW", "DCDSSVM"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

func ParseMethod(name string) (Method, error) {
	for i, n := range methodNames {
		if strings.EqualFold(n, name) {
			return Method(i), nil
		}
	}
	return 0, errors.Errorf("unknown learning method %q (want one of %s)", name, strings.Join(methodNames, ", "))
}

// Policy returns the margin policy the method's search must use
func (m Method) Policy() search.MarginPolicy {
	if m == SCW {
		return search.ConfidenceMargin
	}
	return search.HammingMargin
}

type Options struct {
	Averaging bool
	MiniBatch int
	// Lambda is the regularization weight of SGDSVM, the r of AROW and
	// the C of SCW.
	Lambda float64
	// C and Tolerance bound and stop the DCDSSVM dual updates
	C         float64
	Tolerance float64
	// Importance weights labels for DCDSSVM example costs when set
	Importance func(sequence.LabelUnit) float64
	Rand       *rand.Rand
}

// Model is an online learner. Update, AverageWeight and InitializeFrom are
// called from a single goroutine between searches; Score may be called
// concurrently by search workers.
type Model interface {
	search.Model
	Method() Method
	// Update learns from the result of searching each instance of a
	// minibatch; nil and correct states are skipped.
	Update(states []*search.State)
	// AverageWeight freezes the running average used by Score(fv, true)
	AverageWeight()
	// InitializeFrom adds the averaged weights of other to the weights
	InitializeFrom(other Model)
	TrainStep() int
	Weight() *featurevector.Weight
	Average() *featurevector.Weight

	vectors() []*featurevector.Weight
	setTrainStep(int)
}

func New(method Method, gen sequence.FeatureGenerator, opts Options) (Model, error) {
	if opts.MiniBatch < 1 {
		opts.MiniBatch = 1
	}
	if !featurevector.IsPowerOfTwo(gen.Dim()) {
		return nil, errors.Errorf("feature space size %d is not a power of two", gen.Dim())
	}
	if err := checkOptions(method, opts); err != nil {
		return nil, err
	}
	switch method {
	case Perceptron:
		return NewPerceptron(gen, opts), nil
	case SGDSVM:
		return NewSGDSVM(gen, opts), nil
	case AdaGrad:
		return NewAdaGrad(gen, opts), nil
	case AROW:
		return NewAROW(gen, opts), nil
	case SCW:
		return NewSCW(gen, opts), nil
	case DCDSSVM:
		return NewDCDSSVM(gen, opts), nil
	default:
		return nil, errors.Errorf("unknown learning method %v", method)
	}
}

// checkOptions rejects hyperparameters a method cannot learn with. SGDSVM
// needs 1 - eta*lambda > 0 at every step; eta starts at 1, so lambda < 1.
func checkOptions(method Method, opts Options) error {
	switch method {
	case SGDSVM:
		if !(opts.Lambda > 0 && opts.Lambda < 1) {
			return errors.Errorf("SGDSVM regularization weight %v outside (0, 1)", opts.Lambda)
		}
	case AROW, SCW:
		if !(opts.Lambda > 0) {
			return errors.Errorf("%v lambda %v must be positive", method, opts.Lambda)
		}
	case DCDSSVM:
		if !(opts.C > 0) {
			return errors.Errorf("DCDSSVM C %v must be positive", opts.C)
		}
	}
	return nil
}

// base holds the weights and averaging state shared by every learner.
// average = weight - weightDiff/trainStep, where every update of weight
// by d at step t adds t*d to weightDiff.
type base struct {
	opts       Options
	gen        sequence.FeatureGenerator
	weight     *featurevector.Weight
	weightDiff *featurevector.Weight
	aveWeight  *featurevector.Weight
	trainStep  int
}

func newBase(gen sequence.FeatureGenerator, opts Options) base {
	b := base{
		opts:      opts,
		gen:       gen,
		weight:    featurevector.NewWeight(gen.Dim()),
		trainStep: 1,
	}
	if opts.Averaging {
		b.weightDiff = featurevector.NewWeight(gen.Dim())
		b.aveWeight = featurevector.NewWeight(gen.Dim())
	}
	return b
}

func (m *base) Generator() sequence.FeatureGenerator {
	return m.gen
}

func (m *base) Score(fv *featurevector.Hashed, average bool) float64 {
	if average && m.opts.Averaging {
		return fv.Dot(m.aveWeight)
	}
	return fv.Dot(m.weight)
}

func (m *base) TrainStep() int {
	return m.trainStep
}

func (m *base) setTrainStep(t int) {
	m.trainStep = t
}

func (m *base) Weight() *featurevector.Weight {
	return m.weight
}

// Average returns the frozen average, or the raw weights when averaging
// is off.
func (m *base) Average() *featurevector.Weight {
	if m.opts.Averaging {
		return m.aveWeight
	}
	return m.weight
}

func (m *base) AverageWeight() {
	if !m.opts.Averaging {
		return
	}
	m.aveWeight.Set(m.weight)
	m.aveWeight.Add(-1/float64(m.trainStep), m.weightDiff)
}

func (m *base) InitializeFrom(other Model) {
	m.weight.Add(1, other.Average())
}

func (m *base) vectors() []*featurevector.Weight {
	if m.opts.Averaging {
		return []*featurevector.Weight{m.weight, m.weightDiff, m.aveWeight}
	}
	return []*featurevector.Weight{m.weight}
}

func (m *base) miniBatch() float64 {
	return float64(m.opts.MiniBatch)
}

// goldFeatures is the gold feature vector over the positions s labeled
func (m *base) goldFeatures(s *search.State) *featurevector.Hashed {
	return sequence.GoldFeatures(m.gen, s.Instance(), s.Label().Len())
}

func (m *base) features(s *search.State) *featurevector.Hashed {
	return sequence.Features(m.gen, s.Instance(), s.Label(), s.Label().Len())
}

// delta is scale * (gold - s) features, compacted
func (m *base) delta(s *search.State, gold *featurevector.Hashed, scale float64) *featurevector.Hashed {
	d := featurevector.NewHashed(m.gen.Dim())
	d.Add(scale, gold)
	d.Add(-scale, m.features(s))
	d.Compact()
	return d
}

// addAveraged adds scale*fv to the weights, keeping the average current
func (m *base) addAveraged(scale float64, fv *featurevector.Hashed) {
	fv.AddToWeight(scale, m.weight)
	if m.opts.Averaging {
		fv.AddToWeight(scale*float64(m.trainStep), m.weightDiff)
	}
}

// confidence is sum_i cov_i * g_i^2 over the entries of fv
func confidence(cov *featurevector.Weight, fv *featurevector.Hashed) float64 {
	var c float64
	fv.Each(func(i int, g float64) {
		c += cov.Values[i] * g * g
	})
	return c
}
