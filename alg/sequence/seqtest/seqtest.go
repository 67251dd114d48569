// Package seqtest provides a small labeled-sequence task for testing the
// search and learning packages.
package seqtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/sequence"
)

const Dim = 1 << 16

type Unit string

var _ sequence.LabelUnit = Unit("")

func (u Unit) Equal(other sequence.LabelUnit) bool {
	o, ok := other.(Unit)
	return ok && o == u
}

func (u Unit) Compare(other sequence.LabelUnit) int {
	return strings.Compare(string(u), other.String())
}

func (u Unit) IsNegative() bool {
	return u == "O"
}

func (u Unit) String() string {
	return string(u)
}

func Label(units ...string) sequence.Label {
	converted := make([]sequence.LabelUnit, len(units))
	for i, u := range units {
		converted[i] = Unit(u)
	}
	return sequence.NewLabel(converted...)
}

// Instance has a fixed candidate set per position. IDs name the positions
// so features survive reordering.
type Instance struct {
	Idx     int
	IDs     []int
	Choices [][]Unit
	Golds   []Unit
}

var _ sequence.Reorderer = &Instance{}

// New builds an instance whose every position offers choices
func New(idx int, gold []string, choices ...[]string) *Instance {
	inst := &Instance{Idx: idx}
	for i, g := range gold {
		inst.IDs = append(inst.IDs, i)
		inst.Golds = append(inst.Golds, Unit(g))
		cs := choices[0]
		if i < len(choices) {
			cs = choices[i]
		}
		units := make([]Unit, len(cs))
		for j, c := range cs {
			units[j] = Unit(c)
		}
		inst.Choices = append(inst.Choices, units)
	}
	return inst
}

func (i *Instance) Index() int {
	return i.Idx
}

func (i *Instance) Size() int {
	return len(i.Golds)
}

func (i *Instance) Gold() sequence.Label {
	units := make([]sequence.LabelUnit, len(i.Golds))
	for j, g := range i.Golds {
		units[j] = g
	}
	return sequence.NewLabel(units...)
}

func (i *Instance) Candidates(prefix sequence.Label, position int) []sequence.LabelUnit {
	units := make([]sequence.LabelUnit, len(i.Choices[position]))
	for j, c := range i.Choices[position] {
		units[j] = c
	}
	return units
}

func (i *Instance) Clone() sequence.Instance {
	c := &Instance{
		Idx:     i.Idx,
		IDs:     append([]int(nil), i.IDs...),
		Golds:   append([]Unit(nil), i.Golds...),
		Choices: make([][]Unit, len(i.Choices)),
	}
	for j, cs := range i.Choices {
		c.Choices[j] = append([]Unit(nil), cs...)
	}
	return c
}

// Reorder sorts the positions from position onward by their best local
// score, highest first.
func (i *Instance) Reorder(g sequence.FeatureGenerator, s sequence.Scorer, prefix sequence.Label, position int, average bool) {
	type scored struct {
		id     int
		choice []Unit
		gold   Unit
		best   float64
	}
	rest := make([]scored, 0, len(i.IDs)-position)
	for j := position; j < len(i.IDs); j++ {
		cur := scored{id: i.IDs[j], choice: i.Choices[j], gold: i.Golds[j]}
		for k, c := range cur.choice {
			score := s.Score(g.Local(i, prefix, j, c), average)
			if k == 0 || score > cur.best {
				cur.best = score
			}
		}
		rest = append(rest, cur)
	}
	sort.SliceStable(rest, func(a, b int) bool { return rest[a].best > rest[b].best })
	for j, cur := range rest {
		i.IDs[position+j] = cur.id
		i.Choices[position+j] = cur.choice
		i.Golds[position+j] = cur.gold
	}
}

// Generator emits a unigram feature per (position id, label) and, when
// Global is set, a bigram feature over the previous label.
type Generator struct {
	Global bool
}

var _ sequence.FeatureGenerator = &Generator{}
var _ sequence.LocalOnly = &Generator{}

func (g *Generator) Dim() int {
	return Dim
}

func (g *Generator) Local(inst sequence.Instance, prefix sequence.Label, position int, candidate sequence.LabelUnit) *featurevector.Hashed {
	ti := inst.(*Instance)
	feats := featurevector.StringSparse{}
	feats.Inc(fmt.Sprintf("u%d=%s", ti.IDs[position], candidate))
	if g.Global {
		prev := "<s>"
		if last := prefix.Last(); last != nil {
			prev = last.String()
		}
		feats.Inc("b" + prev + ">" + candidate.String())
	}
	fv := featurevector.NewHashed(Dim)
	fv.AddStrings(feats, "toy")
	return fv
}

func (g *Generator) LocalOnly() sequence.FeatureGenerator {
	return &Generator{}
}

// Scorer scores feature vectors against a fixed weight vector
type Scorer struct {
	W *featurevector.Weight
}

func (s *Scorer) Score(fv *featurevector.Hashed, average bool) float64 {
	return fv.Dot(s.W)
}
