package joint

import (
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
)

// ObserveAll builds the possible-labels table of a training corpus
func ObserveAll(sents []*Sentence) *PossibleLabels {
	table := NewPossibleLabels()
	for _, s := range sents {
		table.Observe(s)
	}
	return table
}

// NewData wraps sentences as joint instances, or as relation-only
// instances over their gold entities
func NewData(sents []*Sentence, table *PossibleLabels, relationOnly bool) *sequence.Data {
	instances := make([]sequence.Instance, len(sents))
	for i, s := range sents {
		if relationOnly {
			instances[i] = NewRelationInstance(i, s, table)
		} else {
			instances[i] = NewInstance(i, s, table)
		}
	}
	return sequence.NewData(instances)
}

// Decode returns the predicted sentence of each state, falling back to
// the input sentence where search produced nothing
func Decode(data *sequence.Data, predicted []*search.State) []*Sentence {
	out := make([]*Sentence, len(predicted))
	for i, s := range predicted {
		if s == nil {
			d := data.Instances[i].(Decoder)
			out[i] = &Sentence{Tokens: d.Sentence().Tokens, Labels: make([]WordLabel, d.Sentence().Len())}
			for j := range out[i].Labels {
				out[i].Labels[j] = OutLabel
			}
			continue
		}
		out[i] = s.Instance().(Decoder).Decode(s.Label())
	}
	return out
}
