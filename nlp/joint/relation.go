package joint

import (
	"fmt"

	"github.com/tticoin/JointER/alg/sequence"
)

// EntityPair is a decision over the entities E1 before E2
type EntityPair struct {
	E1, E2 Entity
}

// RelationInstance labels the pairs of the given entities of a sentence,
// close-first like Instance
type RelationInstance struct {
	idx      int
	sentence *Sentence
	pairs    []EntityPair
	gold     []sequence.LabelUnit
	table    *PossibleLabels
}

var _ sequence.Instance = &RelationInstance{}

// NewRelationInstance reads the entities from the sentence labels
func NewRelationInstance(idx int, s *Sentence, table *PossibleLabels) *RelationInstance {
	inst := &RelationInstance{idx: idx, sentence: s, table: table}
	entities := s.Entities()
	for j, e2 := range entities {
		for i := j - 1; i >= 0; i-- {
			e1 := entities[i]
			p := s.Relation(e1.End, e2.End)
			inst.pairs = append(inst.pairs, EntityPair{e1, e2})
			inst.gold = append(inst.gold, RelationLabel{p.Type, p.Reverse})
		}
	}
	return inst
}

func (in *RelationInstance) Index() int {
	return in.idx
}

func (in *RelationInstance) Size() int {
	return len(in.pairs)
}

func (in *RelationInstance) Gold() sequence.Label {
	return sequence.NewLabel(in.gold...)
}

func (in *RelationInstance) Sentence() *Sentence {
	return in.sentence
}

func (in *RelationInstance) Pair(position int) EntityPair {
	return in.pairs[position]
}

func (in *RelationInstance) Candidates(prefix sequence.Label, position int) []sequence.LabelUnit {
	units := in.table.Get(RelationKey)
	if len(units) == 0 {
		return []sequence.LabelUnit{NegativeRelation}
	}
	cands := make([]sequence.LabelUnit, len(units))
	for i, u := range units {
		cands[i] = u
	}
	return cands
}

func (in *RelationInstance) Clone() sequence.Instance {
	return &RelationInstance{
		idx:      in.idx,
		sentence: in.sentence,
		pairs:    append([]EntityPair(nil), in.pairs...),
		gold:     append([]sequence.LabelUnit(nil), in.gold...),
		table:    in.table,
	}
}

// Decode keeps the entities of the sentence and replaces its relations
func (in *RelationInstance) Decode(label sequence.Label) *Sentence {
	out := &Sentence{Tokens: in.sentence.Tokens, Labels: in.sentence.Labels}
	for p, pair := range in.pairs {
		r, ok := label.At(p).(RelationLabel)
		if !ok {
			panic(fmt.Sprintf("unexpected label %v for entity pair %d", label.At(p), p))
		}
		if !r.IsNegative() {
			out.Relations = append(out.Relations, Relation{pair.E1.End, pair.E2.End, r.Pair()})
		}
	}
	out.sortRelations()
	return out
}
