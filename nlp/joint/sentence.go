package joint

import (
	"sort"
)

type Token struct {
	Form string
	POS  string
}

// Relation links the entities ending at words W1 < W2
type Relation struct {
	W1, W2 int
	Label  PairLabel
}

type Sentence struct {
	Tokens    []Token
	Labels    []WordLabel
	Relations []Relation
}

// Entity spans the words Start..End inclusive
type Entity struct {
	Start, End int
	Type       string
}

func (s *Sentence) Len() int {
	return len(s.Tokens)
}

// Relation returns the label of the pair of words w1 < w2
func (s *Sentence) Relation(w1, w2 int) PairLabel {
	for _, r := range s.Relations {
		if r.W1 == w1 && r.W2 == w2 {
			return r.Label
		}
	}
	return NegativePair
}

// Entities decodes the BILOU labels. Broken sequences are read leniently:
// a continuing tag without a compatible opener starts a new entity and an
// entity closes at the last word of its type.
func (s *Sentence) Entities() []Entity {
	var (
		entities []Entity
		open     *Entity
	)
	for i, l := range s.Labels {
		if open != nil && (!l.Position.Continued() || l.Type != open.Type) {
			open.End = i - 1
			entities = append(entities, *open)
			open = nil
		}
		switch {
		case l.IsNegative():
		case l.Position == Unit:
			entities = append(entities, Entity{i, i, l.Type})
		case l.Position == Last:
			if open == nil {
				entities = append(entities, Entity{i, i, l.Type})
			} else {
				open.End = i
				entities = append(entities, *open)
				open = nil
			}
		case open == nil:
			open = &Entity{Start: i, End: i, Type: l.Type}
		}
	}
	if open != nil {
		open.End = len(s.Labels) - 1
		entities = append(entities, *open)
	}
	return entities
}

// entityEnds maps the final word of each entity to its span
func (s *Sentence) entityEnds() map[int]Entity {
	ends := make(map[int]Entity)
	for _, e := range s.Entities() {
		ends[e.End] = e
	}
	return ends
}

func (s *Sentence) sortRelations() {
	sort.Slice(s.Relations, func(i, j int) bool {
		a, b := s.Relations[i], s.Relations[j]
		if a.W2 != b.W2 {
			return a.W2 < b.W2
		}
		return a.W1 < b.W1
	})
}
