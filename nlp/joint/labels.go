// Package joint is the entity and relation extraction domain: BILOU word
// labels, directed pair labels, the close-first decision sequence over a
// sentence and the features scored by the structured learners.
package joint

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tticoin/JointER/alg/sequence"
)

// Negative is the type of words outside any entity and of unrelated pairs
const Negative = "NEGATIVE"

const (
	pairSuffix    = "|"
	reverseSuffix = "-rev"
	reverseMarker = "$reverse"
)

// LabelUnit is one of WordLabel, PairLabel or RelationLabel
type LabelUnit interface {
	sequence.LabelUnit
	kind() int
}

const (
	wordKind = iota
	pairKind
	relationKind
)

var kindNames = []string{"W", "P", "R"}

// Position is the BILOU tag of a word label
type Position byte

const (
	Begin  Position = 'B'
	Inside Position = 'I'
	Last   Position = 'L'
	Out    Position = 'O'
	Unit   Position = 'U'
)

var Positions = []Position{Begin, Inside, Last, Out, Unit}

// Continues reports whether a word with this tag is followed by more words
// of its entity
func (p Position) Continues() bool {
	return p == Begin || p == Inside
}

// Continued reports whether a word with this tag follows an earlier word of
// its entity
func (p Position) Continued() bool {
	return p == Inside || p == Last
}

// Final reports whether a word with this tag ends an entity
func (p Position) Final() bool {
	return p == Last || p == Unit
}

// WordLabel tags a word with its BILOU position inside an entity of Type
type WordLabel struct {
	Position Position
	Type     string
}

var OutLabel = WordLabel{Out, Negative}

// ParseWordLabel reads "O" or "<B|I|L|U>-<type>"
func ParseWordLabel(s string) (WordLabel, error) {
	if s == "O" || s == "O-"+Negative {
		return OutLabel, nil
	}
	if len(s) < 3 || s[1] != '-' {
		return WordLabel{}, errors.Errorf("malformed word label %q", s)
	}
	p := Position(s[0])
	switch p {
	case Begin, Inside, Last, Unit:
	default:
		return WordLabel{}, errors.Errorf("unknown BILOU position in %q", s)
	}
	return WordLabel{p, s[2:]}, nil
}

func (WordLabel) kind() int { return wordKind }

func (w WordLabel) IsNegative() bool {
	return w.Type == Negative
}

func (w WordLabel) Equal(other sequence.LabelUnit) bool {
	o, ok := other.(WordLabel)
	if !ok {
		return false
	}
	if w.IsNegative() && o.IsNegative() {
		return true
	}
	return o == w
}

func (w WordLabel) Compare(other sequence.LabelUnit) int {
	o, ok := other.(WordLabel)
	if !ok {
		return compareKinds(w, other)
	}
	if w.Equal(o) {
		return 0
	}
	if w.Position != o.Position {
		if w.Position < o.Position {
			return -1
		}
		return 1
	}
	return strings.Compare(w.Type, o.Type)
}

func (w WordLabel) String() string {
	if w.IsNegative() {
		return "O"
	}
	return string(w.Position) + "-" + w.Type
}

// PairLabel is the relation between two entity-final words, read from the
// earlier word to the later one unless Reverse is set
type PairLabel struct {
	Type    string
	Reverse bool
}

var NegativePair = PairLabel{Type: Negative}

// ParsePairLabel reads "<type>[-rev]|" or "NEGATIVE|"
func ParsePairLabel(s string) (PairLabel, error) {
	if !strings.HasSuffix(s, pairSuffix) || len(s) == len(pairSuffix) {
		return PairLabel{}, errors.Errorf("malformed pair label %q", s)
	}
	return pairFromRelation(strings.TrimSuffix(s, pairSuffix)), nil
}

func pairFromRelation(rel string) PairLabel {
	if rel == Negative {
		return NegativePair
	}
	if strings.HasSuffix(rel, reverseSuffix) {
		return PairLabel{strings.TrimSuffix(rel, reverseSuffix), true}
	}
	return PairLabel{Type: rel}
}

func (PairLabel) kind() int { return pairKind }

func (p PairLabel) IsNegative() bool {
	return p.Type == Negative
}

// Relation is the corpus spelling of the label, "type" or "type-rev"
func (p PairLabel) Relation() string {
	if p.Reverse && !p.IsNegative() {
		return p.Type + reverseSuffix
	}
	return p.Type
}

func (p PairLabel) Equal(other sequence.LabelUnit) bool {
	o, ok := other.(PairLabel)
	return ok && o.Relation() == p.Relation()
}

func (p PairLabel) Compare(other sequence.LabelUnit) int {
	if _, ok := other.(PairLabel); !ok {
		return compareKinds(p, other)
	}
	return strings.Compare(p.String(), other.String())
}

func (p PairLabel) String() string {
	return p.Relation() + pairSuffix
}

// RelationLabel labels a given entity pair of a relation-only instance
type RelationLabel struct {
	Type    string
	Reverse bool
}

var NegativeRelation = RelationLabel{Type: Negative}

// ParseRelationLabel reads "<type>[$reverse]"
func ParseRelationLabel(s string) (RelationLabel, error) {
	if s == "" || s == reverseMarker {
		return RelationLabel{}, errors.Errorf("malformed relation label %q", s)
	}
	if strings.HasSuffix(s, reverseMarker) {
		return RelationLabel{strings.TrimSuffix(s, reverseMarker), true}, nil
	}
	return RelationLabel{Type: s}, nil
}

func (RelationLabel) kind() int { return relationKind }

func (r RelationLabel) IsNegative() bool {
	return r.Type == Negative
}

func (r RelationLabel) Equal(other sequence.LabelUnit) bool {
	o, ok := other.(RelationLabel)
	if !ok {
		return false
	}
	if r.IsNegative() && o.IsNegative() {
		return true
	}
	return o == r
}

func (r RelationLabel) Compare(other sequence.LabelUnit) int {
	if _, ok := other.(RelationLabel); !ok {
		return compareKinds(r, other)
	}
	return strings.Compare(r.String(), other.String())
}

func (r RelationLabel) String() string {
	if r.Reverse && !r.IsNegative() {
		return r.Type + reverseMarker
	}
	return r.Type
}

// Pair is the pair label carrying the same relation
func (r RelationLabel) Pair() PairLabel {
	if r.IsNegative() {
		return NegativePair
	}
	return PairLabel{r.Type, r.Reverse}
}

func compareKinds(u LabelUnit, other sequence.LabelUnit) int {
	o, ok := other.(LabelUnit)
	if !ok {
		panic(fmt.Sprintf("comparing joint label %v with %T", u, other))
	}
	if u.kind() < o.kind() {
		return -1
	}
	return 1
}

// formatUnit and parseUnit give the kind-tagged spelling used by the
// possible-labels table
func formatUnit(u LabelUnit) string {
	return kindNames[u.kind()] + "\t" + u.String()
}

func parseUnit(kind, value string) (LabelUnit, error) {
	switch kind {
	case kindNames[wordKind]:
		return ParseWordLabel(value)
	case kindNames[pairKind]:
		return ParsePairLabel(value)
	case kindNames[relationKind]:
		return ParseRelationLabel(value)
	default:
		return nil, errors.Errorf("unknown label kind %q", kind)
	}
}
