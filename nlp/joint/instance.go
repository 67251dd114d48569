package joint

import (
	"fmt"
	"sort"

	"github.com/tticoin/JointER/alg/sequence"
)

// Slot is a decision over a word (W1 == W2) or a pair of words W1 < W2
type Slot struct {
	W1, W2 int
}

func (s Slot) IsWord() bool {
	return s.W1 == s.W2
}

func (s Slot) Distance() int {
	return s.W2 - s.W1
}

func (s Slot) String() string {
	if s.IsWord() {
		return fmt.Sprintf("w%d", s.W1)
	}
	return fmt.Sprintf("p%d,%d", s.W1, s.W2)
}

// Instance labels every word of a sentence and every pair of its words.
// The static order is close-first: word j, then the pairs (i, j) for i
// from j-1 down to 0.
type Instance struct {
	idx      int
	sentence *Sentence
	slots    []Slot
	gold     []sequence.LabelUnit
	// at maps W1*n+W2 to the position of the slot
	at    []int
	table *PossibleLabels
}

var (
	_ sequence.Instance  = &Instance{}
	_ sequence.Reorderer = &Instance{}
)

func NewInstance(idx int, s *Sentence, table *PossibleLabels) *Instance {
	n := s.Len()
	inst := &Instance{
		idx:      idx,
		sentence: s,
		slots:    make([]Slot, 0, n*(n+1)/2),
		gold:     make([]sequence.LabelUnit, 0, n*(n+1)/2),
		at:       make([]int, n*n),
		table:    table,
	}
	for j := 0; j < n; j++ {
		inst.push(Slot{j, j}, s.Labels[j])
		for i := j - 1; i >= 0; i-- {
			inst.push(Slot{i, j}, s.Relation(i, j))
		}
	}
	return inst
}

func (in *Instance) push(slot Slot, gold sequence.LabelUnit) {
	in.at[slot.W1*in.sentence.Len()+slot.W2] = len(in.slots)
	in.slots = append(in.slots, slot)
	in.gold = append(in.gold, gold)
}

func (in *Instance) Index() int {
	return in.idx
}

func (in *Instance) Size() int {
	return len(in.slots)
}

func (in *Instance) Gold() sequence.Label {
	return sequence.NewLabel(in.gold...)
}

func (in *Instance) Sentence() *Sentence {
	return in.sentence
}

// Slot returns the decision made at position
func (in *Instance) Slot(position int) Slot {
	return in.slots[position]
}

func (in *Instance) Clone() sequence.Instance {
	return &Instance{
		idx:      in.idx,
		sentence: in.sentence,
		slots:    append([]Slot(nil), in.slots...),
		gold:     append([]sequence.LabelUnit(nil), in.gold...),
		at:       append([]int(nil), in.at...),
		table:    in.table,
	}
}

// label returns the unit chosen for the slot of w1, w2 when its position
// lies within prefix
func (in *Instance) label(prefix sequence.Label, w1, w2 int) (sequence.LabelUnit, bool) {
	n := in.sentence.Len()
	if w1 < 0 || w2 >= n {
		return nil, false
	}
	if w1 > w2 {
		w1, w2 = w2, w1
	}
	p := in.at[w1*n+w2]
	if p >= prefix.Len() {
		return nil, false
	}
	return prefix.At(p), true
}

func (in *Instance) word(prefix sequence.Label, w int) (WordLabel, bool) {
	u, ok := in.label(prefix, w, w)
	if !ok {
		return WordLabel{}, false
	}
	return u.(WordLabel), true
}

func (in *Instance) pair(prefix sequence.Label, w1, w2 int) (PairLabel, bool) {
	u, ok := in.label(prefix, w1, w2)
	if !ok {
		return PairLabel{}, false
	}
	return u.(PairLabel), true
}

func (in *Instance) Candidates(prefix sequence.Label, position int) []sequence.LabelUnit {
	slot := in.slots[position]
	if slot.IsWord() {
		return in.wordCandidates(prefix, slot.W1)
	}
	return in.pairCandidates(prefix, slot.W1, slot.W2)
}

// wordCandidates keeps BILOU continuity with the labeled neighbours and
// restricts arguments of decided relations to the tags seen on them
func (in *Instance) wordCandidates(prefix sequence.Label, w int) []sequence.LabelUnit {
	n := in.sentence.Len()
	var allowed map[WordLabel]bool
	for k := 0; k < n; k++ {
		if k == w {
			continue
		}
		p, ok := in.pair(prefix, w, k)
		if !ok || p.IsNegative() {
			continue
		}
		arg := 1
		if w > k {
			arg = 2
		}
		set := make(map[WordLabel]bool)
		for _, u := range in.table.Get(argKey(p, arg)) {
			if allowed == nil || allowed[u.(WordLabel)] {
				set[u.(WordLabel)] = true
			}
		}
		allowed = set
	}
	prev, hasPrev := in.word(prefix, w-1)
	next, hasNext := in.word(prefix, w+1)
	keep := func(c WordLabel) bool {
		pos := c.Position
		switch {
		case allowed != nil && !allowed[c]:
			return false
		case w == 0 && pos.Continued(), w == n-1 && pos.Continues():
			return false
		case hasPrev && prev.Position.Continues() != (pos.Continued() && c.Type == prev.Type):
			return false
		case hasPrev && !prev.Position.Continues() && pos.Continued():
			return false
		case hasNext && next.Position.Continued() != (pos.Continues() && c.Type == next.Type):
			return false
		case hasNext && !next.Position.Continued() && pos.Continues():
			return false
		}
		return true
	}
	var cands []sequence.LabelUnit
	for _, u := range in.table.Get(WordKey) {
		if keep(u.(WordLabel)) {
			cands = append(cands, u)
		}
	}
	if len(cands) == 0 {
		return []sequence.LabelUnit{OutLabel}
	}
	return cands
}

// argType reports the entity type of word w as far as prefix decides it,
// and whether w cannot end an entity
func (in *Instance) argType(prefix sequence.Label, w int) (string, bool) {
	if next, ok := in.word(prefix, w+1); ok && next.Position.Continued() {
		return "", true
	}
	if l, ok := in.word(prefix, w); ok {
		if !l.Position.Final() {
			return "", true
		}
		return l.Type, false
	}
	if prev, ok := in.word(prefix, w-1); ok && prev.Position.Continues() {
		return prev.Type, false
	}
	return "", false
}

// pairCandidates offers the labels seen between the types of the two
// words; pairs not linking two entity-final words are negative
func (in *Instance) pairCandidates(prefix sequence.Label, w1, w2 int) []sequence.LabelUnit {
	negative := []sequence.LabelUnit{NegativePair}
	t1, neg1 := in.argType(prefix, w1)
	t2, neg2 := in.argType(prefix, w2)
	if neg1 || neg2 {
		return negative
	}
	seen := in.table.Get(pairKey(t1, t2))
	if len(seen) == 0 {
		return negative
	}
	cands := make([]sequence.LabelUnit, 0, len(seen)+1)
	hasNegative := false
	for _, u := range seen {
		hasNegative = hasNegative || u.IsNegative()
		cands = append(cands, u)
	}
	if !hasNegative {
		cands = append(negative, cands...)
	}
	return cands
}

// slotIndex orders slots of equal score and distance: words by position,
// pairs after every word
func (in *Instance) slotIndex(s Slot) int {
	if s.IsWord() {
		return s.W1
	}
	return (s.W1+1)*in.sentence.Len() + s.W2 + 1
}

// Reorder moves a forced slot (a single candidate) to position or, when
// there is none, sorts the undecided slots by best local score, then by
// distance and index.
func (in *Instance) Reorder(g sequence.FeatureGenerator, s sequence.Scorer, prefix sequence.Label, position int, average bool) {
	for j := position; j < len(in.slots); j++ {
		if len(in.Candidates(prefix, j)) == 1 {
			if j != position {
				order := make([]int, 0, len(in.slots)-position)
				order = append(order, j)
				for k := position; k < len(in.slots); k++ {
					if k != j {
						order = append(order, k)
					}
				}
				in.arrange(order, position)
			}
			return
		}
	}
	type scored struct {
		position int
		best     float64
	}
	rest := make([]scored, 0, len(in.slots)-position)
	for j := position; j < len(in.slots); j++ {
		cur := scored{position: j}
		for k, c := range in.Candidates(prefix, j) {
			score := s.Score(g.Local(in, prefix, j, c), average)
			if k == 0 || score > cur.best {
				cur.best = score
			}
		}
		rest = append(rest, cur)
	}
	sort.Slice(rest, func(a, b int) bool {
		sa, sb := in.slots[rest[a].position], in.slots[rest[b].position]
		switch {
		case rest[a].best != rest[b].best:
			return rest[a].best > rest[b].best
		case sa.Distance() != sb.Distance():
			return sa.Distance() < sb.Distance()
		}
		return in.slotIndex(sa) < in.slotIndex(sb)
	})
	order := make([]int, len(rest))
	for i, r := range rest {
		order[i] = r.position
	}
	in.arrange(order, position)
}

// arrange places the slots at the given positions from position onward
func (in *Instance) arrange(order []int, position int) {
	slots := make([]Slot, len(order))
	gold := make([]sequence.LabelUnit, len(order))
	for i, p := range order {
		slots[i], gold[i] = in.slots[p], in.gold[p]
	}
	n := in.sentence.Len()
	for i := range order {
		in.slots[position+i] = slots[i]
		in.gold[position+i] = gold[i]
		in.at[slots[i].W1*n+slots[i].W2] = position + i
	}
}

// Decode builds the sentence a full label describes
func (in *Instance) Decode(label sequence.Label) *Sentence {
	if label.Len() != len(in.slots) {
		panic(fmt.Sprintf("decoding a label of %d units over %d slots", label.Len(), len(in.slots)))
	}
	out := &Sentence{
		Tokens: in.sentence.Tokens,
		Labels: make([]WordLabel, in.sentence.Len()),
	}
	for p, slot := range in.slots {
		switch u := label.At(p).(type) {
		case WordLabel:
			out.Labels[slot.W1] = u
		case PairLabel:
			if !u.IsNegative() {
				out.Relations = append(out.Relations, Relation{slot.W1, slot.W2, u})
			}
		default:
			panic(fmt.Sprintf("unexpected label %v at slot %v", u, slot))
		}
	}
	out.sortRelations()
	return out
}
