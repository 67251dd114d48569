package joint

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tticoin/JointER/alg/featurevector"
	"github.com/tticoin/JointER/alg/sequence"
	"github.com/tticoin/JointER/util"
)

const (
	GlobalHeader = "GLOBAL"
	pathSuffix   = "PATH"
	maxBetween   = 6
)

// Synonyms looks up the lexicon entries of a word
type Synonyms interface {
	Synonyms(word string) ([]string, error)
}

// Generator hashes the features of word, pair and relation decisions.
// Local features are placed under the header of the candidate label;
// features depending on earlier decisions are placed under GLOBAL and
// scaled by GlobalWeight.
type Generator struct {
	dim          int
	global       bool
	GlobalWeight float64
	lexicon      Synonyms
	synonyms     *sync.Map
}

var (
	_ sequence.FeatureGenerator = &Generator{}
	_ sequence.LocalOnly        = &Generator{}
)

// NewGenerator builds a generator over a feature space of dim coordinates;
// lex may be nil
func NewGenerator(dim int, global bool, lex Synonyms) *Generator {
	if !featurevector.IsPowerOfTwo(dim) {
		panic(fmt.Sprintf("feature space size %d is not a power of two", dim))
	}
	return &Generator{dim: dim, global: global, GlobalWeight: 1, lexicon: lex, synonyms: &sync.Map{}}
}

func (g *Generator) Dim() int {
	return g.dim
}

func (g *Generator) LocalOnly() sequence.FeatureGenerator {
	local := *g
	local.global = false
	return &local
}

func (g *Generator) Local(inst sequence.Instance, prefix sequence.Label, position int, candidate sequence.LabelUnit) *featurevector.Hashed {
	fv := featurevector.NewHashed(g.dim)
	switch in := inst.(type) {
	case *Instance:
		slot := in.slots[position]
		if slot.IsWord() {
			fv.AddStrings(g.wordFeatures(in.sentence, slot.W1), candidate.String())
			if g.global {
				g.addGlobal(fv, g.wordGlobal(in, prefix, slot.W1, candidate))
			}
		} else {
			fv.AddStrings(g.pathFeatures(in.sentence, slot.W1, slot.W2), candidate.String()+pathSuffix)
			if g.global {
				g.addGlobal(fv, g.pairGlobal(in, prefix, slot, candidate))
			}
		}
	case *RelationInstance:
		pair := in.pairs[position]
		feats := g.pathFeatures(in.sentence, pair.E1.End, pair.E2.End)
		feats.Inc("T=" + pair.E1.Type + ":" + pair.E2.Type)
		feats.Inc("S1=" + spanText(in.sentence, pair.E1))
		feats.Inc("S2=" + spanText(in.sentence, pair.E2))
		fv.AddStrings(feats, candidate.String()+pathSuffix)
	default:
		panic(fmt.Sprintf("joint features for unknown instance %T", inst))
	}
	return fv
}

func (g *Generator) addGlobal(fv *featurevector.Hashed, feats featurevector.StringSparse) {
	if len(feats) == 0 {
		return
	}
	gv := featurevector.NewHashed(g.dim)
	gv.AddStrings(feats, GlobalHeader)
	gv.Normalize(1)
	fv.Add(g.GlobalWeight, gv)
}

func form(s *Sentence, i int) string {
	switch {
	case i < 0:
		return "<S>"
	case i >= s.Len():
		return "</S>"
	}
	return strings.ToLower(s.Tokens[i].Form)
}

func pos(s *Sentence, i int) string {
	switch {
	case i < 0:
		return "<S>"
	case i >= s.Len():
		return "</S>"
	}
	return s.Tokens[i].POS
}

func shape(word string) string {
	var b strings.Builder
	var last rune
	for _, r := range word {
		c := 'c'
		switch {
		case unicode.IsUpper(r):
			c = 'A'
		case unicode.IsLower(r):
			c = 'a'
		case unicode.IsDigit(r):
			c = '0'
		}
		if c != last {
			b.WriteRune(c)
			last = c
		}
	}
	return b.String()
}

func affixes(feats featurevector.StringSparse, name, word string) {
	runes := []rune(word)
	for n := 1; n <= 3 && n <= len(runes); n++ {
		feats.Inc(name + "P" + strconv.Itoa(n) + "=" + string(runes[:n]))
		feats.Inc(name + "S" + strconv.Itoa(n) + "=" + string(runes[len(runes)-n:]))
	}
}

func spanText(s *Sentence, e Entity) string {
	words := make([]string, 0, e.End-e.Start+1)
	for i := e.Start; i <= e.End; i++ {
		words = append(words, form(s, i))
	}
	return strings.Join(words, "_")
}

func (g *Generator) lookup(word string) []string {
	if g.lexicon == nil {
		return nil
	}
	if syns, ok := g.synonyms.Load(word); ok {
		return syns.([]string)
	}
	syns, err := g.lexicon.Synonyms(word)
	if err != nil {
		log.Println("Lexicon lookup of", word, "failed:", err)
		syns = nil
	}
	g.synonyms.Store(word, syns)
	return syns
}

func (g *Generator) wordFeatures(s *Sentence, w int) featurevector.StringSparse {
	feats := featurevector.StringSparse{}
	raw := s.Tokens[w].Form
	feats.Inc("BIAS")
	feats.Inc("W=" + form(s, w))
	feats.Inc("P=" + pos(s, w))
	feats.Inc("SH=" + shape(raw))
	affixes(feats, "W", form(s, w))
	for d := -2; d <= 2; d++ {
		if d == 0 {
			continue
		}
		feats.Inc("W" + strconv.Itoa(d) + "=" + form(s, w+d))
		feats.Inc("P" + strconv.Itoa(d) + "=" + pos(s, w+d))
	}
	feats.Inc("WW-1=" + form(s, w-1) + "_" + form(s, w))
	feats.Inc("WW+1=" + form(s, w) + "_" + form(s, w+1))
	feats.Inc("PP-1=" + pos(s, w-1) + "_" + pos(s, w))
	feats.Inc("PP+1=" + pos(s, w) + "_" + pos(s, w+1))
	for _, syn := range g.lookup(form(s, w)) {
		feats.Inc("SYN=" + syn)
	}
	return feats
}

// pathFeatures describe the words between and around w1 < w2
func (g *Generator) pathFeatures(s *Sentence, w1, w2 int) featurevector.StringSparse {
	feats := featurevector.StringSparse{}
	dist := w2 - w1
	feats.Inc("BIAS")
	feats.Inc("D=" + strconv.Itoa(util.Min(dist, 10)))
	feats.Inc("W1=" + form(s, w1))
	feats.Inc("W2=" + form(s, w2))
	feats.Inc("P1=" + pos(s, w1))
	feats.Inc("P2=" + pos(s, w2))
	feats.Inc("WW=" + form(s, w1) + "_" + form(s, w2))
	feats.Inc("PP=" + pos(s, w1) + "_" + pos(s, w2))
	feats.Inc("W1-1=" + form(s, w1-1))
	feats.Inc("W2+1=" + form(s, w2+1))
	if dist == 1 {
		feats.Inc("ADJ")
	}
	between := make([]string, 0, maxBetween)
	for i := w1 + 1; i < w2; i++ {
		feats.Inc("BW=" + form(s, i))
		feats.Inc("BP=" + pos(s, i))
		if len(between) < maxBetween {
			between = append(between, pos(s, i))
		}
	}
	if dist <= maxBetween {
		feats.Inc("BPS=" + strings.Join(between, "_"))
	}
	for _, syn := range g.lookup(form(s, w1)) {
		feats.Inc("SYN1=" + syn)
	}
	for _, syn := range g.lookup(form(s, w2)) {
		feats.Inc("SYN2=" + syn)
	}
	return feats
}

// wordGlobal relates the candidate to the labels of the neighbouring words
// and of the relations already decided on w
func (g *Generator) wordGlobal(in *Instance, prefix sequence.Label, w int, candidate sequence.LabelUnit) featurevector.StringSparse {
	feats := featurevector.StringSparse{}
	c := candidate.String()
	if prev, ok := in.word(prefix, w-1); ok {
		feats.Inc("BI=" + prev.String() + ">" + c)
		if pprev, ok := in.word(prefix, w-2); ok {
			feats.Inc("TRI=" + pprev.String() + ">" + prev.String() + ">" + c)
		}
	}
	if next, ok := in.word(prefix, w+1); ok {
		feats.Inc("BI+=" + c + ">" + next.String())
	}
	for k := 0; k < in.sentence.Len(); k++ {
		if k == w {
			continue
		}
		if p, ok := in.pair(prefix, w, k); ok && !p.IsNegative() {
			arg := "1"
			if w > k {
				arg = "2"
			}
			feats.Inc("ARG" + arg + "=" + p.String() + ">" + c)
		}
	}
	return feats
}

// pairGlobal relates the candidate to the decided labels of its words and
// to the relations already decided on them
func (g *Generator) pairGlobal(in *Instance, prefix sequence.Label, slot Slot, candidate sequence.LabelUnit) featurevector.StringSparse {
	feats := featurevector.StringSparse{}
	c := candidate.String()
	l1, ok1 := in.word(prefix, slot.W1)
	l2, ok2 := in.word(prefix, slot.W2)
	if ok1 && ok2 {
		feats.Inc("TT=" + l1.Type + ":" + l2.Type + ">" + c)
	} else if ok1 {
		feats.Inc("T1=" + l1.Type + ">" + c)
	} else if ok2 {
		feats.Inc("T2=" + l2.Type + ">" + c)
	}
	if candidate.IsNegative() {
		return feats
	}
	for k := 0; k < in.sentence.Len(); k++ {
		for i, w := range []int{slot.W1, slot.W2} {
			if k == w || k == slot.W1 || k == slot.W2 {
				continue
			}
			if p, ok := in.pair(prefix, w, k); ok && !p.IsNegative() {
				feats.Inc("SHARE" + strconv.Itoa(i+1) + "=" + p.String() + ">" + c)
			}
		}
	}
	return feats
}
