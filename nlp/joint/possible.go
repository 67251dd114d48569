package joint

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tticoin/JointER/util/conf"
)

const (
	WordKey     = "WORD"
	RelationKey = "RELATION"
	LineHeader  = "JointLabelUnit"
)

// pairKey indexes pair labels by the entity types of their words; an empty
// type matches any
func pairKey(t1, t2 string) string {
	return t1 + ":" + t2
}

// argKey indexes the word labels seen on argument arg (1 or 2) of a
// relation
func argKey(p PairLabel, arg int) string {
	return p.String() + ":" + strconv.Itoa(arg)
}

// PossibleLabels is the table of labels seen in training data, keyed by
// the context they were seen in. It is stored with the model.
type PossibleLabels struct {
	labels map[string][]LabelUnit
}

func NewPossibleLabels() *PossibleLabels {
	return &PossibleLabels{labels: make(map[string][]LabelUnit)}
}

// Add inserts u under key, keeping each list sorted and free of duplicates
func (p *PossibleLabels) Add(key string, u LabelUnit) {
	units := p.labels[key]
	i := sort.Search(len(units), func(i int) bool { return units[i].Compare(u) >= 0 })
	if i < len(units) && units[i].Equal(u) {
		return
	}
	units = append(units, nil)
	copy(units[i+1:], units[i:])
	units[i] = u
	p.labels[key] = units
}

// Get returns the labels under key. The result must not be modified.
func (p *PossibleLabels) Get(key string) []LabelUnit {
	return p.labels[key]
}

func (p *PossibleLabels) Has(key string) bool {
	_, ok := p.labels[key]
	return ok
}

func (p *PossibleLabels) Len() int {
	var n int
	for _, units := range p.labels {
		n += len(units)
	}
	return n
}

// Types returns the sorted entity types
func (p *PossibleLabels) Types() []string {
	seen := make(map[string]bool)
	var types []string
	for _, u := range p.labels[WordKey] {
		w := u.(WordLabel)
		if !w.IsNegative() && !seen[w.Type] {
			seen[w.Type] = true
			types = append(types, w.Type)
		}
	}
	sort.Strings(types)
	return types
}

// Observe adds the labels of a gold sentence: every BILOU tag of each
// entity type, the label of each pair of entities under its type keys and
// the argument tags of each relation.
func (p *PossibleLabels) Observe(s *Sentence) {
	p.Add(WordKey, OutLabel)
	p.Add(RelationKey, NegativeRelation)
	for _, l := range s.Labels {
		if l.IsNegative() {
			continue
		}
		for _, pos := range Positions {
			if pos != Out {
				p.Add(WordKey, WordLabel{pos, l.Type})
			}
		}
	}
	entities := s.Entities()
	for j, e2 := range entities {
		for _, e1 := range entities[:j] {
			label := s.Relation(e1.End, e2.End)
			for _, key := range []string{pairKey(e1.Type, e2.Type), pairKey(e1.Type, ""), pairKey("", e2.Type), pairKey("", "")} {
				p.Add(key, label)
			}
			if label.IsNegative() {
				continue
			}
			p.Add(RelationKey, RelationLabel{label.Type, label.Reverse})
			for _, pos := range []Position{Unit, Last} {
				p.Add(argKey(label, 1), WordLabel{pos, e1.Type})
				p.Add(argKey(label, 2), WordLabel{pos, e2.Type})
			}
		}
	}
}

// MarshalText writes one line per label: header, key, kind and label
func (p *PossibleLabels) MarshalText() ([]byte, error) {
	keys := make([]string, 0, len(p.labels))
	for k := range p.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for _, k := range keys {
		for _, u := range p.labels[k] {
			buf.WriteString(LineHeader + "\t" + k + "\t" + formatUnit(u) + "\n")
		}
	}
	return buf.Bytes(), nil
}

func (p *PossibleLabels) UnmarshalText(text []byte) error {
	c, err := conf.Read(bytes.NewReader(text))
	if err != nil {
		return err
	}
	return p.FromConf(c)
}

// FromConf adds the label lines of a configuration, as read from a labels
// file or the metadata block of a model
func (p *PossibleLabels) FromConf(c *conf.Conf) error {
	if p.labels == nil {
		p.labels = make(map[string][]LabelUnit)
	}
	for i, line := range c.Values {
		fields := strings.Split(line, "\t")
		if len(fields) != 4 || fields[0] != LineHeader {
			return errors.Errorf("labels line %d: malformed %q", i+1, line)
		}
		u, err := parseUnit(fields[2], fields[3])
		if err != nil {
			return errors.Wrapf(err, "labels line %d", i+1)
		}
		p.Add(fields[1], u)
	}
	return nil
}

// ReadLabelsFile loads a table written by MarshalText
func ReadLabelsFile(filename string) (*PossibleLabels, error) {
	c, err := conf.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	p := NewPossibleLabels()
	if err = p.FromConf(c); err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return p, nil
}

// String lists the number of labels under each key
func (p *PossibleLabels) String() string {
	keys := make([]string, 0, len(p.labels))
	for k := range p.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = k + "=" + strconv.Itoa(len(p.labels[k]))
	}
	return strings.Join(strs, " ")
}
