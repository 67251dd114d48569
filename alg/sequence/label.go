package sequence

import (
	"strings"
)

// LabelUnit is the label chosen at one position. Implementations are
// immutable values with a total order.
type LabelUnit interface {
	Equal(other LabelUnit) bool
	Compare(other LabelUnit) int
	IsNegative() bool
	String() string
}

// Label is an immutable sequence of label units. Extend never writes into
// a backing array another Label can see, so prefixes may be shared freely
// between sibling search states.
type Label struct {
	units []LabelUnit
}

func NewLabel(units ...LabelUnit) Label {
	copied := make([]LabelUnit, len(units))
	copy(copied, units)
	return Label{copied}
}

func (l Label) Len() int {
	return len(l.units)
}

func (l Label) At(i int) LabelUnit {
	return l.units[i]
}

func (l Label) Last() LabelUnit {
	if len(l.units) == 0 {
		return nil
	}
	return l.units[len(l.units)-1]
}

func (l Label) Extend(u LabelUnit) Label {
	units := make([]LabelUnit, len(l.units)+1)
	copy(units, l.units)
	units[len(l.units)] = u
	return Label{units}
}

// Prefix returns the first n units
func (l Label) Prefix(n int) Label {
	return Label{l.units[:n:n]}
}

// Units returns a copy of the units
func (l Label) Units() []LabelUnit {
	copied := make([]LabelUnit, len(l.units))
	copy(copied, l.units)
	return copied
}

func (l Label) Equal(other Label) bool {
	if len(l.units) != len(other.units) {
		return false
	}
	for i, u := range l.units {
		if !u.Equal(other.units[i]) {
			return false
		}
	}
	return true
}

// Compare orders labels unit by unit, a proper prefix first
func (l Label) Compare(other Label) int {
	for i := 0; i < len(l.units) && i < len(other.units); i++ {
		if c := l.units[i].Compare(other.units[i]); c != 0 {
			return c
		}
	}
	return len(l.units) - len(other.units)
}

func (l Label) String() string {
	strs := make([]string, len(l.units))
	for i, u := range l.units {
		strs[i] = u.String()
	}
	return strings.Join(strs, " ")
}
