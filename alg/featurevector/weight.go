package featurevector

import (
	"bufio"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Weight is a dense vector over the hashed feature space
type Weight struct {
	Values []float64
}

func NewWeight(dim int) *Weight {
	return &Weight{make([]float64, dim)}
}

func (w *Weight) Dim() int {
	return len(w.Values)
}

func (w *Weight) Copy() *Weight {
	retval := NewWeight(len(w.Values))
	copy(retval.Values, w.Values)
	return retval
}

// Set overwrites w with the values of other
func (w *Weight) Set(other *Weight) {
	copy(w.Values, other.Values)
}

func (w *Weight) Add(scale float64, other *Weight) {
	for i, val := range other.Values {
		w.Values[i] += scale * val
	}
}

func (w *Weight) Scale(f float64) {
	for i := range w.Values {
		w.Values[i] *= f
	}
}

func (w *Weight) Fill(val float64) {
	for i := range w.Values {
		w.Values[i] = val
	}
}

func (w *Weight) Clear() {
	clear(w.Values)
}

// Write writes w as one line: its length followed by index:value pairs of
// the non-zero entries.
func (w *Weight) Write(writer *bufio.Writer) error {
	writer.WriteString(strconv.Itoa(len(w.Values)))
	for i, val := range w.Values {
		if math.Abs(val) <= math.SmallestNonzeroFloat64 {
			continue
		}
		writer.WriteByte(' ')
		writer.WriteString(strconv.Itoa(i))
		writer.WriteByte(':')
		writer.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	}
	_, err := writer.WriteString("\n")
	return err
}

// Parse reads a line produced by Write into w, which must have the same
// length.
func (w *Weight) Parse(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty weight vector line")
	}
	dim, err := strconv.Atoi(fields[0])
	if err != nil {
		return errors.Wrap(err, "weight vector length")
	}
	if dim != len(w.Values) {
		return errors.Errorf("weight vector length %d does not match feature space %d", dim, len(w.Values))
	}
	w.Clear()
	for _, field := range fields[1:] {
		sep := strings.IndexByte(field, ':')
		if sep < 0 {
			return errors.Errorf("malformed weight entry %q", field)
		}
		idx, err := strconv.Atoi(field[:sep])
		if err != nil {
			return errors.Wrapf(err, "weight entry %q", field)
		}
		if idx < 0 || idx >= dim {
			return errors.Errorf("weight index %d out of range", idx)
		}
		val, err := strconv.ParseFloat(field[sep+1:], 64)
		if err != nil {
			return errors.Wrapf(err, "weight entry %q", field)
		}
		w.Values[idx] = val
	}
	return nil
}
