package joint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	FIELD_SEPARATOR = "\t"
	NUM_FIELDS      = 4
	RELATION_MARKER = "R"
)

func parseIndex(value string) (int, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing index %q", value)
	}
	return i, nil
}

func parseToken(s *Sentence, fields []string) error {
	index, err := parseIndex(fields[0])
	if err != nil {
		return err
	}
	if index != s.Len() {
		return errors.Errorf("token index %d out of order (expected %d)", index, s.Len())
	}
	if fields[1] == "" {
		return errors.New("empty FORM field")
	}
	label, err := ParseWordLabel(fields[3])
	if err != nil {
		return err
	}
	s.Tokens = append(s.Tokens, Token{Form: fields[1], POS: fields[2]})
	s.Labels = append(s.Labels, label)
	return nil
}

func parseRelation(s *Sentence, fields []string) error {
	w1, err := parseIndex(fields[1])
	if err != nil {
		return err
	}
	w2, err := parseIndex(fields[2])
	if err != nil {
		return err
	}
	if w1 < 0 || w1 >= w2 || w2 >= s.Len() {
		return errors.Errorf("relation indices %d, %d outside the sentence or not ordered", w1, w2)
	}
	label := pairFromRelation(fields[3])
	if label.IsNegative() {
		return errors.Errorf("relation %d, %d has the null type", w1, w2)
	}
	if !s.Labels[w1].Position.Final() || !s.Labels[w2].Position.Final() {
		return errors.Errorf("relation %d, %d does not link entity-final words", w1, w2)
	}
	if !s.Relation(w1, w2).IsNegative() {
		return errors.Errorf("duplicate relation %d, %d", w1, w2)
	}
	s.Relations = append(s.Relations, Relation{w1, w2, label})
	return nil
}

// Read parses blank-line separated sentences of token lines
// index, form, POS, BILOU label, followed by relation lines R, i, j, type
func Read(reader io.Reader) ([]*Sentence, error) {
	var (
		sentences []*Sentence
		current   = &Sentence{}
		lineNum   int
	)
	flush := func() {
		if current.Len() > 0 {
			current.sortRelations()
			sentences = append(sentences, current)
		}
		current = &Sentence{}
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		fields := strings.Split(line, FIELD_SEPARATOR)
		if len(fields) != NUM_FIELDS {
			return nil, errors.Errorf("line %d: expected %d fields, found %d", lineNum, NUM_FIELDS, len(fields))
		}
		var err error
		if fields[0] == RELATION_MARKER {
			err = parseRelation(current, fields)
		} else {
			err = parseToken(current, fields)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading corpus")
	}
	flush()
	return sentences, nil
}

func ReadFile(filename string) ([]*Sentence, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening corpus")
	}
	defer file.Close()
	sents, err := Read(file)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return sents, nil
}

func Write(writer io.Writer, sents []*Sentence) error {
	w := bufio.NewWriter(writer)
	for _, sent := range sents {
		for i, tok := range sent.Tokens {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, tok.Form, tok.POS, sent.Labels[i])
		}
		for _, r := range sent.Relations {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", RELATION_MARKER, r.W1, r.W2, r.Label.Relation())
		}
		w.WriteByte('\n')
	}
	return errors.Wrap(w.Flush(), "writing corpus")
}

func WriteFile(filename string, sents []*Sentence) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating output")
	}
	if err = Write(file, sents); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
