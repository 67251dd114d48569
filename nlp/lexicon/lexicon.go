// Package lexicon stores word synonym lists in an embedded badger database.
package lexicon

import (
	"bufio"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const separator = "\t"

// Lexicon maps lowercased words to their synonyms or classes
type Lexicon struct {
	db *badger.DB
}

// stdLogger routes badger warnings and errors to the standard logger
type stdLogger struct{}

func (stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf("lexicon: "+format, args...)
}

func (stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf("lexicon: "+format, args...)
}

func (stdLogger) Infof(string, ...interface{})  {}
func (stdLogger) Debugf(string, ...interface{}) {}

// Open opens or creates the database in dir
func Open(dir string) (*Lexicon, error) {
	if dir == "" {
		return nil, errors.New("lexicon directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrapf(err, "creating lexicon directory %s", dir)
	}
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens an empty database that lives until Close
func OpenInMemory() (*Lexicon, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Lexicon, error) {
	db, err := badger.Open(opts.WithLogger(stdLogger{}).WithNumVersionsToKeep(1))
	if err != nil {
		return nil, errors.Wrap(err, "opening lexicon")
	}
	return &Lexicon{db: db}, nil
}

func (l *Lexicon) Close() error {
	return errors.Wrap(l.db.Close(), "closing lexicon")
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Synonyms returns the entries of word, nil when it is unknown
func (l *Lexicon) Synonyms(word string) ([]string, error) {
	var syns []string
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(normalize(word)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			syns = strings.Split(string(val), separator)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "looking up %q", word)
	}
	return syns, nil
}

// Import reads lines of a word followed by its tab-separated entries and
// merges them into the database. It returns the number of words written.
func (l *Lexicon) Import(reader io.Reader) (int, error) {
	entries := make(map[string]map[string]bool)
	scanner := bufio.NewScanner(reader)
	var lineNum int
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, separator)
		word := normalize(fields[0])
		if len(fields) < 2 || word == "" {
			return 0, errors.Errorf("lexicon line %d: expected a word and at least one entry", lineNum)
		}
		if entries[word] == nil {
			entries[word] = make(map[string]bool)
		}
		for _, syn := range fields[1:] {
			if syn = strings.TrimSpace(syn); syn != "" {
				entries[word][syn] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "reading lexicon")
	}

	wb := l.db.NewWriteBatch()
	defer wb.Cancel()
	for word, set := range entries {
		existing, err := l.Synonyms(word)
		if err != nil {
			return 0, err
		}
		for _, syn := range existing {
			set[syn] = true
		}
		syns := make([]string, 0, len(set))
		for syn := range set {
			syns = append(syns, syn)
		}
		sort.Strings(syns)
		if err = wb.Set([]byte(word), []byte(strings.Join(syns, separator))); err != nil {
			return 0, errors.Wrapf(err, "storing %q", word)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, "writing lexicon")
	}
	return len(entries), nil
}

// ImportFile imports a synonyms file
func (l *Lexicon) ImportFile(filename string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, errors.Wrap(err, "opening synonyms")
	}
	defer file.Close()
	n, err := l.Import(file)
	if err != nil {
		return n, errors.Wrap(err, filename)
	}
	return n, nil
}
