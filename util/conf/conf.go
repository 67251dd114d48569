// Package conf reads run configuration: plain line lists and the YAML
// hyperparameter bundle.
package conf

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Conf holds the non-empty, non-comment lines of a list file
type Conf struct {
	Values []string
}

func Read(reader io.Reader) (*Conf, error) {
	scanner := bufio.NewScanner(reader)
	retval := &Conf{}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(strings.TrimSpace(line)) > 0 && line[0] != '#' {
			retval.Values = append(retval.Values, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading list")
	}
	return retval, nil
}

func ReadFile(filename string) (*Conf, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()
	return Read(file)
}
