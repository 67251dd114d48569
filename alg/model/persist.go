package model

import (
	"bufio"
	"encoding"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// CompressedSuffix marks model files written through zstd
const CompressedSuffix = ".zst"

// Save writes m in the line-oriented model format: the train step, one line
// per weight vector (weight, then weightDiff and the average when
// averaging, then the learner's auxiliary vector), then the text of meta.
func Save(m Model, w io.Writer, meta encoding.TextMarshaler) error {
	writer := bufio.NewWriter(w)
	writer.WriteString(strconv.Itoa(m.TrainStep()))
	writer.WriteByte('\n')
	for _, vec := range m.vectors() {
		if err := vec.Write(writer); err != nil {
			return errors.Wrap(err, "writing weight vector")
		}
	}
	if meta != nil {
		text, err := meta.MarshalText()
		if err != nil {
			return errors.Wrap(err, "encoding model metadata")
		}
		writer.Write(text)
	}
	return errors.Wrap(writer.Flush(), "writing model")
}

// Load reads into m a model written by Save for the same learner and
// options. The trailing block is handed to meta.
func Load(m Model, r io.Reader, meta encoding.TextUnmarshaler) error {
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "reading train step")
	}
	step, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return errors.Wrap(err, "parsing train step")
	}
	for i, vec := range m.vectors() {
		line, err = reader.ReadString('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			return errors.Wrapf(err, "reading weight vector %d", i)
		}
		if err = vec.Parse(line); err != nil {
			return errors.Wrapf(err, "weight vector %d", i)
		}
	}
	m.setTrainStep(step)
	if meta == nil {
		return nil
	}
	rest, err := io.ReadAll(reader)
	if err != nil {
		return errors.Wrap(err, "reading model metadata")
	}
	return errors.Wrap(meta.UnmarshalText(rest), "decoding model metadata")
}

func SaveFile(m Model, filename string, meta encoding.TextMarshaler) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating model file %s", filename)
	}
	defer file.Close()
	var w io.Writer = file
	var enc *zstd.Encoder
	if strings.HasSuffix(filename, CompressedSuffix) {
		if enc, err = zstd.NewWriter(file); err != nil {
			return errors.Wrap(err, "creating zstd writer")
		}
		w = enc
	}
	if err = Save(m, w, meta); err != nil {
		return errors.Wrapf(err, "saving model to %s", filename)
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return errors.Wrapf(err, "compressing model %s", filename)
		}
	}
	return errors.Wrapf(file.Close(), "closing model file %s", filename)
}

func LoadFile(m Model, filename string, meta encoding.TextUnmarshaler) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "opening model file %s", filename)
	}
	defer file.Close()
	var r io.Reader = file
	if strings.HasSuffix(filename, CompressedSuffix) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "creating zstd reader")
		}
		defer dec.Close()
		r = dec
	}
	return errors.Wrapf(Load(m, r, meta), "loading model from %s", filename)
}
