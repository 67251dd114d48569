package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tticoin/JointER/alg/search"
)

type note struct {
	text string
}

func (n *note) MarshalText() ([]byte, error) {
	return []byte(n.text), nil
}

func (n *note) UnmarshalText(text []byte) error {
	n.text = string(text)
	return nil
}

func trained(t *testing.T, method Method, opts Options) Model {
	m := newModel(t, method, opts)
	b := beamFor(m)
	for _, inst := range toyInstances() {
		s, err := b.FindMaxViolatingState(m, inst)
		require.NoError(t, err)
		m.Update([]*search.State{s})
	}
	m.AverageWeight()
	require.Greater(t, m.TrainStep(), 1, method.String())
	return m
}

func TestSaveLoad(t *testing.T) {
	opts := Options{Averaging: true, MiniBatch: 1, Lambda: 0.5, C: 1, Tolerance: 1e-3}
	for method := Perceptron; method <= DCDSSVM; method++ {
		m := trained(t, method, opts)
		var buf bytes.Buffer
		require.NoError(t, Save(m, &buf, &note{"JointLabelUnit\tW\tB-Peop\n"}))

		loaded := newModel(t, method, opts)
		meta := &note{}
		require.NoError(t, Load(loaded, &buf, meta))
		assert.Equal(t, m.TrainStep(), loaded.TrainStep(), method.String())
		for i, vec := range m.vectors() {
			assert.Equal(t, vec.Values, loaded.vectors()[i].Values, "%s vector %d", method, i)
		}
		assert.Equal(t, "JointLabelUnit\tW\tB-Peop\n", meta.text)
	}
}

func TestSaveLoadFile(t *testing.T) {
	opts := Options{MiniBatch: 1, Lambda: 1}
	m := trained(t, AROW, opts)
	dir := t.TempDir()
	for _, name := range []string{"model.txt", "model.txt" + CompressedSuffix} {
		filename := filepath.Join(dir, name)
		require.NoError(t, SaveFile(m, filename, nil))
		loaded := newModel(t, AROW, opts)
		require.NoError(t, LoadFile(loaded, filename, nil))
		assert.Equal(t, m.Weight().Values, loaded.Weight().Values, name)
		assert.Equal(t, m.TrainStep(), loaded.TrainStep(), name)
	}
}

func TestLoadRejectsMismatchedModel(t *testing.T) {
	m := trained(t, Perceptron, Options{MiniBatch: 1})
	var buf bytes.Buffer
	require.NoError(t, Save(m, &buf, nil))

	// an averaged model expects more vectors than were written
	averaged := newModel(t, Perceptron, Options{Averaging: true, MiniBatch: 1})
	assert.Error(t, Load(averaged, &buf, nil))

	assert.Error(t, LoadFile(averaged, filepath.Join(t.TempDir(), "missing.txt"), nil))
}
