package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader("# labels\nWord\tU-Peop\r\n\n  \nPair\tPeop|Org\tWork_For\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Word\tU-Peop", "Pair\tPeop|Org\tWork_For"}, c.Values)

	_, err = ReadFile(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	p, err := Decode(strings.NewReader("learningMethod: AROW\nbeamSize: 4\nuseParallel: true\nlambda: 0.5\n"))
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, "AROW", p.LearningMethod)
	assert.Equal(t, 4, p.BeamSize)
	assert.True(t, p.UseParallel)
	assert.Equal(t, 0.5, p.Lambda)
	assert.Equal(t, 20, p.FVBitSize)
	assert.Equal(t, 1<<20, p.FVSize())
	assert.True(t, p.UseAveraging)

	p, err = Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("beamSise: 4\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(p *Params){
		"sgd lambda one":      func(p *Params) { p.LearningMethod = "SGDSVM"; p.Lambda = 1 },
		"sgd lambda two":      func(p *Params) { p.LearningMethod = "SGDSVM"; p.Lambda = 2 },
		"sgd lambda negative": func(p *Params) { p.LearningMethod = "SGDSVM"; p.Lambda = -0.5 },
		"scw lambda zero":     func(p *Params) { p.LearningMethod = "SCW"; p.Lambda = 0 },
		"arow lambda zero":    func(p *Params) { p.LearningMethod = "AROW"; p.Lambda = 0 },
		"dcd zero C":          func(p *Params) { p.LearningMethod = "DCDSSVM"; p.C = 0 },
		"beam":                func(p *Params) { p.BeamSize = 0 },
		"minibatch":           func(p *Params) { p.MiniBatch = 0 },
		"bits":                func(p *Params) { p.FVBitSize = 31 },
		"epsilon":             func(p *Params) { p.Epsilon = 1.5 },
		"margin":              func(p *Params) { p.Margin = -1 },
		"method":              func(p *Params) { p.LearningMethod = "MIRA" },
		"update":              func(p *Params) { p.UpdateMethod = "Late" },
		"search":              func(p *Params) { p.SearchMethod = "RandomFirst" },
		"dynamic ltor":        func(p *Params) { p.UseDynamicSort = true },
		"dynamic local":       func(p *Params) { p.SearchMethod = "EasyFirst"; p.UseDynamicSort = true; p.UseGlobalFeatures = false },
		"local init no glob":  func(p *Params) { p.UseLocalInit = true; p.UseGlobalFeatures = false },
		"negative iterations": func(p *Params) { p.Iteration = -1 },
	}
	for name, mutate := range cases {
		p := Default()
		mutate(p)
		assert.Error(t, p.Validate(), name)
	}
	p := Default()
	p.SearchMethod = "easyfirst"
	p.UseDynamicSort = true
	assert.NoError(t, p.Validate())
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("learningMethod: SGDSVM\nlambda: 1\n"), 0o644))
	_, err := Load(filename)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params.yaml")

	require.NoError(t, os.WriteFile(filename, []byte("learningMethod: SCW\nlambda: 1\nmodelFile: m.zst\n"), 0o644))
	p, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, "m.zst", p.ModelFile)
	assert.Contains(t, p.String(), "learningMethod: SCW")
}
