package app

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tticoin/JointER/alg/learning"
	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/nlp/joint"
	"github.com/tticoin/JointER/nlp/lexicon"
	"github.com/tticoin/JointER/util/conf"
)

const corpus = "0\tJohn\tNNP\tU-Peop\n1\tworks\tVBZ\tO\n2\tfor\tIN\tO\n3\tAcme\tNNP\tB-Org\n4\tCorp\tNNP\tL-Org\nR\t0\t4\tWork_For\n\n" +
	"0\tAcme\tNNP\tU-Org\n1\thired\tVBD\tO\n2\tMary\tNNP\tU-Peop\nR\t0\t2\tWork_For-rev\n\n"

func writeFile(t *testing.T, dir, name, content string) string {
	filename := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

func resetFlags() {
	confFile, modelFile, trainFile, devFile = "", "", "", ""
	input, outFile, lexiconDB, synonyms, labelsFile = "", "", "", "", ""
	Iterations, BeamSize, metricsAddr = 0, 0, ""
}

func TestNewTrainer(t *testing.T) {
	params := conf.Default()
	params.LearningMethod = "SCW"
	params.UpdateMethod = "early"
	params.SearchMethod = "EasyFirst"
	params.UseWeightedMargin = true
	trainer, err := NewTrainer(params)
	require.NoError(t, err)
	assert.Equal(t, model.SCW, trainer.Method)
	assert.Equal(t, learning.Early, trainer.Update)
	assert.True(t, trainer.Beam.Sort)
	assert.True(t, trainer.Beam.WeightedMargin)
	assert.Equal(t, model.SCW.Policy(), trainer.Beam.Policy)
	assert.Equal(t, params.BeamSize, trainer.Beam.Size)
	assert.Same(t, trainer.Rand, trainer.Beam.Rand)

	params.UseGlobalFeatures = false
	trainer, err = NewTrainer(params)
	require.NoError(t, err)
	assert.False(t, trainer.Beam.Sort)

	params.LearningMethod = "MIRA"
	_, err = NewTrainer(params)
	assert.Error(t, err)
}

func TestTrainPredict(t *testing.T) {
	defer resetFlags()
	dir := t.TempDir()
	train := writeFile(t, dir, "train.txt", corpus)
	synonymFile := writeFile(t, dir, "synonyms.tsv", "john\tGIVEN_NAME\nmary\tGIVEN_NAME\n")
	db := filepath.Join(dir, "lexicon")

	// flag definitions reset their variables, so commands are built first
	lexCmd := LexiconCmd()
	resetFlags()
	lexiconDB, synonyms = db, synonymFile
	require.NoError(t, ImportLexicon(lexCmd, nil))
	lex, err := lexicon.Open(db)
	require.NoError(t, err)
	syns, err := lex.Synonyms("John")
	require.NoError(t, err)
	assert.Equal(t, []string{"GIVEN_NAME"}, syns)
	require.NoError(t, lex.Close())

	modelPath := filepath.Join(dir, "model.txt"+model.CompressedSuffix)
	trainCmd, predictCmd := TrainCmd(), PredictCmd()
	resetFlags()
	confFile = writeFile(t, dir, "config.yaml", fmt.Sprintf(
		"fvBitSize: 16\nverbosity: 0\nbeamSize: 4\niteration: 5\nlearningMethod: Perceptron\ntrainFile: %s\nmodelFile: %s\nlexiconDB: %s\n",
		train, modelPath, db))
	Iterations = 3
	require.NoError(t, Train(trainCmd, nil))
	require.NoError(t, VerifyExists("model", modelPath))

	params, err := loadParams()
	require.NoError(t, err)
	assert.Equal(t, 3, params.Iteration)
	trainer, err := NewTrainer(params)
	require.NoError(t, err)
	_, table, err := LoadModel(trainer, joint.NewGenerator(params.FVSize(), true, nil), modelPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Org", "Peop"}, table.Types())

	out := filepath.Join(dir, "out.txt")
	input, outFile = train, out
	require.NoError(t, Predict(predictCmd, nil))
	predicted, err := joint.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, predicted, 2)
	assert.Equal(t, "Corp", predicted[0].Tokens[4].Form)
	assert.Len(t, predicted[1].Labels, 3)
}

func TestLoadParamsMissing(t *testing.T) {
	defer resetFlags()
	resetFlags()
	confFile = filepath.Join(t.TempDir(), "none.yaml")
	_, err := loadParams()
	assert.Error(t, err)
}

func TestVerifyFlags(t *testing.T) {
	defer resetFlags()
	cmd := PredictCmd()
	resetFlags()
	input = "in.txt"
	err := VerifyFlags(cmd, []string{"c", "in", "out"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-c -out")
	assert.NotContains(t, err.Error(), "-in")

	confFile, outFile = "config.yaml", "out.txt"
	assert.NoError(t, VerifyFlags(cmd, []string{"c", "in", "out"}))
	assert.Panics(t, func() { VerifyFlags(cmd, []string{"train"}) })
}

func TestVerifyExists(t *testing.T) {
	err := VerifyExists("model", filepath.Join(t.TempDir(), "missing.zst"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model ")
	assert.NoError(t, VerifyExists("corpus", writeFile(t, t.TempDir(), "c.txt", corpus)))
}
