package app

import (
	"log"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/pkg/errors"

	"github.com/tticoin/JointER/alg/learning"
	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/nlp/joint"
)

// LoadModel restores a trained model and its possible-labels table
func LoadModel(trainer *learning.Trainer, gen *joint.Generator, filename string) (model.Model, *joint.PossibleLabels, error) {
	m, err := model.New(trainer.Method, gen, trainer.Options)
	if err != nil {
		return nil, nil, err
	}
	table := joint.NewPossibleLabels()
	if err = model.LoadFile(m, filename, table); err != nil {
		return nil, nil, err
	}
	if table.Len() == 0 {
		return nil, nil, errors.Errorf("model %s carries no possible labels", filename)
	}
	return m, table, nil
}

func Predict(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"c", "in", "out"}); err != nil {
		return err
	}
	params, err := loadParams()
	if err != nil {
		return err
	}
	if err = VerifyExists("model", params.ModelFile); err != nil {
		return err
	}
	lex, closeLexicon, err := openLexicon(params)
	if err != nil {
		return err
	}
	defer closeLexicon()
	gen := joint.NewGenerator(params.FVSize(), params.UseGlobalFeatures, lex)
	trainer, err := NewTrainer(params)
	if err != nil {
		return err
	}

	start := time.Now()
	m, table, err := LoadModel(trainer, gen, params.ModelFile)
	if err != nil {
		return err
	}
	if params.Verbosity > 1 {
		log.Println("Loaded", m.Method(), "model from", params.ModelFile, "in", time.Since(start))
	}

	sents, err := readCorpus(input)
	if err != nil {
		return err
	}
	data := joint.NewData(sents, table, params.RelationOnly)
	start = time.Now()
	predicted, err := trainer.Predict(m, data)
	if err != nil {
		return err
	}
	if params.Verbosity > 0 {
		log.Println("Predicted", len(predicted), "sentences in", time.Since(start))
		logScores("Input", joint.Evaluator{}.Evaluate(predicted))
	}
	if err = joint.WriteFile(outFile, joint.Decode(data, predicted)); err != nil {
		return err
	}
	if params.Verbosity > 0 {
		log.Println("Wrote", len(predicted), "sentences to", outFile)
	}
	return nil
}

func PredictCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       Predict,
		UsageLine: "predict <file options> [arguments]",
		Short:     "labels entities and relations with a trained model",
		Long: `
labels entities and relations with a trained model

	$ ./jointer predict -c <config.yaml> -m <model> -in <corpus> -out <corpus>

`,
		Flag: *flag.NewFlagSet("predict", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&confFile, "c", "", "YAML configuration file")
	cmd.Flag.StringVar(&modelFile, "m", "", "Model file (overrides modelFile)")
	cmd.Flag.StringVar(&input, "in", "", "Input corpus")
	cmd.Flag.StringVar(&outFile, "out", "", "Output corpus")
	cmd.Flag.StringVar(&lexiconDB, "lex", "", "Lexicon database directory (overrides lexiconDB)")
	cmd.Flag.IntVar(&BeamSize, "b", 0, "Beam size (overrides beamSize)")
	return cmd
}
