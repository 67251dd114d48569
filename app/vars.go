package app

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/gonuts/commander"
	"github.com/pkg/errors"

	"github.com/tticoin/JointER/alg/learning"
	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/nlp/joint"
	"github.com/tticoin/JointER/nlp/lexicon"
	"github.com/tticoin/JointER/util/conf"
)

var (
	// file names
	confFile   string
	modelFile  string
	trainFile  string
	devFile    string
	input      string
	outFile    string
	lexiconDB  string
	synonyms   string
	labelsFile string

	// overrides of the configuration
	Iterations, BeamSize int
	metricsAddr          string
)

// VerifyExists reports a missing or unreadable input file, naming what
// the file was meant to be
func VerifyExists(what, filename string) error {
	if _, err := os.Stat(filename); err != nil {
		return errors.Wrapf(err, "%s %s", what, filename)
	}
	return nil
}

// VerifyFlags prints usage and lists every required flag of cmd left empty
func VerifyFlags(cmd *commander.Command, required []string) error {
	var missing []string
	for _, name := range required {
		f := cmd.Flag.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("%s has no flag -%s", cmd.Name(), name))
		}
		if f.Value.String() == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	cmd.Usage()
	return errors.Errorf("%s: required flags not set: %s", cmd.Name(), strings.Join(missing, " "))
}

// loadParams reads the configuration file and applies the command line
// overrides
func loadParams() (*conf.Params, error) {
	if err := VerifyExists("configuration", confFile); err != nil {
		return nil, err
	}
	params, err := conf.Load(confFile)
	if err != nil {
		return nil, err
	}
	override := func(target *string, value string) {
		if value != "" {
			*target = value
		}
	}
	override(&params.TrainFile, trainFile)
	override(&params.DevFile, devFile)
	override(&params.ModelFile, modelFile)
	override(&params.LexiconDB, lexiconDB)
	override(&params.LabelsFile, labelsFile)
	if Iterations > 0 {
		params.Iteration = Iterations
	}
	if BeamSize > 0 {
		params.BeamSize = BeamSize
	}
	return params, params.Validate()
}

func NewBeam(params *conf.Params, method model.Method) *search.Beam {
	return &search.Beam{
		Size:           params.BeamSize,
		BestFirst:      params.UseBestFirst,
		Epsilon:        params.Epsilon,
		Concurrent:     params.UseParallel,
		Processors:     params.Processors,
		Sort:           params.UseGlobalFeatures && strings.EqualFold(params.SearchMethod, "EasyFirst"),
		DynamicSort:    params.UseDynamicSort,
		Policy:         method.Policy(),
		Margin:         params.Margin,
		WeightedMargin: params.UseWeightedMargin,
		GlobalFeatures: params.UseGlobalFeatures,
		Rand:           rand.New(rand.NewSource(params.Seed)),
		Log:            params.Verbosity > 3,
	}
}

func NewOptions(params *conf.Params) model.Options {
	return model.Options{
		Averaging: params.UseAveraging,
		MiniBatch: params.MiniBatch,
		Lambda:    params.Lambda,
		C:         params.C,
		Tolerance: params.Tolerance,
	}
}

// NewTrainer builds the trainer a configuration describes
func NewTrainer(params *conf.Params) (*learning.Trainer, error) {
	method, err := model.ParseMethod(params.LearningMethod)
	if err != nil {
		return nil, err
	}
	update, err := learning.ParseUpdateMethod(params.UpdateMethod)
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(params.Seed))
	beam := NewBeam(params, method)
	beam.Rand = r
	return &learning.Trainer{
		Method:          method,
		Options:         NewOptions(params),
		Beam:            beam,
		Update:          update,
		Iterations:      params.Iteration,
		LocalInit:       params.UseLocalInit,
		LocalIterations: params.LocalIteration,
		Weighting:       params.UseWeighting,
		OutputInterval:  params.OutputInterval,
		Evaluator:       joint.Evaluator{},
		Verbosity:       params.Verbosity,
		Rand:            r,
	}, nil
}

// openLexicon returns a nil lexicon and a nil closer when none is set
func openLexicon(params *conf.Params) (joint.Synonyms, func(), error) {
	if params.LexiconDB == "" {
		return nil, func() {}, nil
	}
	lex, err := lexicon.Open(params.LexiconDB)
	if err != nil {
		return nil, nil, err
	}
	return lex, func() {
		if err := lex.Close(); err != nil {
			log.Println(err)
		}
	}, nil
}

func readCorpus(filename string) ([]*joint.Sentence, error) {
	if err := VerifyExists("corpus", filename); err != nil {
		return nil, err
	}
	return joint.ReadFile(filename)
}

func logScores(name string, scores []learning.Score) {
	for _, s := range scores {
		log.Println(name, s)
	}
}
