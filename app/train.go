package app

import (
	"log"
	"net/http"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tticoin/JointER/alg/learning"
	"github.com/tticoin/JointER/alg/model"
	"github.com/tticoin/JointER/alg/search"
	"github.com/tticoin/JointER/alg/sequence"
	"github.com/tticoin/JointER/nlp/joint"
	"github.com/tticoin/JointER/util"
)

// serveMetrics exposes the training metrics on addr until the process
// exits
func serveMetrics(addr string, trainer *learning.Trainer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	trainer.Metrics = learning.NewMetrics(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Println("Metrics interface:", "http://"+addr+"/metrics")
	go func() {
		log.Println(http.ListenAndServe(addr, mux))
	}()
}

func Train(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"c"}); err != nil {
		return err
	}
	params, err := loadParams()
	if err != nil {
		return err
	}
	if params.TrainFile == "" {
		return errors.New("no training data: set trainFile or -train")
	}
	if params.Verbosity > 2 {
		log.Println("Configuration")
		log.Print("\n", params)
	}
	search.AllOut = search.AllOut || params.Verbosity > 4

	start := time.Now()
	sents, err := readCorpus(params.TrainFile)
	if err != nil {
		return err
	}
	var table *joint.PossibleLabels
	if params.LabelsFile != "" {
		if table, err = joint.ReadLabelsFile(params.LabelsFile); err != nil {
			return err
		}
	} else {
		table = joint.ObserveAll(sents)
	}
	if params.Verbosity > 1 {
		log.Println("Read", len(sents), "training sentences in", time.Since(start))
		log.Println("Possible labels:", table)
	}
	data := joint.NewData(sents, table, params.RelationOnly)

	var dev *sequence.Data
	if params.DevFile != "" {
		devSents, err := readCorpus(params.DevFile)
		if err != nil {
			return err
		}
		dev = joint.NewData(devSents, table, params.RelationOnly)
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
	if metricsAddr != "" {
		serveMetrics(metricsAddr, trainer)
	}
	m, err := trainer.Learn(data, gen, dev)
	if err != nil {
		return err
	}
	if params.Verbosity > 0 {
		log.Println("Training finished in", time.Since(start))
		util.LogMemory()
	}
	if err = model.SaveFile(m, params.ModelFile, table); err != nil {
		return err
	}
	if params.Verbosity > 0 {
		log.Println("Wrote model to", params.ModelFile)
	}

	if params.TestFile != "" {
		testSents, err := readCorpus(params.TestFile)
		if err != nil {
			return err
		}
		scores, err := trainer.Evaluate(m, joint.NewData(testSents, table, params.RelationOnly))
		if err != nil {
			return err
		}
		logScores("Test", scores)
	}
	return nil
}

func TrainCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       Train,
		UsageLine: "train <file options> [arguments]",
		Short:     "trains a joint entity and relation extraction model",
		Long: `
trains a joint entity and relation extraction model

	$ ./jointer train -c <config.yaml> [-train <corpus>] [-dev <corpus>] [-m <model>] [-it <n>] [-b <k>] [-metrics <addr>]

`,
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&confFile, "c", "", "YAML configuration file")
	cmd.Flag.StringVar(&trainFile, "train", "", "Training corpus (overrides trainFile)")
	cmd.Flag.StringVar(&devFile, "dev", "", "Development corpus (overrides devFile)")
	cmd.Flag.StringVar(&modelFile, "m", "", "Output model file, compressed when ending in "+model.CompressedSuffix)
	cmd.Flag.StringVar(&lexiconDB, "lex", "", "Lexicon database directory (overrides lexiconDB)")
	cmd.Flag.StringVar(&labelsFile, "labels", "", "Possible labels file (overrides labelsFile)")
	cmd.Flag.IntVar(&Iterations, "it", 0, "Number of training iterations (overrides iteration)")
	cmd.Flag.IntVar(&BeamSize, "b", 0, "Beam size (overrides beamSize)")
	cmd.Flag.StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	cmd.Flag.BoolVar(&search.AllOut, "showbeam", false, "Show the best state of every beam step")
	return cmd
}
