package conf

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	LearningMethods = []string{"Perceptron", "SGDSVM", "AdaGrad", "AROW", "SCW", "DCDSSVM"}
	UpdateMethods   = []string{"MaxViolation", "Early", "Standard"}
	SearchMethods   = []string{"LeftToRight", "EasyFirst"}
)

// Params is the hyperparameter bundle of a training or prediction run
type Params struct {
	FVBitSize      int `yaml:"fvBitSize"`
	Verbosity      int `yaml:"verbosity"`
	BeamSize       int `yaml:"beamSize"`
	Iteration      int `yaml:"iteration"`
	LocalIteration int `yaml:"localIteration"`
	OutputInterval int `yaml:"outputInterval"`
	MiniBatch      int `yaml:"miniBatch"`
	Processors     int `yaml:"processors"`

	LearningMethod string `yaml:"learningMethod"`
	UpdateMethod   string `yaml:"updateMethod"`
	SearchMethod   string `yaml:"searchMethod"`

	UseAveraging      bool `yaml:"useAveraging"`
	UseBestFirst      bool `yaml:"useBestFirst"`
	UseParallel       bool `yaml:"useParallel"`
	UseLocalInit      bool `yaml:"useLocalInit"`
	UseWeighting      bool `yaml:"useWeighting"`
	UseDynamicSort    bool `yaml:"useDynamicSort"`
	UseGlobalFeatures bool `yaml:"useGlobalFeatures"`
	UseWeightedMargin bool `yaml:"useWeightedMargin"`
	// RelationOnly labels only the pairs of given gold entities
	RelationOnly bool `yaml:"relationOnly"`

	Margin    float64 `yaml:"margin"`
	Lambda    float64 `yaml:"lambda"`
	C         float64 `yaml:"C"`
	Tolerance float64 `yaml:"tolerance"`
	Epsilon   float64 `yaml:"epsilon"`
	Seed      int64   `yaml:"seed"`

	TrainFile  string `yaml:"trainFile"`
	DevFile    string `yaml:"devFile"`
	TestFile   string `yaml:"testFile"`
	ModelFile  string `yaml:"modelFile"`
	LabelsFile string `yaml:"labelsFile"`
	LexiconDB  string `yaml:"lexiconDB"`
}

func Default() *Params {
	return &Params{
		FVBitSize:         20,
		Verbosity:         3,
		BeamSize:          10,
		Iteration:         50,
		LocalIteration:    5,
		OutputInterval:    1,
		MiniBatch:         5,
		Processors:        1,
		LearningMethod:    "SGDSVM",
		UpdateMethod:      "MaxViolation",
		SearchMethod:      "LeftToRight",
		UseAveraging:      true,
		UseGlobalFeatures: true,
		Margin:            1,
		Lambda:            1e-4,
		C:                 1,
		Tolerance:         1e-3,
		ModelFile:         "model.txt",
	}
}

// Decode reads YAML over the defaults; unknown keys are errors
func Decode(r io.Reader) (*Params, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parsing parameters")
	}
	return p, nil
}

// Load reads and validates a parameter file
func Load(filename string) (*Params, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading parameters %s", filename)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	if err = p.Validate(); err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return p, nil
}

func oneOf(name, value string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return nil
		}
	}
	return errors.Errorf("unknown %s %q (want one of %s)", name, value, strings.Join(allowed, ", "))
}

func (p *Params) Is(method string) bool {
	return strings.EqualFold(p.LearningMethod, method)
}

func (p *Params) Validate() error {
	if err := oneOf("learningMethod", p.LearningMethod, LearningMethods); err != nil {
		return err
	}
	if err := oneOf("updateMethod", p.UpdateMethod, UpdateMethods); err != nil {
		return err
	}
	if err := oneOf("searchMethod", p.SearchMethod, SearchMethods); err != nil {
		return err
	}
	switch {
	case p.FVBitSize < 1 || p.FVBitSize > 30:
		return errors.Errorf("fvBitSize %d outside [1, 30]", p.FVBitSize)
	case p.BeamSize < 1:
		return errors.Errorf("beamSize %d must be positive", p.BeamSize)
	case p.MiniBatch < 1:
		return errors.Errorf("miniBatch %d must be positive", p.MiniBatch)
	case p.Iteration < 0 || p.LocalIteration < 0:
		return errors.New("iteration counts must not be negative")
	case p.Epsilon < 0 || p.Epsilon > 1:
		return errors.Errorf("epsilon %v outside [0, 1]", p.Epsilon)
	case p.Margin < 0:
		return errors.Errorf("margin %v must not be negative", p.Margin)
	case p.Is("SGDSVM") && !(p.Lambda < 1):
		return errors.Errorf("lambda %v must be below 1 for SGDSVM", p.Lambda)
	case (p.Is("SGDSVM") || p.Is("AROW") || p.Is("SCW")) && !(p.Lambda > 0):
		return errors.Errorf("lambda %v must be positive for %s", p.Lambda, p.LearningMethod)
	case p.Is("DCDSSVM") && !(p.C > 0):
		return errors.Errorf("C %v must be positive for DCDSSVM", p.C)
	case p.UseDynamicSort && !strings.EqualFold(p.SearchMethod, "EasyFirst"):
		return errors.New("useDynamicSort requires searchMethod EasyFirst")
	case p.UseDynamicSort && !p.UseGlobalFeatures:
		return errors.New("useDynamicSort requires useGlobalFeatures")
	case p.UseLocalInit && !p.UseGlobalFeatures:
		return errors.New("useLocalInit requires useGlobalFeatures")
	}
	return nil
}

func (p *Params) FVSize() int {
	return 1 << uint(p.FVBitSize)
}

func (p *Params) String() string {
	out, err := yaml.Marshal(p)
	if err != nil {
		return err.Error()
	}
	return string(out)
}
