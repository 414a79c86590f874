// Package config holds the settings of the dataset assembly tool. Values
// come from an optional YAML file; command line flags parsed on top of it
// take precedence.
package config

import (
	"os"
	"path/filepath"

	"github.com/Noofbiz/drivingset/aggregate"
	"github.com/Noofbiz/drivingset/datasets"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DefaultTargetsDType is the stored dtype of the targets.
const DefaultTargetsDType = "float32"

// Assembly configures one run of the dataset assembly tool. The struct tags
// serve both the YAML file and go-arg.
type Assembly struct {
	DrivingLogs  []string `yaml:"drivinglog" arg:"--drivinglog" help:"driving log folders (one or more)"`
	LeftV        float64  `yaml:"left_v" arg:"--left-v" help:"steering correction of the left camera"`
	RightV       float64  `yaml:"right_v" arg:"--right-v" help:"steering correction of the right camera"`
	Output       string   `yaml:"output" arg:"--output" help:"output dataset file"`
	TargetsDType string   `yaml:"targets_dtype" arg:"--targets-dtype" help:"dtype of the stored targets: float16, float32 or float64"`
	NoShuffle    bool     `yaml:"no_shuffle" arg:"--no-shuffle" help:"keep samples in generation order"`
	RandomState  int64    `yaml:"random_state" arg:"--random-state" help:"seed of the shuffles"`
	ValidSize    float64  `yaml:"valid_size" arg:"--valid-size" help:"fraction of every log held out for validation"`
	FlipLR       []string `yaml:"flip_lr" arg:"--flip-lr" help:"driving log folders to augment with mirrored center images"`
	Config       string   `yaml:"-" arg:"--config" help:"YAML file with default values for these flags"`
}

// Default returns the settings used when neither the file nor the command
// line sets a value.
func Default() Assembly {
	return Assembly{
		LeftV:        samples.DefaultLeftV,
		RightV:       samples.DefaultRightV,
		TargetsDType: DefaultTargetsDType,
		RandomState:  aggregate.DefaultSeed,
		ValidSize:    aggregate.DefaultValidFraction,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Assembly, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(errs.ErrConfiguration, "failed to open config: %v", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(errs.ErrConfiguration, "%s: %v", path, err)
	}
	cfg.Config = path
	return cfg, nil
}

// Validate checks the settings that can be checked before touching any
// driving log.
func (a Assembly) Validate() error {
	if len(a.DrivingLogs) == 0 {
		return errors.Wrap(errs.ErrConfiguration, "at least one driving log is required")
	}
	if a.Output == "" {
		return errors.Wrap(errs.ErrConfiguration, "an output file is required")
	}
	if _, err := a.DType(); err != nil {
		return err
	}
	return a.Options().Validate()
}

// DType parses TargetsDType.
func (a Assembly) DType() (dtypes.DType, error) {
	return datasets.ParseTargetDType(a.TargetsDType)
}

// Options returns the aggregation options.
func (a Assembly) Options() aggregate.Options {
	return aggregate.Options{
		Shuffle:       !a.NoShuffle,
		ValidFraction: a.ValidSize,
		Seed:          a.RandomState,
	}
}

// Policy returns the sample policy of the log at path.
func (a Assembly) Policy(path string) samples.Policy {
	return samples.LCR{LeftV: a.LeftV, RightV: a.RightV, FlipCenter: NewPathSet(a.FlipLR).Contains(path)}
}

// UnusedFlips returns the FlipLR paths that name none of the driving logs.
func (a Assembly) UnusedFlips() []string {
	logs := NewPathSet(a.DrivingLogs)
	var unused []string
	for _, p := range a.FlipLR {
		if !logs.Contains(p) {
			unused = append(unused, p)
		}
	}
	return unused
}

// PathSet is a set of file paths compared after filepath.Clean, so "logs/a"
// and "logs/a/" are the same member.
type PathSet map[string]struct{}

// NewPathSet builds a set from paths.
func NewPathSet(paths []string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[filepath.Clean(p)] = struct{}{}
	}
	return s
}

// Contains reports whether path is a member.
func (s PathSet) Contains(path string) bool {
	_, ok := s[filepath.Clean(path)]
	return ok
}
