// Package aggregate merges the samples of several driving logs into one
// train/validation sample set.
//
// Every log is shuffled and split on its own before the partitions are
// concatenated, so each log contributes to both partitions in proportion
// to its size. All randomness comes from a single generator seeded from
// Options.Seed and threaded explicitly through each shuffle, so a fixed seed
// and a fixed log order always produce the same partitions.
package aggregate

import (
	"math"
	"math/rand"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultValidFraction is the share of each log held out for validation.
	DefaultValidFraction = 0.2

	// DefaultSeed seeds the shuffles when none is configured.
	DefaultSeed = 42
)

// Source is one driving log and the policy expanding it.
type Source struct {
	Log    *drivinglog.DrivingLog
	Policy samples.Policy
}

// Options controls the shuffling and the split.
type Options struct {
	Shuffle       bool
	ValidFraction float64
	Seed          int64
}

// DefaultOptions returns shuffling options with the default split and seed.
func DefaultOptions() Options {
	return Options{Shuffle: true, ValidFraction: DefaultValidFraction, Seed: DefaultSeed}
}

// Validate checks that the validation fraction lies in (0, 1).
func (o Options) Validate() error {
	if !(o.ValidFraction > 0 && o.ValidFraction < 1) {
		return errors.Wrapf(errs.ErrConfiguration, "validation fraction must be in (0, 1), got %v", o.ValidFraction)
	}
	return nil
}

// SampleSet holds the two disjoint partitions and the parameters that
// produced them.
type SampleSet struct {
	Train []samples.Sample
	Valid []samples.Sample

	ValidFraction float64
	Seed          int64
}

// Len returns the total number of samples in both partitions.
func (s *SampleSet) Len() int {
	return len(s.Train) + len(s.Valid)
}

// Aggregate generates, shuffles and splits the samples of every source, in
// order, and concatenates the partitions. With Shuffle set, both global
// partitions are reshuffled once more at the end.
func Aggregate(sources []Source, opts Options) (*SampleSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	set := &SampleSet{ValidFraction: opts.ValidFraction, Seed: opts.Seed}
	for _, src := range sources {
		klog.Infof("Process %s with %s", src.Log.Path, src.Policy)
		n, err := src.Log.Len()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", src.Log.Path)
		}
		if n == 0 {
			klog.Warningf("Driving log %s has no entries", src.Log.Path)
			continue
		}

		ss, err := src.Policy.Generate(src.Log)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to generate samples for %s", src.Log.Path)
		}

		if opts.Shuffle {
			klog.Infof("Shuffle %s", src.Log.Path)
			Shuffle(ss, rng)
		}

		klog.Infof("Split %s, valid size is %v", src.Log.Path, opts.ValidFraction)
		train, valid := Split(ss, opts.ValidFraction)
		set.Train = append(set.Train, train...)
		set.Valid = append(set.Valid, valid...)
	}

	if opts.Shuffle {
		klog.Infof("Shuffle %d train and %d valid samples", len(set.Train), len(set.Valid))
		Shuffle(set.Train, rng)
		Shuffle(set.Valid, rng)
	}
	return set, nil
}

// Shuffle permutes ss in place, keeping every feature with its target.
func Shuffle(ss []samples.Sample, rng *rand.Rand) {
	rng.Shuffle(len(ss), func(i, j int) {
		ss[i], ss[j] = ss[j], ss[i]
	})
}

// ValidCount is the number of samples out of n held out for validation:
// ceil(fraction*n). The epsilon keeps exact products such as 0.7*10 from
// rounding up because of float error.
func ValidCount(n int, fraction float64) int {
	v := int(math.Ceil(fraction*float64(n) - 1e-9))
	return max(0, min(n, v))
}

// Split cuts ss into a train head and a validation tail without reordering.
// The returned slices share ss's backing array.
func Split(ss []samples.Sample, fraction float64) (train, valid []samples.Sample) {
	cut := len(ss) - ValidCount(len(ss), fraction)
	return ss[:cut:cut], ss[cut:]
}
