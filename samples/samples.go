// Package samples expands driving log entries into (feature, target) pairs.
package samples

import (
	"fmt"

	"github.com/Noofbiz/drivingset/drivinglog"
)

// Target column indices.
const (
	ColSteering = iota
	ColThrottle
	ColBrake
	ColSpeed

	NumTargets
)

const (
	// DefaultLeftV nudges the left camera label back toward center.
	DefaultLeftV = 0.2
	// DefaultRightV nudges the right camera label back toward center.
	DefaultRightV = -0.2

	// MaxSteering is the saturation bound of corrected steering angles.
	MaxSteering = 1.0
)

// Target is (steering angle, throttle, brake, speed).
type Target [NumTargets]float64

// Sample is one camera image and the telemetry it should predict.
type Sample struct {
	Feature *drivinglog.Image
	Target  Target
}

// Policy turns a driving log into samples.
type Policy interface {
	Generate(log *drivinglog.DrivingLog) ([]Sample, error)
	// PerEntry is the number of samples emitted for each entry.
	PerEntry() int
	String() string
}

// Center emits the center camera only.
type Center struct{}

func (Center) PerEntry() int  { return 1 }
func (Center) String() string { return "center" }

// Generate emits (center camera, targets) for every entry.
func (Center) Generate(log *drivinglog.DrivingLog) ([]Sample, error) {
	entries, err := log.Decoded()
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(entries))
	for _, e := range entries {
		center, err := e.CenterCam()
		if err != nil {
			return nil, err
		}
		out = append(out, Sample{Feature: center, Target: e.Targets()})
	}
	return out, nil
}

// LCR (left-center-right) emits, for every entry and in this order: the
// left camera with LeftV added to the steering angle, the center camera,
// the mirrored center camera with the steering negated when FlipCenter is
// set, and the right camera with RightV added. Corrected angles saturate
// at ±MaxSteering.
type LCR struct {
	LeftV      float64
	RightV     float64
	FlipCenter bool
}

// NewLCR returns an LCR policy with the default corrections.
func NewLCR(flipCenter bool) LCR {
	return LCR{LeftV: DefaultLeftV, RightV: DefaultRightV, FlipCenter: flipCenter}
}

func (p LCR) PerEntry() int {
	if p.FlipCenter {
		return 4
	}
	return 3
}

func (p LCR) String() string {
	return fmt.Sprintf("lcr(left=%g, right=%g, flip=%t)", p.LeftV, p.RightV, p.FlipCenter)
}

// Generate expands every entry of the log.
func (p LCR) Generate(log *drivinglog.DrivingLog) ([]Sample, error) {
	entries, err := log.Decoded()
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(entries)*p.PerEntry())
	for _, e := range entries {
		out, err = p.appendEntry(out, e)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p LCR) appendEntry(out []Sample, e *drivinglog.DecodedEntry) ([]Sample, error) {
	left, err := e.LeftCam()
	if err != nil {
		return nil, err
	}
	center, err := e.CenterCam()
	if err != nil {
		return nil, err
	}
	right, err := e.RightCam()
	if err != nil {
		return nil, err
	}

	out = append(out,
		Sample{Feature: left, Target: e.CorrectedTargets(p.LeftV, MaxSteering)},
		Sample{Feature: center, Target: e.Targets()},
	)
	if p.FlipCenter {
		out = append(out, Sample{Feature: center.FlipLR(), Target: e.FlippedTargets()})
	}
	out = append(out, Sample{Feature: right, Target: e.CorrectedTargets(p.RightV, MaxSteering)})
	return out, nil
}

// Split returns the features and targets of ss as parallel slices.
func Split(ss []Sample) ([]*drivinglog.Image, []Target) {
	features := make([]*drivinglog.Image, len(ss))
	targets := make([]Target, len(ss))
	for i, s := range ss {
		features[i] = s.Feature
		targets[i] = s.Target
	}
	return features, targets
}
