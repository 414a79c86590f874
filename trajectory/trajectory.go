// Package trajectory restores the path driven during a recording by dead
// reckoning over the driving log telemetry.
package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/Noofbiz/drivingset/drivinglog"
	"gonum.org/v1/gonum/spatial/r2"
)

// Options tune the integration.
type Options struct {
	// FrameRate is the number of log entries per second.
	FrameRate float64
	// BaseAngle is the heading in degrees for a zero steering angle.
	BaseAngle float64
	// Angle is the heading change in degrees for a steering angle of 1.
	Angle float64
}

// DefaultOptions matches the simulator recordings: 10 frames per second,
// heading along +x and 25 degrees of full lock.
func DefaultOptions() Options {
	return Options{FrameRate: 10, BaseAngle: 0, Angle: 25}
}

// Polar returns the vector of the given heading (degrees) and magnitude.
func Polar(degrees, magnitude float64) r2.Vec {
	rad := degrees * math.Pi / 180
	return r2.Vec{X: magnitude * math.Cos(rad), Y: magnitude * math.Sin(rad)}
}

// Step returns the displacement of one entry.
func Step(e drivinglog.Entry, opts Options) r2.Vec {
	heading := opts.BaseAngle + opts.Angle*e.SteeringAngle
	// Speed is rounded to two decimals, halves to even.
	magnitude := math.RoundToEven(e.Speed*100) / 100 / opts.FrameRate
	return Polar(heading, magnitude)
}

// Restore integrates the entries starting at the origin. The result has
// len(entries)+1 points, the origin first.
func Restore(entries []drivinglog.Entry, opts Options) ([]r2.Vec, error) {
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %g", opts.FrameRate)
	}
	points := make([]r2.Vec, 0, len(entries)+1)
	var v r2.Vec
	points = append(points, v)
	for _, e := range entries {
		v = r2.Add(v, Step(e, opts))
		points = append(points, v)
	}
	return points, nil
}

// WriteXY writes one "x y" line per point.
func WriteXY(w io.Writer, points []r2.Vec) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := fmt.Fprintf(bw, "%v %v\n", p.X, p.Y); err != nil {
			return err
		}
	}
	return bw.Flush()
}
