// Command trajectory restores the path driven during a recording from its
// driving log and writes it as "x y" lines.
package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/plots"
	"github.com/Noofbiz/drivingset/trajectory"
	"github.com/alexflint/go-arg"
	"k8s.io/klog/v2"
)

func fail(err error) {
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "trajectory: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	defer klog.Flush()
	opts := trajectory.DefaultOptions()
	args := struct {
		Input     string  `arg:"-i,required" help:"an input file (driving log)"`
		Output    string  `arg:"-o,required" help:"an output file"`
		Plot      string  `help:"also draw the trajectory into this image file"`
		FrameRate float64 `arg:"--frame-rate"`
		BaseAngle float64 `arg:"--base-angle"`
		Angle     float64
	}{
		FrameRate: opts.FrameRate,
		BaseAngle: opts.BaseAngle,
		Angle:     opts.Angle,
	}
	arg.MustParse(&args)

	entries, err := drivinglog.ReadFile(args.Input)
	fail(err)
	points, err := trajectory.Restore(entries, trajectory.Options{
		FrameRate: args.FrameRate,
		BaseAngle: args.BaseAngle,
		Angle:     args.Angle,
	})
	fail(err)

	out, err := os.Create(args.Output)
	fail(err)
	fail(trajectory.WriteXY(out, points))
	fail(out.Close())
	klog.Infof("Saved %d points to %s", len(points), args.Output)

	if args.Plot != "" {
		fail(plots.Trajectory(args.Plot, points))
		klog.Infof("Saved plot to %s", args.Plot)
	}
}
