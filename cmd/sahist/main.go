// Command sahist plots the steering angle histogram of the train and valid
// groups of a dataset container.
package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/drivingset/datasets"
	"github.com/Noofbiz/drivingset/plots"
	"github.com/alexflint/go-arg"
	"k8s.io/klog/v2"
)

func fail(err error) {
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "sahist: %v\n", err)
		os.Exit(1)
	}
}

// steering reads column 0 of every target of a group.
func steering(file *datasets.File, name string) []float64 {
	g, err := file.Group(name, datasets.SteeringOnly)
	fail(err)
	targets, err := g.Targets()
	fail(err)
	out := make([]float64, len(targets))
	for i, t := range targets {
		out[i] = t[0]
	}
	return out
}

func main() {
	defer klog.Flush()
	args := struct {
		Dataset string `arg:"required" help:"dataset file name"`
		Bins    int    `help:"number of bins"`
		Output  string `help:"an output image file"`
	}{
		Bins:   plots.DefaultBins,
		Output: "sahist.png",
	}
	arg.MustParse(&args)

	file, err := datasets.Open(args.Dataset)
	fail(err)
	defer file.Close()

	train := steering(file, datasets.TrainGroup)
	valid := steering(file, datasets.ValidGroup)
	klog.Infof("train: %v", plots.Summarize(train))
	klog.Infof("valid: %v", plots.Summarize(valid))

	fail(plots.SteeringHistogram(args.Output, train, valid, args.Bins))
	klog.Infof("Saved to %s", args.Output)
}
