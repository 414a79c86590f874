// Command tvloss plots the train and valid loss curves of a history file.
package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/drivingset/history"
	"github.com/Noofbiz/drivingset/plots"
	"github.com/alexflint/go-arg"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	args := struct {
		History string `arg:"required" help:"a history file"`
		Output  string `help:"an output image file"`
	}{
		Output: "tvloss.png",
	}
	arg.MustParse(&args)

	records, err := history.Read(args.History)
	if err == nil {
		train, valid := history.Losses(records)
		err = plots.LossCurves(args.Output, train, valid)
	}
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "tvloss: %v\n", err)
		os.Exit(1)
	}
	klog.Infof("Saved %d epochs to %s", len(records), args.Output)
}
