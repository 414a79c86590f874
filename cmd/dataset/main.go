// Command dataset assembles driving logs into a train/valid dataset
// container.
//
// Usage:
//
//	dataset --drivinglog logs/track1 logs/track2 --flip-lr logs/track2 --output data.dlds
//	dataset --config assembly.yaml --random-state 7
//
// Values from --config are read first; flags given on the command line
// override them.
package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/drivingset/aggregate"
	"github.com/Noofbiz/drivingset/config"
	"github.com/Noofbiz/drivingset/datasets"
	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

func fail(err error) {
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "dataset: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	defer klog.Flush()

	cfg := config.Default()
	arg.MustParse(&cfg)
	if cfg.Config != "" {
		fromFile, err := config.Load(cfg.Config)
		fail(err)
		cfg = fromFile
		arg.MustParse(&cfg)
	}
	fail(run(cfg))
}

func run(cfg config.Assembly) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	dt, err := cfg.DType()
	if err != nil {
		return err
	}
	for _, p := range cfg.UnusedFlips() {
		klog.Warningf("%s is listed in --flip-lr but not in --drivinglog", p)
	}

	// Open every log before generating anything so a missing folder fails
	// fast.
	sources := make([]aggregate.Source, 0, len(cfg.DrivingLogs))
	for _, path := range cfg.DrivingLogs {
		klog.Infof("Use driving log %s", path)
		log, err := drivinglog.Open(path)
		if err != nil {
			return err
		}
		sources = append(sources, aggregate.Source{Log: log, Policy: cfg.Policy(path)})
	}

	set, err := aggregate.Aggregate(sources, cfg.Options())
	if err != nil {
		return err
	}
	if err := datasets.Write(cfg.Output, set, dt); err != nil {
		return err
	}

	info, err := os.Stat(cfg.Output)
	if err != nil {
		return err
	}
	klog.Infof("Saved to %s (%s): %d train, %d valid samples, targets %s, valid size %v, random state %d",
		cfg.Output, humanize.Bytes(uint64(info.Size())), len(set.Train), len(set.Valid), cfg.TargetsDType,
		set.ValidFraction, set.Seed)
	return nil
}
