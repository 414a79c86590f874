package main

// Example command that opens a dataset container, prints its groups and
// converts the first batch of each into gomlx tensors.
//
// The container is read lazily: only the header and the rows of the
// printed batch are loaded.
//
// Usage:
//   go run ./datasets/example data.dlds
//   go run ./datasets/example --batch-size 4 --steering-only data.dlds

import (
	"fmt"

	"github.com/Noofbiz/drivingset/datasets"
	"github.com/alexflint/go-arg"
	"k8s.io/klog/v2"
)

type args struct {
	Path         string `arg:"positional,required" help:"dataset container"`
	BatchSize    int    `arg:"--batch-size" help:"rows of the sample batch"`
	SteeringOnly bool   `arg:"--steering-only" help:"keep only the steering target"`
}

func main() {
	a := args{BatchSize: 8}
	arg.MustParse(&a)
	defer klog.Flush()

	file, err := datasets.Open(a.Path)
	if err != nil {
		klog.Fatalf("failed to open dataset: %v", err)
	}
	defer file.Close()

	var targetsFn datasets.TargetsFunc
	if a.SteeringOnly {
		targetsFn = datasets.SteeringOnly
	}

	h := file.Header()
	fmt.Printf("Dataset %s (%s), valid size %v, random state %d\n", file.Path(), h.Version, h.ValidFraction, h.Seed)
	for _, name := range []string{datasets.TrainGroup, datasets.ValidGroup} {
		g, err := file.Group(name, targetsFn)
		if err != nil {
			klog.Fatalf("failed to open group %s: %v", name, err)
		}
		fmt.Printf("Group %s: %d samples, features %v, targets %s\n",
			name, g.Len(), g.FeatureShape(), datasets.DTypeName(g.TargetDType()))
		if g.Len() == 0 {
			continue
		}

		batch, err := g.ReadBatch(0, min(a.BatchSize, g.Len()))
		if err != nil {
			klog.Fatalf("failed to read batch: %v", err)
		}
		inT, laT, err := batch.ToGomlxTensors()
		if err != nil {
			klog.Fatalf("failed to convert batch to gomlx tensors: %v", err)
		}
		fmt.Printf("  Input shape: %s\n", inT.Shape())
		fmt.Printf("  Label shape: %s\n", laT.Shape())
		fmt.Printf("  First example targets: %v\n", batch.Targets[0])
	}
}
