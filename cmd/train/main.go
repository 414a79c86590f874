// Command train fits the baseline MLP on the steering column of a dataset
// container and saves the model and its loss history.
//
// Usage:
//
//	train --dataset data.dlds --model model.gob --history history.csv
package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/drivingset/datasets"
	"github.com/Noofbiz/drivingset/history"
	"github.com/Noofbiz/drivingset/simple"
	"github.com/alexflint/go-arg"
	"k8s.io/klog/v2"
)

type args struct {
	Dataset      string  `arg:"required" help:"a dataset (file name)"`
	Model        string  `arg:"required" help:"an output model (file name)"`
	History      string  `help:"a file name of history file (csv)"`
	Epochs       int     `help:"training epochs"`
	BatchSize    int     `arg:"--batch-size" help:"samples per update"`
	LearningRate float64 `arg:"--learning-rate"`
	Hidden       []int   `help:"hidden layer sizes"`
	PoolRows     int     `arg:"--pool-rows" help:"rows of the pooled frame"`
	PoolCols     int     `arg:"--pool-cols" help:"columns of the pooled frame"`
	CropTop      int     `arg:"--crop-top" help:"image rows dropped from the top"`
	CropBottom   int     `arg:"--crop-bottom" help:"image rows dropped from the bottom"`
	Seed         int64
}

func fail(err error) {
	if err != nil {
		klog.Flush()
		fmt.Fprintf(os.Stderr, "train: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	defer klog.Flush()
	a := args{
		Epochs:       5,
		BatchSize:    256,
		LearningRate: 0.001,
		Hidden:       []int{64},
		PoolRows:     simple.DefaultPoolRows,
		PoolCols:     simple.DefaultPoolCols,
		Seed:         42,
	}
	arg.MustParse(&a)

	file, err := datasets.Open(a.Dataset)
	fail(err)
	defer file.Close()

	pool := simple.Pooler{Rows: a.PoolRows, Cols: a.PoolCols, CropTop: a.CropTop, CropBottom: a.CropBottom}
	load := func(name string) *simple.MemoryDataset {
		// Targets are 4-vectors; the model regresses steering only.
		g, err := file.Group(name, datasets.SteeringOnly)
		fail(err)
		ds, err := simple.LoadGroup(g, pool, a.BatchSize)
		fail(err)
		klog.Infof("Loaded %s: %d samples", name, ds.Len())
		return ds
	}
	train, valid := load(datasets.TrainGroup), load(datasets.ValidGroup)

	model, err := simple.NewModel(simple.Config{
		HiddenSizes:  a.Hidden,
		InputDim:     pool.Dim(),
		OutputDim:    1,
		LearningRate: a.LearningRate,
		Epochs:       a.Epochs,
		BatchSize:    a.BatchSize,
		Seed:         a.Seed,
	})
	fail(err)

	records, err := model.Fit(train, valid)
	fail(err)
	for i, r := range records {
		klog.Infof("Epoch %d: loss %.6f, val_loss %.6f", i+1, r.Train, r.Valid)
	}

	fail(model.Save(a.Model))
	klog.Infof("Saved model to %s", a.Model)

	if a.History != "" {
		fail(history.Write(a.History, records))
		klog.Infof("Saved history to %s", a.History)
	}
}
