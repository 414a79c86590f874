// Package datasets persists train/validation sample sets into a single
// container file and reads them back in batches.
//
// A container holds two groups, "train" and "valid", and every group holds
// two arrays: "features", the uint8 image stack of shape [n, H, W, 3], and
// "targets", shape [n, 4] with columns steering, throttle, brake and speed.
//
// The read side never loads a whole array: a Group reads only the rows of
// the batch it is asked for, so consumers see bounded memory regardless of
// the container size.
//
// Layout and intended usage:
//
//	datasets.Write(path, set, dtypes.Float32)
//	file, _ := datasets.Open(path)
//	train, _ := file.Group(datasets.TrainGroup, datasets.SteeringOnly)
//	for batch, err := range train.RawBatches(256) { ... }
//
// Batches convert into gomlx tensors with Batch.ToGomlxTensors, and
// TensorDataset wraps a group in the shape gomlx training loops expect.
package datasets

import "iter"

// Group names.
const (
	TrainGroup = "train"
	ValidGroup = "valid"
)

// Array names.
const (
	FeaturesArray = "features"
	TargetsArray  = "targets"
)

// Batcher is the contract training and reporting code consumes. It says
// nothing about how the samples were generated.
type Batcher interface {
	Len() int
	RawBatches(batchSize int) iter.Seq2[*Batch, error]
}
