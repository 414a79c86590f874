package datasets

import (
	"fmt"
	"math/rand"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batch is a run of consecutive samples of a group. Features is the flat
// uint8 image stack described by FeatureDims ([n, H, W, 3]); Targets has one
// row per sample.
type Batch struct {
	Features    []uint8
	FeatureDims []int
	Targets     [][]float64
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	return len(b.Targets)
}

func (b *Batch) featureSize() int {
	size := 1
	for _, d := range b.FeatureDims[1:] {
		size *= d
	}
	return size
}

// Feature returns sample i as an image sharing the batch buffer.
func (b *Batch) Feature(i int) *drivinglog.Image {
	size := b.featureSize()
	return &drivinglog.Image{
		Height: b.FeatureDims[1],
		Width:  b.FeatureDims[2],
		Pix:    b.Features[i*size : (i+1)*size : (i+1)*size],
	}
}

// Shuffle permutes the samples of the batch in place, keeping every feature
// with its target.
func (b *Batch) Shuffle(rng *rand.Rand) {
	size := b.featureSize()
	tmp := make([]uint8, size)
	rng.Shuffle(b.Len(), func(i, j int) {
		fi := b.Features[i*size : (i+1)*size]
		fj := b.Features[j*size : (j+1)*size]
		copy(tmp, fi)
		copy(fi, fj)
		copy(fj, tmp)
		b.Targets[i], b.Targets[j] = b.Targets[j], b.Targets[i]
	})
}

// ToGomlxTensors converts the batch into a uint8 features tensor shaped
// like FeatureDims and a float32 targets tensor of shape [n, columns].
func (b *Batch) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	n := b.Len()
	cols := 0
	if n > 0 {
		cols = len(b.Targets[0])
	}
	flat := make([]float32, n*cols)
	for i, row := range b.Targets {
		if len(row) != cols {
			return nil, nil, fmt.Errorf("inconsistent target dimensions at example %d: expected %d, got %d",
				i, cols, len(row))
		}
		for j, v := range row {
			flat[i*cols+j] = float32(v)
		}
	}
	features := tensors.FromFlatDataAndDimensions(b.Features, b.FeatureDims...)
	targets := tensors.FromFlatDataAndDimensions(flat, n, cols)
	return features, targets, nil
}
