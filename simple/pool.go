package simple

import (
	"fmt"

	"github.com/Noofbiz/drivingset/datasets"
	"github.com/Noofbiz/drivingset/drivinglog"
)

// Default pooling grid, applied after cropping.
const (
	DefaultPoolRows = 8
	DefaultPoolCols = 16
)

// Pooler turns a camera frame into a small input vector: rows are cropped
// from the top (sky) and the bottom (hood), the rest is converted to
// grayscale, averaged over a Rows x Cols grid and normalized to x/255 - 0.5.
type Pooler struct {
	Rows, Cols          int
	CropTop, CropBottom int
}

// DefaultPooler pools the whole frame into the default grid.
func DefaultPooler() Pooler {
	return Pooler{Rows: DefaultPoolRows, Cols: DefaultPoolCols}
}

// Dim is the length of the pooled vectors.
func (p Pooler) Dim() int {
	return p.Rows * p.Cols
}

// Pool converts one frame.
func (p Pooler) Pool(im *drivinglog.Image) ([]float32, error) {
	height := im.Height - p.CropTop - p.CropBottom
	if p.Rows <= 0 || p.Cols <= 0 || p.CropTop < 0 || p.CropBottom < 0 {
		return nil, fmt.Errorf("invalid pooling %+v", p)
	}
	if height < p.Rows || im.Width < p.Cols {
		return nil, fmt.Errorf("can't pool a %dx%d frame cropped by %d/%d into %dx%d",
			im.Height, im.Width, p.CropTop, p.CropBottom, p.Rows, p.Cols)
	}
	out := make([]float32, p.Dim())
	for r := 0; r < p.Rows; r++ {
		y0, y1 := p.CropTop+r*height/p.Rows, p.CropTop+(r+1)*height/p.Rows
		for c := 0; c < p.Cols; c++ {
			x0, x1 := c*im.Width/p.Cols, (c+1)*im.Width/p.Cols
			var sum float32
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += 0.299*float32(im.At(y, x, 0)) + 0.587*float32(im.At(y, x, 1)) + 0.114*float32(im.At(y, x, 2))
				}
			}
			mean := sum / float32((y1-y0)*(x1-x0))
			out[r*p.Cols+c] = mean/255 - 0.5
		}
	}
	return out, nil
}

// MemoryDataset holds pooled inputs and labels in memory.
type MemoryDataset struct {
	Inputs [][]float32
	Labels [][]float32
}

func (d *MemoryDataset) Len() int { return len(d.Inputs) }

func (d *MemoryDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	in := make([][]float32, len(indices))
	la := make([][]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.Inputs) {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.Inputs))
		}
		in[i] = d.Inputs[idx]
		la[i] = d.Labels[idx]
	}
	return in, la, nil
}

// LoadGroup pools every sample of src, reading it batchSize rows at a time
// so only the pooled vectors stay in memory.
func LoadGroup(src datasets.Batcher, pool Pooler, batchSize int) (*MemoryDataset, error) {
	ds := &MemoryDataset{
		Inputs: make([][]float32, 0, src.Len()),
		Labels: make([][]float32, 0, src.Len()),
	}
	for b, err := range src.RawBatches(batchSize) {
		if err != nil {
			return nil, err
		}
		for i := 0; i < b.Len(); i++ {
			in, err := pool.Pool(b.Feature(i))
			if err != nil {
				return nil, err
			}
			la := make([]float32, len(b.Targets[i]))
			for j, v := range b.Targets[i] {
				la[j] = float32(v)
			}
			ds.Inputs = append(ds.Inputs, in)
			ds.Labels = append(ds.Labels, la)
		}
	}
	return ds, nil
}
