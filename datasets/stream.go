package datasets

import (
	"io"
	"iter"
	"math/rand"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Infinite repeats passes over src forever. Every pass starts over in stored
// order and each batch is shuffled in place with rng before it is yielded,
// so a consumer sees freshly mixed batches on every epoch. The sequence
// stops at the first error, or right away when src is empty.
func Infinite(src Batcher, batchSize int, rng *rand.Rand) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		if src.Len() == 0 {
			yield(nil, errors.Wrap(errs.ErrConfiguration, "can't repeat an empty group"))
			return
		}
		for {
			for b, err := range src.RawBatches(batchSize) {
				if err != nil {
					yield(nil, err)
					return
				}
				b.Shuffle(rng)
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

// TensorDataset serves a group as gomlx tensors, one pass per epoch: Yield
// returns io.EOF at the end of a pass and Reset starts the next one. It
// matches gomlx's train.Dataset (Name, Yield, Reset). Close releases the
// pass in progress.
type TensorDataset struct {
	group     *Group
	batchSize int
	rng       *rand.Rand

	next func() (*Batch, error, bool)
	stop func()
}

// NewTensorDataset wraps g. When rng is not nil every batch is shuffled in
// place before conversion.
func NewTensorDataset(g *Group, batchSize int, rng *rand.Rand) *TensorDataset {
	d := &TensorDataset{group: g, batchSize: batchSize, rng: rng}
	d.Reset()
	return d
}

// Name returns the group name.
func (d *TensorDataset) Name() string {
	return d.group.Name()
}

// Yield returns the next batch as ([features], [targets]).
func (d *TensorDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	b, err, ok := d.next()
	if !ok {
		return nil, nil, nil, io.EOF
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if d.rng != nil {
		b.Shuffle(d.rng)
	}
	in, la, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Reset restarts the pass.
func (d *TensorDataset) Reset() {
	if d.stop != nil {
		d.stop()
	}
	d.next, d.stop = iter.Pull2(d.group.RawBatches(d.batchSize))
}

// Close stops the pass in progress; Yield returns io.EOF until the next
// Reset. It is safe to call more than once.
func (d *TensorDataset) Close() error {
	if d.stop != nil {
		d.stop()
	}
	return nil
}
