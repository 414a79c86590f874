package datasets

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"iter"
	"os"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// maxHeaderSize bounds the JSON header so a corrupt length can't trigger a
// huge allocation.
const maxHeaderSize = 1 << 20

// TargetsFunc projects the stored [n, 4] targets of a batch, e.g. to keep
// only the steering column. It must return one row per input row.
type TargetsFunc func(targets [][]float64) [][]float64

// Columns returns a TargetsFunc keeping the given columns, in order.
func Columns(cols ...int) TargetsFunc {
	return func(targets [][]float64) [][]float64 {
		out := make([][]float64, len(targets))
		flat := make([]float64, len(targets)*len(cols))
		for i, row := range targets {
			out[i] = flat[i*len(cols) : (i+1)*len(cols) : (i+1)*len(cols)]
			for j, c := range cols {
				out[i][j] = row[c]
			}
		}
		return out
	}
}

// SteeringOnly turns the 4-target store into a single-target regression
// source.
var SteeringOnly = Columns(samples.ColSteering)

// File is an open container.
type File struct {
	path      string
	file      *os.File
	header    Header
	dataStart int64
}

// Open reads and validates the header of the container at path.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "failed to open dataset: %v", err)
	}
	f := &File{path: path, file: file}
	if err := f.readHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}

// Path returns the container path.
func (f *File) Path() string {
	return f.path
}

// Header returns the decoded header.
func (f *File) Header() Header {
	return f.header
}

func (f *File) readHeader() error {
	pre := make([]byte, preambleSize)
	if _, err := io.ReadFull(f.file, pre); err != nil {
		return errors.Wrapf(errs.ErrFormat, "%s: truncated preamble: %v", f.path, err)
	}
	if string(pre[:4]) != Magic {
		return errors.Wrapf(errs.ErrFormat, "%s: not a dataset file", f.path)
	}
	if v := binary.LittleEndian.Uint32(pre[4:]); v != FormatVersion {
		return errors.Wrapf(errs.ErrFormat, "%s: unsupported format version %d", f.path, v)
	}
	n := binary.LittleEndian.Uint64(pre[8:])
	if n > maxHeaderSize {
		return errors.Wrapf(errs.ErrFormat, "%s: header too large (%d bytes)", f.path, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.file, buf); err != nil {
		return errors.Wrapf(errs.ErrFormat, "%s: truncated header: %v", f.path, err)
	}
	if err := json.Unmarshal(buf, &f.header); err != nil {
		return errors.Wrapf(errs.ErrFormat, "%s: bad header: %v", f.path, err)
	}
	f.dataStart = preambleSize + int64(n)

	info, err := f.file.Stat()
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "%s: %v", f.path, err)
	}
	for _, name := range []string{TrainGroup, ValidGroup} {
		if _, _, err := f.arrays(name, info.Size()); err != nil {
			return err
		}
	}
	return nil
}

// arrays finds and checks the two arrays of a group against the file size.
func (f *File) arrays(name string, fileSize int64) (features, targets ArrayHeader, err error) {
	g, ok := f.header.group(name)
	if !ok {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: missing group %q", f.path, name)
	}
	features, ok = g.array(FeaturesArray)
	if !ok {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: group %q has no %s", f.path, name, FeaturesArray)
	}
	targets, ok = g.array(TargetsArray)
	if !ok {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: group %q has no %s", f.path, name, TargetsArray)
	}

	if features.DType != DTypeName(dtypes.Uint8) || len(features.Dims) != 4 || features.Dims[3] != drivinglog.Channels {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: %s/%s must be uint8 [n, H, W, 3], got %s %v",
			f.path, name, FeaturesArray, features.DType, features.Dims)
	}
	dt, err := ParseDType(targets.DType)
	if err != nil || !isTargetDType(dt) || len(targets.Dims) != 2 || targets.Dims[1] != samples.NumTargets {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: %s/%s must be float [n, %d], got %s %v",
			f.path, name, TargetsArray, samples.NumTargets, targets.DType, targets.Dims)
	}
	if features.Rows() != targets.Rows() {
		return features, targets, errors.Wrapf(errs.ErrFormat, "%s: %s has %d features but %d targets",
			f.path, name, features.Rows(), targets.Rows())
	}
	for _, a := range []ArrayHeader{features, targets} {
		for _, d := range a.Dims {
			if d < 0 {
				return features, targets, errors.Wrapf(errs.ErrFormat, "%s: %s/%s has negative dims %v", f.path, name, a.Name, a.Dims)
			}
		}
		if a.Offset < 0 || a.Offset > fileSize || !a.fits(fileSize-f.dataStart-a.Offset) {
			return features, targets, errors.Wrapf(errs.ErrFormat, "%s: %s/%s extends past end of file", f.path, name, a.Name)
		}
	}
	return features, targets, nil
}

// Group opens the named group ("train" or "valid"). targetsFn is applied to
// the targets of every batch read from it; nil keeps all four columns.
func (f *File) Group(name string, targetsFn TargetsFunc) (*Group, error) {
	if _, ok := f.header.group(name); !ok {
		return nil, errors.Wrapf(errs.ErrKey, "no group %q in %s", name, f.path)
	}
	info, err := f.file.Stat()
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "%s: %v", f.path, err)
	}
	features, targets, err := f.arrays(name, info.Size())
	if err != nil {
		return nil, err
	}
	dt, _ := ParseDType(targets.DType)
	return &Group{
		file:        f,
		name:        name,
		features:    features,
		targets:     targets,
		targetDType: dt,
		targetsFn:   targetsFn,
	}, nil
}

// Group is one partition of a container.
type Group struct {
	file        *File
	name        string
	features    ArrayHeader
	targets     ArrayHeader
	targetDType dtypes.DType
	targetsFn   TargetsFunc
}

// Name returns "train" or "valid".
func (g *Group) Name() string {
	return g.name
}

// Len returns the number of samples of the group.
func (g *Group) Len() int {
	return g.features.Rows()
}

// FeatureShape returns [H, W, 3].
func (g *Group) FeatureShape() []int {
	return append([]int(nil), g.features.Dims[1:]...)
}

// TargetDType returns the stored dtype of the targets.
func (g *Group) TargetDType() dtypes.DType {
	return g.targetDType
}

// RawBatches yields consecutive batches of batchSize samples in stored
// order; the last one may be shorter. Every call starts a fresh pass. The
// order is never randomized: callers wanting shuffled epochs wrap it, see
// Infinite.
func (g *Group) RawBatches(batchSize int) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		if batchSize <= 0 {
			yield(nil, errors.Wrapf(errs.ErrConfiguration, "batch size must be positive, got %d", batchSize))
			return
		}
		n := g.Len()
		for start := 0; start < n; start += batchSize {
			b, err := g.ReadBatch(start, min(start+batchSize, n))
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

// ReadBatch reads samples [start, end).
func (g *Group) ReadBatch(start, end int) (*Batch, error) {
	if start < 0 || end > g.Len() || start > end {
		return nil, errors.Errorf("batch [%d, %d) out of range [0, %d)", start, end, g.Len())
	}
	n := end - start

	features := make([]uint8, int64(n)*g.features.RowSize())
	if err := g.readRows(g.features, start, features); err != nil {
		return nil, err
	}
	targets, err := g.readTargets(start, end)
	if err != nil {
		return nil, err
	}
	if g.targetsFn != nil {
		targets = g.targetsFn(targets)
	}

	dims := append([]int{n}, g.features.Dims[1:]...)
	return &Batch{Features: features, FeatureDims: dims, Targets: targets}, nil
}

// Targets reads the targets of the whole group without touching the
// features, with the group's projection applied.
func (g *Group) Targets() ([][]float64, error) {
	targets, err := g.readTargets(0, g.Len())
	if err != nil {
		return nil, err
	}
	if g.targetsFn != nil {
		targets = g.targetsFn(targets)
	}
	return targets, nil
}

func (g *Group) readTargets(start, end int) ([][]float64, error) {
	n := end - start
	raw := make([]byte, int64(n)*g.targets.RowSize())
	if err := g.readRows(g.targets, start, raw); err != nil {
		return nil, err
	}
	size := dtypeSize(g.targetDType)
	cols := g.targets.Dims[1]
	flat := make([]float64, n*cols)
	for i := range flat {
		flat[i] = getFloat(raw[i*size:], g.targetDType)
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}

func (g *Group) readRows(a ArrayHeader, start int, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	off := g.file.dataStart + a.Offset + int64(start)*a.RowSize()
	if _, err := g.file.file.ReadAt(dst, off); err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to read %s/%s of %s: %v", g.name, a.Name, g.file.path, err)
	}
	return nil
}
