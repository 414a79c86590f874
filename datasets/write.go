package datasets

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/Noofbiz/drivingset/aggregate"
	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Write stores both partitions of set at path, replacing any existing file.
// Targets are cast to targetDType, which must be a float dtype. The parent
// directory must exist. A failure part way leaves an unusable file behind.
func Write(path string, set *aggregate.SampleSet, targetDType dtypes.DType) error {
	if !isTargetDType(targetDType) {
		return errors.Wrapf(errs.ErrConfiguration, "targets dtype must be float16, float32 or float64, got %s", DTypeName(targetDType))
	}
	if parent := filepath.Dir(path); !isDir(parent) {
		return errors.Wrapf(errs.ErrIO, "output folder doesn't exist: %s", parent)
	}

	height, width, err := featureSize(set)
	if err != nil {
		return err
	}
	header := layout(set, height, width, targetDType)

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to create %s: %v", path, err)
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, 1<<20)
	if err := writePreamble(w, header); err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to write header of %s: %v", path, err)
	}
	for _, part := range [][]samples.Sample{set.Train, set.Valid} {
		if err := writeFeatures(w, part); err != nil {
			return errors.Wrapf(errs.ErrIO, "failed to write features to %s: %v", path, err)
		}
		if err := writeTargets(w, part, targetDType); err != nil {
			return errors.Wrapf(errs.ErrIO, "failed to write targets to %s: %v", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to write %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(errs.ErrIO, "failed to close %s: %v", path, err)
	}
	return nil
}

// featureSize returns the common image size of every sample.
func featureSize(set *aggregate.SampleSet) (height, width int, err error) {
	first := true
	for _, part := range [][]samples.Sample{set.Train, set.Valid} {
		for i, s := range part {
			if s.Feature == nil {
				return 0, 0, errors.Wrapf(errs.ErrFormat, "sample %d has no feature", i)
			}
			if len(s.Feature.Pix) != s.Feature.Height*s.Feature.Width*drivinglog.Channels {
				return 0, 0, errors.Wrapf(errs.ErrFormat, "sample %d: buffer doesn't match %dx%d", i, s.Feature.Height, s.Feature.Width)
			}
			if first {
				height, width, first = s.Feature.Height, s.Feature.Width, false
				continue
			}
			if s.Feature.Height != height || s.Feature.Width != width {
				return 0, 0, errors.Wrapf(errs.ErrFormat, "sample %d is %dx%d, expected %dx%d",
					i, s.Feature.Height, s.Feature.Width, height, width)
			}
		}
	}
	return height, width, nil
}

// layout assigns every array its offset, in write order: train features,
// train targets, valid features, valid targets.
func layout(set *aggregate.SampleSet, height, width int, targetDType dtypes.DType) Header {
	header := Header{Version: HeaderVersion, Seed: set.Seed, ValidFraction: set.ValidFraction}
	var offset int64
	for _, part := range []struct {
		name string
		n    int
	}{{TrainGroup, len(set.Train)}, {ValidGroup, len(set.Valid)}} {
		features := ArrayHeader{
			Name:   FeaturesArray,
			DType:  DTypeName(dtypes.Uint8),
			Dims:   []int{part.n, height, width, drivinglog.Channels},
			Offset: offset,
		}
		offset += features.Size()
		targets := ArrayHeader{
			Name:   TargetsArray,
			DType:  DTypeName(targetDType),
			Dims:   []int{part.n, samples.NumTargets},
			Offset: offset,
		}
		offset += targets.Size()
		header.Groups = append(header.Groups, GroupHeader{
			Name:   part.name,
			Arrays: []ArrayHeader{features, targets},
		})
	}
	return header
}

func writePreamble(w io.Writer, header Header) error {
	buf, err := json.Marshal(header)
	if err != nil {
		return err
	}
	pre := make([]byte, preambleSize)
	copy(pre, Magic)
	binary.LittleEndian.PutUint32(pre[4:], FormatVersion)
	binary.LittleEndian.PutUint64(pre[8:], uint64(len(buf)))
	if _, err := w.Write(pre); err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func writeFeatures(w io.Writer, part []samples.Sample) error {
	for _, s := range part {
		if _, err := w.Write(s.Feature.Pix); err != nil {
			return err
		}
	}
	return nil
}

func writeTargets(w io.Writer, part []samples.Sample, dt dtypes.DType) error {
	size := dtypeSize(dt)
	row := make([]byte, size*samples.NumTargets)
	for _, s := range part {
		for j, v := range s.Target {
			putFloat(row[j*size:], dt, v)
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
