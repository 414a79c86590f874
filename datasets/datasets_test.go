package datasets

import (
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/drivingset/aggregate"
	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSamples returns n samples of 2x3 images filled with base+i, with
// targets {i/4, 0.5, 0.125, 10+i}.
func makeSamples(n int, base uint8) []samples.Sample {
	out := make([]samples.Sample, n)
	for i := range out {
		im := drivinglog.NewImage(2, 3)
		for j := range im.Pix {
			im.Pix[j] = base + uint8(i)
		}
		out[i] = samples.Sample{
			Feature: im,
			Target:  samples.Target{float64(i) / 4, 0.5, 0.125, float64(10 + i)},
		}
	}
	return out
}

func makeSet(train, valid int) *aggregate.SampleSet {
	return &aggregate.SampleSet{
		Train:         makeSamples(train, 0),
		Valid:         makeSamples(valid, 100),
		ValidFraction: 0.2,
		Seed:          42,
	}
}

func writeSet(t *testing.T, set *aggregate.SampleSet, dt dtypes.DType) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.dlds")
	require.NoError(t, Write(path, set, dt))
	return path
}

func openGroup(t *testing.T, path, name string, fn TargetsFunc) *Group {
	t.Helper()
	f, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	g, err := f.Group(name, fn)
	require.NoError(t, err)
	return g
}

func TestWriteOpen_RoundTrip(t *testing.T) {
	set := makeSet(7, 2)
	path := writeSet(t, set, dtypes.Float64)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, HeaderVersion, f.Header().Version)
	assert.Equal(t, int64(42), f.Header().Seed)
	assert.Equal(t, 0.2, f.Header().ValidFraction)

	for _, tc := range []struct {
		name string
		want []samples.Sample
	}{{TrainGroup, set.Train}, {ValidGroup, set.Valid}} {
		g, err := f.Group(tc.name, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.name, g.Name())
		assert.Equal(t, len(tc.want), g.Len())
		assert.Equal(t, []int{2, 3, 3}, g.FeatureShape())
		assert.Equal(t, dtypes.Float64, g.TargetDType())

		b, err := g.ReadBatch(0, g.Len())
		require.NoError(t, err)
		assert.Equal(t, []int{len(tc.want), 2, 3, 3}, b.FeatureDims)
		for i, s := range tc.want {
			assert.Equal(t, s.Feature.Pix, b.Feature(i).Pix, "%s feature %d", tc.name, i)
			assert.Equal(t, s.Target[:], b.Targets[i], "%s target %d", tc.name, i)
		}
	}
}

func TestWriteOpen_Float32Targets(t *testing.T) {
	set := makeSet(3, 1)
	set.Train[1].Target[0] = 0.1
	g := openGroup(t, writeSet(t, set, dtypes.Float32), TrainGroup, nil)
	assert.Equal(t, dtypes.Float32, g.TargetDType())

	targets, err := g.Targets()
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.InDelta(t, 0.1, targets[1][0], 1e-7)
	assert.Equal(t, 11.0, targets[1][3])
}

func TestWriteOpen_Float16Targets(t *testing.T) {
	set := makeSet(2, 1)
	set.Train[0].Target = samples.Target{-0.7, 0.5, 0.125, 30.19}
	g := openGroup(t, writeSet(t, set, dtypes.Float16), TrainGroup, nil)

	targets, err := g.Targets()
	require.NoError(t, err)
	assert.InDelta(t, -0.7, targets[0][0], 1e-3)
	assert.Equal(t, 0.5, targets[0][1])
	assert.InDelta(t, 30.19, targets[0][3], 0.02)
}

func TestGroup_RawBatches(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(7, 2), dtypes.Float32), TrainGroup, nil)

	sizes := func() []int {
		var out []int
		for b, err := range g.RawBatches(3) {
			require.NoError(t, err)
			out = append(out, b.Len())
		}
		return out
	}
	assert.Equal(t, []int{3, 3, 1}, sizes())
	// Every call is a new pass.
	assert.Equal(t, []int{3, 3, 1}, sizes())

	var order []uint8
	for b, err := range g.RawBatches(2) {
		require.NoError(t, err)
		for i := 0; i < b.Len(); i++ {
			order = append(order, b.Feature(i).Pix[0])
		}
	}
	assert.Equal(t, []uint8{0, 1, 2, 3, 4, 5, 6}, order)
}

func TestGroup_RawBatchesBadSize(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(2, 1), dtypes.Float32), TrainGroup, nil)
	for _, err := range g.RawBatches(0) {
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrConfiguration))
	}
}

func TestGroup_SteeringOnly(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(5, 1), dtypes.Float64), TrainGroup, SteeringOnly)

	b, err := g.ReadBatch(1, 4)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.25}, {0.5}, {0.75}}, b.Targets)

	targets, err := g.Targets()
	require.NoError(t, err)
	assert.Len(t, targets, 5)
	assert.Len(t, targets[0], 1)
}

func TestGroup_EmptyPartition(t *testing.T) {
	path := writeSet(t, makeSet(3, 0), dtypes.Float32)
	g := openGroup(t, path, ValidGroup, nil)
	assert.Equal(t, 0, g.Len())
	for range g.RawBatches(4) {
		t.Fatal("empty group yielded a batch")
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.dlds"))
	assert.True(t, errors.Is(err, errs.ErrIO), "got %v", err)

	bad := filepath.Join(dir, "bad.dlds")
	require.NoError(t, os.WriteFile(bad, []byte("HDF5 not really a dataset file"), 0644))
	_, err = Open(bad)
	assert.True(t, errors.Is(err, errs.ErrFormat), "got %v", err)

	// A valid preamble followed by a header lacking the valid group.
	noValid := writeRaw(t, dir, "novalid.dlds", `{"version":"drivingset.v1","groups":[{"name":"train","arrays":[]}]}`, nil)
	_, err = Open(noValid)
	assert.True(t, errors.Is(err, errs.ErrFormat), "got %v", err)

	// Truncated data.
	good := writeSet(t, makeSet(4, 1), dtypes.Float32)
	raw, err := os.ReadFile(good)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.dlds")
	require.NoError(t, os.WriteFile(truncated, raw[:len(raw)-5], 0644))
	_, err = Open(truncated)
	assert.True(t, errors.Is(err, errs.ErrFormat), "got %v", err)
}

// writeRaw writes a container with the given JSON header and data section.
func writeRaw(t *testing.T, dir, name, header string, data []byte) string {
	t.Helper()
	pre := make([]byte, preambleSize)
	copy(pre, Magic)
	binary.LittleEndian.PutUint32(pre[4:], FormatVersion)
	binary.LittleEndian.PutUint64(pre[8:], uint64(len(header)))
	path := filepath.Join(dir, name)
	raw := append(append(pre, header...), data...)
	require.NoError(t, os.WriteFile(path, raw, 0644))
	return path
}

func TestOpen_HugeDims(t *testing.T) {
	// 2^40 rows of 2^30 * 3 bytes overflow int64 when multiplied out.
	group := func(name string) string {
		return `{"name":"` + name + `","arrays":[` +
			`{"name":"features","dtype":"uint8","dims":[1099511627776,1048576,1024,3],"offset":0},` +
			`{"name":"targets","dtype":"float32","dims":[1099511627776,4],"offset":0}]}`
	}
	header := `{"version":"drivingset.v1","groups":[` + group("train") + `,` + group("valid") + `]}`
	path := writeRaw(t, t.TempDir(), "huge.dlds", header, make([]byte, 64))

	_, err := Open(path)
	assert.True(t, errors.Is(err, errs.ErrFormat), "got %v", err)
}

func TestArrayHeader_Fits(t *testing.T) {
	a := ArrayHeader{Name: TargetsArray, DType: "float32", Dims: []int{3, 4}}
	assert.True(t, a.fits(48))
	assert.False(t, a.fits(47))
	assert.False(t, a.fits(-1))

	empty := ArrayHeader{Name: FeaturesArray, DType: "uint8", Dims: []int{0, 1 << 40, 1 << 40, 3}}
	assert.True(t, empty.fits(0))

	huge := ArrayHeader{Name: FeaturesArray, DType: "uint8", Dims: []int{1 << 40, 1 << 30, 1 << 30, 3}}
	assert.False(t, huge.fits(1<<62))
}

func TestFile_UnknownGroup(t *testing.T) {
	f, err := Open(writeSet(t, makeSet(2, 1), dtypes.Float32))
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Group("test", nil)
	assert.True(t, errors.Is(err, errs.ErrKey), "got %v", err)
}

func TestWrite_Errors(t *testing.T) {
	set := makeSet(2, 1)

	err := Write(filepath.Join(t.TempDir(), "nope", "out.dlds"), set, dtypes.Float32)
	assert.True(t, errors.Is(err, errs.ErrIO), "got %v", err)

	err = Write(filepath.Join(t.TempDir(), "out.dlds"), set, dtypes.Int32)
	assert.True(t, errors.Is(err, errs.ErrConfiguration), "got %v", err)

	set.Valid[0].Feature = drivinglog.NewImage(3, 3)
	err = Write(filepath.Join(t.TempDir(), "out.dlds"), set, dtypes.Float32)
	assert.True(t, errors.Is(err, errs.ErrFormat), "got %v", err)
}

func TestWrite_Overwrites(t *testing.T) {
	path := writeSet(t, makeSet(6, 2), dtypes.Float32)
	require.NoError(t, Write(path, makeSet(2, 1), dtypes.Float32))

	g := openGroup(t, path, TrainGroup, nil)
	assert.Equal(t, 2, g.Len())
}

func TestParseDType(t *testing.T) {
	for name, want := range map[string]dtypes.DType{
		"float16": dtypes.Float16,
		"float32": dtypes.Float32,
		"float64": dtypes.Float64,
	} {
		dt, err := ParseDType(name)
		require.NoError(t, err)
		assert.Equal(t, want, dt)
		assert.Equal(t, name, DTypeName(dt))
	}
	_, err := ParseDType("float8")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	dt, err := ParseTargetDType("float16")
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float16, dt)
	_, err = ParseTargetDType("uint8")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestBatch_ShuffleKeepsPairs(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(6, 1), dtypes.Float64), TrainGroup, nil)
	b, err := g.ReadBatch(0, 6)
	require.NoError(t, err)

	b.Shuffle(rand.New(rand.NewSource(3)))
	seen := map[uint8]bool{}
	for i := 0; i < b.Len(); i++ {
		v := b.Feature(i).Pix[0]
		seen[v] = true
		assert.Equal(t, float64(10+int(v)), b.Targets[i][3], "sample %d", i)
	}
	assert.Len(t, seen, 6)
}

func TestInfinite(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(5, 1), dtypes.Float32), TrainGroup, nil)

	var sizes []int
	counts := map[uint8]int{}
	for b, err := range Infinite(g, 2, rand.New(rand.NewSource(1))) {
		require.NoError(t, err)
		sizes = append(sizes, b.Len())
		for i := 0; i < b.Len(); i++ {
			counts[b.Feature(i).Pix[0]]++
		}
		if len(sizes) == 6 {
			break
		}
	}
	assert.Equal(t, []int{2, 2, 1, 2, 2, 1}, sizes)
	for v := uint8(0); v < 5; v++ {
		assert.Equal(t, 2, counts[v], "sample %d", v)
	}
}

func TestInfinite_Empty(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(2, 0), dtypes.Float32), ValidGroup, nil)
	n := 0
	for _, err := range Infinite(g, 2, rand.New(rand.NewSource(1))) {
		assert.True(t, errors.Is(err, errs.ErrConfiguration))
		n++
	}
	assert.Equal(t, 1, n)
}

func TestTensorDataset(t *testing.T) {
	g := openGroup(t, writeSet(t, makeSet(5, 1), dtypes.Float32), TrainGroup, SteeringOnly)
	ds := NewTensorDataset(g, 4, nil)
	assert.Equal(t, TrainGroup, ds.Name())

	_, inputs, labels, err := ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3, 3}, inputs[0].Shape().Dimensions)
	assert.Equal(t, dtypes.Uint8, inputs[0].DType())
	assert.Equal(t, []int{4, 1}, labels[0].Shape().Dimensions)

	_, inputs, _, err = ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, 1, inputs[0].Shape().Dimensions[0])

	_, _, _, err = ds.Yield()
	assert.Equal(t, io.EOF, err)

	ds.Reset()
	_, _, _, err = ds.Yield()
	assert.NoError(t, err)

	require.NoError(t, ds.Close())
	_, _, _, err = ds.Yield()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, ds.Close())
}
