package aggregate

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/Noofbiz/drivingset/errs"
	"github.com/Noofbiz/drivingset/internal/fixture"
	"github.com/Noofbiz/drivingset/samples"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// key identifies a sample by its image content and target.
func key(s samples.Sample) string {
	return fmt.Sprintf("cam=%d entry=%d col0=%d target=%v",
		fixture.Camera(s.Feature), fixture.Entry(s.Feature), s.Feature.At(0, 0, 2), s.Target)
}

func keys(ss []samples.Sample) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = key(s)
	}
	return out
}

func sorted(ks []string) []string {
	out := append([]string(nil), ks...)
	sort.Strings(out)
	return out
}

// twoLogs returns a flip-augmented log with 5 entries (20 samples) and a
// plain one with 6 entries (18 samples) whose steering angles differ.
func twoLogs(t *testing.T) []Source {
	a := fixture.OpenLog(t, []float64{0.1, -0.9, 0.3, 0.4, 0.5})
	b := fixture.OpenLog(t, []float64{0.01, 0.02, 0.03, 0.04, 0.05, 0.06})
	return []Source{
		{Log: a, Policy: samples.NewLCR(true)},
		{Log: b, Policy: samples.NewLCR(false)},
	}
}

func generate(t *testing.T, src Source) []samples.Sample {
	ss, err := src.Policy.Generate(src.Log)
	require.NoError(t, err)
	return ss
}

func TestAggregate_Deterministic(t *testing.T) {
	sources := twoLogs(t)
	opts := Options{Shuffle: true, ValidFraction: 0.2, Seed: 7}

	first, err := Aggregate(sources, opts)
	require.NoError(t, err)
	second, err := Aggregate(sources, opts)
	require.NoError(t, err)

	assert.Equal(t, keys(first.Train), keys(second.Train))
	assert.Equal(t, keys(first.Valid), keys(second.Valid))
	assert.Equal(t, 0.2, first.ValidFraction)
	assert.Equal(t, int64(7), first.Seed)

	opts.Seed = 8
	other, err := Aggregate(sources, opts)
	require.NoError(t, err)
	assert.NotEqual(t, keys(first.Train), keys(other.Train))
}

func TestAggregate_ConservesSamples(t *testing.T) {
	sources := twoLogs(t)

	set, err := Aggregate(sources, DefaultOptions())
	require.NoError(t, err)

	n := 0
	var all []string
	for _, src := range sources {
		entries, err := src.Log.Entries()
		require.NoError(t, err)
		n += len(entries) * src.Policy.PerEntry()
		all = append(all, keys(generate(t, src))...)
	}
	require.Equal(t, 38, n)
	assert.Equal(t, n, set.Len())
	assert.Len(t, set.Train, 16+14)
	assert.Len(t, set.Valid, 4+4)

	union := append(keys(set.Train), keys(set.Valid)...)
	assert.Equal(t, sorted(all), sorted(union))
}

func TestAggregate_EveryLogInBothPartitions(t *testing.T) {
	sources := twoLogs(t)

	set, err := Aggregate(sources, Options{Shuffle: true, ValidFraction: 0.2, Seed: 1})
	require.NoError(t, err)

	fromA := func(s samples.Sample) bool { return uncorrected(s) > 0.09 }
	countA := func(ss []samples.Sample) (a, b int) {
		for _, s := range ss {
			if fromA(s) {
				a++
			} else {
				b++
			}
		}
		return a, b
	}
	ta, tb := countA(set.Train)
	va, vb := countA(set.Valid)
	assert.Equal(t, 16, ta)
	assert.Equal(t, 14, tb)
	assert.Equal(t, 4, va)
	assert.Equal(t, 4, vb)
}

// uncorrected returns |steering| with the camera correction removed. It tells
// the twoLogs fixtures apart: log A entries are at least 0.1 away from
// center, log B entries at most 0.06.
func uncorrected(s samples.Sample) float64 {
	v := s.Target[samples.ColSteering]
	switch fixture.Camera(s.Feature) {
	case fixture.Left:
		v -= samples.DefaultLeftV
	case fixture.Right:
		v -= samples.DefaultRightV
	}
	if v < 0 {
		v = -v
	}
	return v
}

func TestAggregate_NoShuffleKeepsOrder(t *testing.T) {
	sources := twoLogs(t)

	set, err := Aggregate(sources, Options{Shuffle: false, ValidFraction: 0.2, Seed: 3})
	require.NoError(t, err)

	a := keys(generate(t, sources[0]))
	b := keys(generate(t, sources[1]))
	assert.Equal(t, append(append([]string{}, a[:16]...), b[:14]...), keys(set.Train))
	assert.Equal(t, append(append([]string{}, a[16:]...), b[14:]...), keys(set.Valid))
}

func TestAggregate_InvalidFraction(t *testing.T) {
	for _, f := range []float64{0, 1, -0.1, 1.5} {
		_, err := Aggregate(nil, Options{ValidFraction: f})
		assert.True(t, errors.Is(err, errs.ErrConfiguration), "fraction %v", f)
	}
}

func TestAggregate_EmptyLogIsNotAnError(t *testing.T) {
	empty := fixture.OpenLog(t, nil)
	full := fixture.OpenLog(t, []float64{0.1, 0.2, 0.3, 0.4})

	set, err := Aggregate([]Source{
		{Log: empty, Policy: samples.NewLCR(true)},
		{Log: full, Policy: samples.Center{}},
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, set.Train, 3)
	assert.Len(t, set.Valid, 1)
}

func TestAggregate_ParseErrorSurfaces(t *testing.T) {
	dir := fixture.WriteLog(t, []float64{0.1})
	log, err := drivinglog.Open(dir)
	require.NoError(t, err)
	writeBadRow(t, log.CSVPath())

	_, err = Aggregate([]Source{{Log: log, Policy: samples.Center{}}}, DefaultOptions())
	assert.True(t, errors.Is(err, errs.ErrParse))
}

func TestValidCount(t *testing.T) {
	cases := []struct {
		n        int
		fraction float64
		want     int
	}{
		{10, 0.2, 2},
		{10, 0.7, 7},
		{10, 0.3, 3},
		{7, 0.2, 2},
		{20, 0.2, 4},
		{18, 0.2, 4},
		{1, 0.2, 1},
		{0, 0.2, 0},
		{3, 0.5, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ValidCount(c.n, c.fraction), "n=%d fraction=%v", c.n, c.fraction)
	}
}

func TestSplit_TenSamples(t *testing.T) {
	log := fixture.OpenLog(t, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9})
	ss, err := samples.Center{}.Generate(log)
	require.NoError(t, err)

	train, valid := Split(ss, 0.2)
	require.Len(t, train, 8)
	require.Len(t, valid, 2)
	assert.Equal(t, keys(ss[:8]), keys(train))
	assert.Equal(t, keys(ss[8:]), keys(valid))

	// appending to train must not clobber valid
	_ = append(train, samples.Sample{})
	assert.Equal(t, keys(ss[8:]), keys(valid))
}

func TestShuffle_KeepsPairs(t *testing.T) {
	log := fixture.OpenLog(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	ss, err := samples.NewLCR(true).Generate(log)
	require.NoError(t, err)
	before := keys(ss)

	Shuffle(ss, rand.New(rand.NewSource(5)))
	assert.NotEqual(t, before, keys(ss))
	assert.Equal(t, sorted(before), sorted(keys(ss)))
}
