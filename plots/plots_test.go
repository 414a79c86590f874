package plots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot/plotter"
)

func requireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSteeringHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sahist.png")
	train := []float64{-0.5, -0.2, 0, 0, 0.1, 0.2, 0.7}
	valid := []float64{0, 0.3}
	require.NoError(t, SteeringHistogram(path, train, valid, DefaultBins))
	requireFile(t, path)

	// An empty partition is left out.
	empty := filepath.Join(t.TempDir(), "empty.svg")
	require.NoError(t, SteeringHistogram(empty, train, nil, 5))
	requireFile(t, empty)

	assert.Error(t, SteeringHistogram(path, train, valid, 0))
}

func TestLossCurves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvloss.png")
	require.NoError(t, LossCurves(path, []float64{0.3, 0.2, 0.1}, []float64{0.35, 0.3, 0.28}))
	requireFile(t, path)
}

func TestTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.png")
	require.NoError(t, Trajectory(path, []r2.Vec{{}, {X: 1}, {X: 2, Y: 0.5}}))
	requireFile(t, path)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{-1, 0, 1, 2})
	assert.Equal(t, 4, s.N)
	assert.InDelta(t, 0.5, s.Mean, 1e-12)
	assert.Equal(t, -1.0, s.Min)
	assert.Equal(t, 2.0, s.Max)
	assert.InDelta(t, 1.2909944, s.StdDev, 1e-6)

	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, 0.0, Summarize([]float64{3}).StdDev)
}

func TestAutoRange(t *testing.T) {
	xmin, xmax, ymin, ymax := autoRange(nil)
	assert.Equal(t, []float64{-1, 1, -1, 1}, []float64{xmin, xmax, ymin, ymax})

	xmin, xmax, ymin, ymax = autoRange(plotter.XYs{{X: 0, Y: 5}, {X: 10, Y: 5}})
	assert.InDelta(t, -0.6, xmin, 1e-12)
	assert.InDelta(t, 10.6, xmax, 1e-12)
	assert.Equal(t, 4.0, ymin)
	assert.Equal(t, 6.0, ymax)
}
