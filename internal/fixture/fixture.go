// Package fixture builds driving log folders for tests.
package fixture

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/drivingset/drivinglog"
	"github.com/stretchr/testify/require"
)

// Camera ids, stored in the red channel of every fixture image.
const (
	Left   = 1
	Center = 2
	Right  = 3
)

// Image sizes of the fixture cameras.
const (
	Height = 2
	Width  = 4
)

// WriteCamera writes a Height x Width PNG whose pixels encode the camera
// (red), the entry (green) and the column (blue).
func WriteCamera(t testing.TB, path string, camera, entry uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.Set(x, y, color.RGBA{R: camera, G: entry, B: uint8(x), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// WriteLog creates a driving log folder under a fresh temp dir with one
// entry per steering angle. Entry i has throttle 0.5, brake 0.125 and speed
// 10+i; its filenames are recorded under a foreign /rec/IMG prefix.
func WriteLog(t testing.TB, steering []float64) string {
	t.Helper()
	dir := t.TempDir()
	img := filepath.Join(dir, drivinglog.ImgFolderName)
	require.NoError(t, os.Mkdir(img, 0755))

	var rows []string
	for i, s := range steering {
		c, l, r := fmt.Sprintf("center_%d.png", i), fmt.Sprintf("left_%d.png", i), fmt.Sprintf("right_%d.png", i)
		WriteCamera(t, filepath.Join(img, c), Center, uint8(i))
		WriteCamera(t, filepath.Join(img, l), Left, uint8(i))
		WriteCamera(t, filepath.Join(img, r), Right, uint8(i))
		rows = append(rows, fmt.Sprintf("/rec/IMG/%s,/rec/IMG/%s,/rec/IMG/%s,%g,0.5,0.125,%d", c, l, r, s, 10+i))
	}
	content := strings.Join(rows, "\n")
	if len(rows) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, drivinglog.CSVFileName), []byte(content), 0644))
	return dir
}

// OpenLog writes a driving log with WriteLog and opens it.
func OpenLog(t testing.TB, steering []float64) *drivinglog.DrivingLog {
	t.Helper()
	log, err := drivinglog.Open(WriteLog(t, steering))
	require.NoError(t, err)
	return log
}

// Camera returns the camera id of a fixture image.
func Camera(im *drivinglog.Image) uint8 { return im.At(0, 0, 0) }

// Entry returns the entry index of a fixture image.
func Entry(im *drivinglog.Image) uint8 { return im.At(0, 0, 1) }
