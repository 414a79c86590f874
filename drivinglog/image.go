package drivinglog

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/Noofbiz/drivingset/errs"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the number of color channels of a decoded image.
const Channels = 3

// Image is a decoded camera frame stored height-major: Pix holds Height rows
// of Width pixels of Channels bytes each, in the channel order of the file.
type Image struct {
	Height int
	Width  int
	Pix    []uint8
}

// NewImage allocates a black image.
func NewImage(height, width int) *Image {
	return &Image{
		Height: height,
		Width:  width,
		Pix:    make([]uint8, height*width*Channels),
	}
}

// Shape returns [Height, Width, Channels].
func (im *Image) Shape() []int {
	return []int{im.Height, im.Width, Channels}
}

// At returns channel c of the pixel at row y, column x.
func (im *Image) At(y, x, c int) uint8 {
	return im.Pix[(y*im.Width+x)*Channels+c]
}

// FlipLR returns a copy of the image mirrored left-right.
func (im *Image) FlipLR() *Image {
	out := NewImage(im.Height, im.Width)
	stride := im.Width * Channels
	for y := 0; y < im.Height; y++ {
		row := im.Pix[y*stride : (y+1)*stride]
		dst := out.Pix[y*stride : (y+1)*stride]
		for x := 0; x < im.Width; x++ {
			copy(dst[(im.Width-1-x)*Channels:(im.Width-x)*Channels], row[x*Channels:(x+1)*Channels])
		}
	}
	return out
}

// FromImage converts an image.Image into an Image, dropping alpha.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dy(), b.Dx())
	idx := 0
	switch src := img.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := src.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				copy(out.Pix[idx:idx+Channels], src.Pix[off+x*4:off+x*4+Channels])
				idx += Channels
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := src.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				copy(out.Pix[idx:idx+Channels], src.Pix[off+x*4:off+x*4+Channels])
				idx += Channels
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				out.Pix[idx] = uint8(r >> 8)
				out.Pix[idx+1] = uint8(g >> 8)
				out.Pix[idx+2] = uint8(bl >> 8)
				idx += Channels
			}
		}
	}
	return out
}

// DecodeImage decodes any registered image format from r.
func DecodeImage(r io.Reader) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// ReadImage decodes the image file at path.
func ReadImage(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "failed to open image: %v", err)
	}
	defer file.Close()

	im, err := DecodeImage(file)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrIO, "failed to decode image %s: %v", path, err)
	}
	return im, nil
}
