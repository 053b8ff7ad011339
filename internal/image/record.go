// Package image provides scan loading and the per-image record that owns the
// original and working pixel buffers.
package image

import (
	"errors"
	"fmt"
	goimage "image"
	"image/draw"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spakin/netpbm"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrEmptyImage is returned when a file decodes to a zero-sized image.
var ErrEmptyImage = errors.New("empty image")

// Record is one loaded scan. Original is an 8-bit grayscale Mat that is never
// written after Load; Working is a BGR copy re-derived from Original before
// every annotation pass.
type Record struct {
	ID       string // Stable identifier: the path as listed
	Name     string // Base file name, used for display
	Original gocv.Mat
	Working  gocv.Mat
}

// NewRecord wraps an already-decoded grayscale Mat. The record takes
// ownership of gray and closes it in Close.
func NewRecord(id string, gray gocv.Mat) (*Record, error) {
	if gray.Empty() {
		return nil, fmt.Errorf("%s: %w", id, ErrEmptyImage)
	}
	if gray.Channels() != 1 {
		conv := gocv.NewMat()
		gocv.CvtColor(gray, &conv, gocv.ColorBGRToGray)
		gray.Close()
		gray = conv
	}
	r := &Record{
		ID:       id,
		Name:     filepath.Base(id),
		Original: gray,
		Working:  gocv.NewMat(),
	}
	r.ResetWorking()
	return r, nil
}

// Load decodes an image file, applies EXIF orientation, and converts it to
// grayscale.
func Load(path string) (*Record, error) {
	img, err := decode(path)
	if err != nil {
		return nil, err
	}
	gray := toGray(img)
	if gray.Rect.Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyImage)
	}
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", path, err)
	}
	return NewRecord(path, mat)
}

func decode(path string) (goimage.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pgm", ".ppm", ".pbm":
		f, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := netpbm.Decode(f, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	default:
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}
}

// toGray converts any image to an origin-anchored 8-bit gray image.
func toGray(img goimage.Image) *goimage.Gray {
	if g, ok := img.(*goimage.Gray); ok && g.Rect.Min == (goimage.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := goimage.NewGray(goimage.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// ResetWorking discards any annotations and rebuilds Working from Original.
func (r *Record) ResetWorking() {
	r.Working.Close()
	r.Working = gocv.NewMat()
	gocv.CvtColor(r.Original, &r.Working, gocv.ColorGrayToBGR)
}

// Width returns the image width in pixels.
func (r *Record) Width() int { return r.Original.Cols() }

// Height returns the image height in pixels.
func (r *Record) Height() int { return r.Original.Rows() }

// Close releases both buffers.
func (r *Record) Close() error {
	if err := r.Working.Close(); err != nil {
		return err
	}
	return r.Original.Close()
}
