// Package digits splits a detected region into glyphs, classifies each one
// and joins the predictions into a single shelf code.
package digits

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"shelfscan/internal/classifier"
	"shelfscan/internal/logging"
	"shelfscan/internal/params"
	"shelfscan/internal/region"
	"shelfscan/pkg/geometry"

	"gocv.io/x/gocv"
)

const (
	// RegionPadY is added above and below each kept region before cropping.
	RegionPadY = 5
	// BorderPad is the constant border added around a region before glyph
	// contours are extracted, and the margin kept around each glyph.
	BorderPad = 10
	// MinGlyphSide is the size a glyph box must exceed on at least one side.
	MinGlyphSide = 5
)

// RegionHook receives each inverted region crop before segmentation. The
// Mat is only valid for the duration of the call.
type RegionHook func(index int, box geometry.RectInt, crop gocv.Mat)

// Segmenter turns kept regions into integers using a classifier.
type Segmenter struct {
	classifier classifier.Classifier
	order      SortMethod
	size       int
	onRegion   RegionHook
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithOrder overrides the glyph ordering (left-to-right by default).
func WithOrder(m SortMethod) Option {
	return func(s *Segmenter) { s.order = m }
}

// WithRegionHook registers a callback for every region crop.
func WithRegionHook(h RegionHook) Option {
	return func(s *Segmenter) { s.onRegion = h }
}

// NewSegmenter creates a segmenter that invokes c for every glyph.
func NewSegmenter(c classifier.Classifier, opts ...Option) *Segmenter {
	s := &Segmenter{
		classifier: c,
		order:      LeftToRight,
		size:       classifier.InputSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ExtractNumbers finds the kept regions of gray and reads one integer from
// each. Regions without any glyph are skipped. The result lists the last
// discovered region first.
func (s *Segmenter) ExtractNumbers(gray gocv.Mat, p params.Set) ([]int, error) {
	boxes := region.FindBoxes(gray, p)

	var numbers []int
	for i, b := range boxes {
		crop := b.Expand(0, RegionPadY).Clamp(gray.Cols(), gray.Rows())
		if crop.Empty() {
			continue
		}

		roi := gray.Region(crop.Rectangle())
		inverted := gocv.NewMat()
		gocv.BitwiseNot(roi, &inverted)
		roi.Close()

		if s.onRegion != nil {
			s.onRegion(i, crop, inverted)
		}

		n, ok, err := s.SegmentDigits(inverted)
		inverted.Close()
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		if ok {
			numbers = append(numbers, n)
		}
	}

	reverse(numbers)
	return numbers, nil
}

// SegmentDigits reads one integer from an inverted (bright strokes) region.
// ok is false when no glyph passes the size filter.
func (s *Segmenter) SegmentDigits(roi gocv.Mat) (value int, ok bool, err error) {
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(roi, &padded, BorderPad, BorderPad, BorderPad, BorderPad,
		gocv.BorderConstant, color.RGBA{})

	// The crop is already binary-like after inversion; any non-zero pixel
	// counts as ink.
	boxes := region.ContourBoxes(padded)
	SortBoxes(boxes, s.order)

	var sb strings.Builder
	for _, b := range boxes {
		if b.Width <= MinGlyphSide && b.Height <= MinGlyphSide {
			continue
		}
		digit, err := s.classifyGlyph(padded, b)
		if errors.Is(err, classifier.ErrUnreadable) {
			logging.Debug("skipping unreadable glyph", "box", b)
			continue
		}
		if err != nil {
			return 0, false, err
		}
		sb.WriteByte(byte('0' + digit))
	}

	if sb.Len() == 0 {
		return 0, false, nil
	}
	n, err := strconv.Atoi(sb.String())
	if err != nil {
		return 0, false, fmt.Errorf("invalid digit sequence %q: %w", sb.String(), err)
	}
	return n, true, nil
}

func (s *Segmenter) classifyGlyph(padded gocv.Mat, b geometry.RectInt) (int, error) {
	crop := b.Expand(BorderPad, BorderPad).Clamp(padded.Cols(), padded.Rows())
	if crop.Empty() {
		return 0, classifier.ErrUnreadable
	}

	glyph := padded.Region(crop.Rectangle())
	defer glyph.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(glyph, &resized, image.Point{X: s.size, Y: s.size}, 0, 0, gocv.InterpolationCubic)

	digit, err := classifier.Predict(s.classifier, resized)
	if err != nil {
		return 0, err
	}
	if digit < 0 || digit > 9 {
		return 0, fmt.Errorf("class index %d is not a digit", digit)
	}
	return digit, nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
