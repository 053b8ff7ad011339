// Package region locates the rectangular areas of a scan that hold a
// multi-digit shelf code.
package region

import (
	"fmt"
	"image"
	"image/color"

	scanimage "shelfscan/internal/image"
	"shelfscan/internal/params"
	"shelfscan/pkg/colorutil"
	"shelfscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// DilationIterations is the number of dilation passes applied to the
// binary mask before contour extraction.
const DilationIterations = 2

// Style controls how kept regions are drawn on the working buffer.
type Style struct {
	BoxColor   color.RGBA
	LabelColor color.RGBA
	Thickness  int
	FontScale  float64
}

// DefaultStyle matches the scan station overlay.
func DefaultStyle() Style {
	return Style{
		BoxColor:   colorutil.Mark,
		LabelColor: colorutil.Black,
		Thickness:  2,
		FontScale:  1,
	}
}

// Result is the outcome of one detection pass.
type Result struct {
	ID     string
	Boxes  []geometry.RectInt // Kept boxes in discovery order
	Params params.Set
}

// Mask binarizes gray with an inverse Otsu threshold and dilates it with a
// rectangular kernel so that the strokes of one code merge into one blob.
// The caller owns the returned Mat.
func Mask(gray gocv.Mat, p params.Set) gocv.Mat {
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: p.DilationWidth, Y: p.DilationHeight})
	defer kernel.Close()

	dilated := thresh.Clone()
	for i := 0; i < DilationIterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(dilated, &next, kernel)
		dilated.Close()
		dilated = next
	}
	return dilated
}

// Candidates returns the bounding box of every external contour of the
// dilated mask, in the order OpenCV reports them.
func Candidates(gray gocv.Mat, p params.Set) []geometry.RectInt {
	mask := Mask(gray, p)
	defer mask.Close()
	return ContourBoxes(mask)
}

// ContourBoxes returns the bounding boxes of the external contours of a
// binary image.
func ContourBoxes(binary gocv.Mat) []geometry.RectInt {
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]geometry.RectInt, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		boxes = append(boxes, geometry.FromRectangle(gocv.BoundingRect(contours.At(i))))
	}
	return boxes
}

// FindBoxes returns the candidate boxes that pass the size and position
// predicate of p, preserving discovery order.
func FindBoxes(gray gocv.Mat, p params.Set) []geometry.RectInt {
	var kept []geometry.RectInt
	for _, b := range Candidates(gray, p) {
		if p.Accepts(b.X, b.Y, b.Width, b.Height) {
			kept = append(kept, b)
		}
	}
	return kept
}

// Annotate draws the crop envelope, each kept box and its index onto dst.
func Annotate(dst *gocv.Mat, boxes []geometry.RectInt, p params.Set, style Style) {
	envelope := geometry.RectInt{
		X:      p.CropMinWidth,
		Y:      p.CropMinHeight,
		Width:  p.CropMaxWidth - p.CropMinWidth,
		Height: p.CropMaxHeight,
	}
	for i, b := range boxes {
		gocv.Rectangle(dst, envelope.Rectangle(), style.BoxColor, style.Thickness)
		gocv.Rectangle(dst, b.Rectangle(), style.BoxColor, style.Thickness)
		gocv.PutText(dst, fmt.Sprintf("%d", i), image.Point{X: b.X - 80, Y: b.Y + 20},
			gocv.FontHersheySimplex, style.FontScale, style.LabelColor, style.Thickness)
	}
}

// Detect re-derives the record's working buffer from its original, finds
// the kept regions and draws them. A scan with no kept regions is left as a
// clean copy of the original; that is not an error.
func Detect(rec *scanimage.Record, p params.Set, style Style) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", rec.ID, err)
	}
	rec.ResetWorking()

	boxes := FindBoxes(rec.Original, p)
	Annotate(&rec.Working, boxes, p, style)

	return &Result{ID: rec.ID, Boxes: boxes, Params: p}, nil
}
