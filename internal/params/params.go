// Package params defines the tunable thresholds that govern region and
// glyph acceptance.
package params

import (
	"errors"
	"fmt"
)

var (
	// ErrNonPositive is returned when a size or dilation value is not positive.
	ErrNonPositive = errors.New("value must be positive")
	// ErrInvertedRange is returned when a max bound is below its min bound.
	ErrInvertedRange = errors.New("max bound below min bound")
)

// Set is one complete parameter set. JSON names match the keys used by the
// scan station's Config_Image.json so existing files load unchanged.
type Set struct {
	CropMinWidth   int `json:"Crop Min Width" mapstructure:"crop_min_width"`
	CropMaxWidth   int `json:"Crop Max Width" mapstructure:"crop_max_width"`
	CropMinHeight  int `json:"Crop Min Height" mapstructure:"crop_min_height"`
	CropMaxHeight  int `json:"Crop Max Height" mapstructure:"crop_max_height"`
	DigitMinWidth  int `json:"Digit Min Width" mapstructure:"digit_min_width"`
	DigitMinHeight int `json:"Digit Min Height" mapstructure:"digit_min_height"`
	DilationWidth  int `json:"Dilation Width" mapstructure:"dilation_width"`
	DilationHeight int `json:"Dilation Height" mapstructure:"dilation_height"`
}

// Default returns the parameter set tuned for the standard shelf scan layout.
func Default() Set {
	return Set{
		CropMinWidth:  590,
		CropMaxWidth:  1050,
		CropMinHeight: 175,
		CropMaxHeight: 9999,

		// Boxes must be strictly larger than these
		DigitMinWidth:  15,
		DigitMinHeight: 20,

		// Wide and flat: joins the digits of one code, keeps rows apart
		DilationWidth:  19,
		DilationHeight: 1,
	}
}

// New builds a validated parameter set.
func New(cropMinW, cropMaxW, cropMinH, cropMaxH, digitMinW, digitMinH, dilateW, dilateH int) (Set, error) {
	s := Set{
		CropMinWidth:   cropMinW,
		CropMaxWidth:   cropMaxW,
		CropMinHeight:  cropMinH,
		CropMaxHeight:  cropMaxH,
		DigitMinWidth:  digitMinW,
		DigitMinHeight: digitMinH,
		DilationWidth:  dilateW,
		DilationHeight: dilateH,
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Validate checks that every value is usable. Crop bounds may be zero (an
// envelope starting at the image edge) and digit minimums may be zero (keep
// every blob), but dilation sizes must be positive and no max may be below
// its min.
func (s Set) Validate() error {
	nonNeg := []struct {
		name string
		v    int
	}{
		{"crop min width", s.CropMinWidth},
		{"crop max width", s.CropMaxWidth},
		{"crop min height", s.CropMinHeight},
		{"crop max height", s.CropMaxHeight},
		{"digit min width", s.DigitMinWidth},
		{"digit min height", s.DigitMinHeight},
	}
	for _, f := range nonNeg {
		if f.v < 0 {
			return fmt.Errorf("%s = %d: %w", f.name, f.v, ErrNonPositive)
		}
	}
	if s.DilationWidth <= 0 || s.DilationHeight <= 0 {
		return fmt.Errorf("dilation %dx%d: %w", s.DilationWidth, s.DilationHeight, ErrNonPositive)
	}
	if s.CropMaxWidth < s.CropMinWidth {
		return fmt.Errorf("crop width %d..%d: %w", s.CropMinWidth, s.CropMaxWidth, ErrInvertedRange)
	}
	if s.CropMaxHeight < s.CropMinHeight {
		return fmt.Errorf("crop height %d..%d: %w", s.CropMinHeight, s.CropMaxHeight, ErrInvertedRange)
	}
	return nil
}

// WithCropEnvelope returns a copy of s with a new crop envelope.
func (s Set) WithCropEnvelope(minW, maxW, minH, maxH int) Set {
	s.CropMinWidth = minW
	s.CropMaxWidth = maxW
	s.CropMinHeight = minH
	s.CropMaxHeight = maxH
	return s
}

// WithDigitMinimum returns a copy of s with new glyph size minimums.
func (s Set) WithDigitMinimum(w, h int) Set {
	s.DigitMinWidth = w
	s.DigitMinHeight = h
	return s
}

// WithDilation returns a copy of s with a new dilation kernel size.
func (s Set) WithDilation(w, h int) Set {
	s.DilationWidth = w
	s.DilationHeight = h
	return s
}

// Accepts reports whether a bounding box at (x, y) of size w x h passes the
// region predicate. Comparisons are strict on every side.
func (s Set) Accepts(x, y, w, h int) bool {
	return w > s.DigitMinWidth && h > s.DigitMinHeight &&
		s.CropMinWidth < x && x < s.CropMaxWidth &&
		s.CropMinHeight < y && y < s.CropMaxHeight
}
