// Package classifier invokes a pretrained single-glyph digit model.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// InputSize is the square side length every glyph is resized to.
const InputSize = 56

// NumClasses is the number of digit classes (0-9).
const NumClasses = 10

var (
	// ErrUnreadable is returned when a backend cannot produce a prediction
	// for a glyph. Callers skip the glyph.
	ErrUnreadable = errors.New("glyph unreadable")
	// ErrEmptyOutput is returned when a model produces no scores.
	ErrEmptyOutput = errors.New("classifier returned no scores")
)

// Classifier maps one normalized InputSize x InputSize grayscale glyph to a
// probability vector over digit classes.
type Classifier interface {
	Classify(glyph gocv.Mat) ([]float32, error)
	Close() error
}

// Layout is the tensor channel ordering a model expects. It is resolved once
// at startup from configuration and never probed per call.
type Layout int

const (
	// ChannelsLast is NHWC: 1 x H x W x 1.
	ChannelsLast Layout = iota
	// ChannelsFirst is NCHW: 1 x 1 x H x W.
	ChannelsFirst
)

func (l Layout) String() string {
	switch l {
	case ChannelsFirst:
		return "channels_first"
	default:
		return "channels_last"
	}
}

// ParseLayout maps a configuration string to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "channels_last", "nhwc":
		return ChannelsLast, nil
	case "channels_first", "nchw":
		return ChannelsFirst, nil
	default:
		return ChannelsLast, fmt.Errorf("unknown channel layout %q", s)
	}
}

// Shape returns the 4-D input tensor shape for a square glyph of side size.
func (l Layout) Shape(size int) []int {
	if l == ChannelsFirst {
		return []int{1, 1, size, size}
	}
	return []int{1, size, size, 1}
}

// Argmax returns the index of the highest score.
func Argmax(scores []float32) (int, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyOutput
	}
	f := make([]float64, len(scores))
	for i, s := range scores {
		f[i] = float64(s)
	}
	return floats.MaxIdx(f), nil
}

// Predict classifies glyph and returns the winning digit.
func Predict(c Classifier, glyph gocv.Mat) (int, error) {
	scores, err := c.Classify(glyph)
	if err != nil {
		return 0, err
	}
	return Argmax(scores)
}

// Backend names accepted by Open.
const (
	BackendNet       = "net"
	BackendTesseract = "tesseract"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Net     NetOptions
}

// Open creates the configured backend.
func Open(opts Options) (Classifier, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendNet:
		if opts.Net.ModelPath == "" {
			return nil, errors.New("model path is not set")
		}
		return NewNet(opts.Net)
	case BackendTesseract:
		return NewTesseract()
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", opts.Backend)
	}
}
