package classifier

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Digits is the Tesseract whitelist used for single-glyph recognition.
const Digits = "0123456789"

// Tesseract classifies glyphs with a Tesseract client restricted to digits.
// It is the fallback backend when no exported model is configured, and
// reports a one-hot vector for the recognized digit.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a client configured for single-character digits.
func NewTesseract() (*Tesseract, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Shelf codes are not words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := client.SetWhitelist(Digits); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}

	return &Tesseract{client: client}, nil
}

// Classify recognizes one glyph. Glyphs arrive bright-on-dark; Tesseract
// wants dark-on-light, so the glyph is inverted and upscaled first.
func (t *Tesseract) Classify(glyph gocv.Mat) ([]float32, error) {
	if glyph.Empty() {
		return nil, ErrUnreadable
	}

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(glyph, &inverted)

	prepared := gocv.NewMat()
	defer prepared.Close()
	gocv.Resize(inverted, &prepared, image.Point{}, 2, 2, gocv.InterpolationCubic)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, prepared)
	if err != nil {
		return nil, fmt.Errorf("failed to encode glyph: %w", err)
	}
	defer buf.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	return oneHot(text)
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	return t.client.Close()
}

// oneHot converts recognized text to a score vector with the first digit
// set to 1.
func oneHot(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	for _, r := range text {
		if r >= '0' && r <= '9' {
			scores := make([]float32, NumClasses)
			scores[r-'0'] = 1
			return scores, nil
		}
	}
	return nil, ErrUnreadable
}
