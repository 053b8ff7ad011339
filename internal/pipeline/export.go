package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shelfscan/internal/digits"
	scanimage "shelfscan/internal/image"
	"shelfscan/internal/logging"
	"shelfscan/pkg/geometry"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

func stem(rec *scanimage.Record) string {
	return strings.TrimSuffix(rec.Name, filepath.Ext(rec.Name))
}

// saveCrop returns a region hook that writes each inverted crop as
// <stem>_region_<n>.png.
func (p *Pipeline) saveCrop(rec *scanimage.Record) digits.RegionHook {
	return func(i int, _ geometry.RectInt, crop gocv.Mat) {
		if err := os.MkdirAll(p.opts.SaveDir, 0o755); err != nil {
			logging.Warn("crop not saved", "image", rec.Name, "error", err)
			return
		}
		path := filepath.Join(p.opts.SaveDir, fmt.Sprintf("%s_region_%d.png", stem(rec), i))
		if !gocv.IMWrite(path, crop) {
			logging.Warn("crop not saved", "path", path)
		}
	}
}

// exportPreview writes the annotated working buffer, scaled to the preview
// width with a cubic filter, as <stem>_preview.png.
func (p *Pipeline) exportPreview(rec *scanimage.Record) error {
	img, err := rec.Working.ToImage()
	if err != nil {
		return fmt.Errorf("convert working buffer: %w", err)
	}
	if w := p.opts.PreviewWidth; w > 0 && w < img.Bounds().Dx() {
		img = imaging.Resize(img, w, 0, imaging.CatmullRom)
	}
	if err := os.MkdirAll(p.opts.SaveDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(p.opts.SaveDir, stem(rec)+"_preview.png")
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}
