// Package pipeline drives loading, region preview and digit extraction over
// a directory of shelf scans.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shelfscan/internal/classifier"
	"shelfscan/internal/config"
	"shelfscan/internal/digits"
	scanimage "shelfscan/internal/image"
	"shelfscan/internal/logging"
	"shelfscan/internal/output"
	"shelfscan/internal/region"
)

var (
	// ErrNoImages is returned when the scan directory holds no supported
	// image, or an operation needs images before any are loaded.
	ErrNoImages = errors.New("no images loaded")
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled")
	// ErrUnknownImage is returned by Select for an ID that is not loaded.
	ErrUnknownImage = errors.New("unknown image")
)

// Confirm asks the user a yes/no question.
type Confirm func(question string) bool

// Options configures a Pipeline.
type Options struct {
	ImagesDir    string
	SaveDir      string // Region crops and previews are written here when set
	PreviewWidth int
	Style        region.Style
	Order        digits.SortMethod
}

// Pipeline owns the loaded records, the parameter store, the classifier and
// the output map. A run mutates the output map from one worker goroutine.
type Pipeline struct {
	mu        sync.RWMutex
	opts      Options
	store     *config.Store
	cls       classifier.Classifier
	out       *output.Map
	records   []*scanimage.Record
	current   int
	listeners map[EventType][]EventListener
}

// New creates a pipeline. out may be nil for a fresh map.
func New(store *config.Store, cls classifier.Classifier, out *output.Map, opts Options) *Pipeline {
	if out == nil {
		out = output.New()
	}
	return &Pipeline{
		opts:      opts,
		store:     store,
		cls:       cls,
		out:       out,
		listeners: make(map[EventType][]EventListener),
	}
}

// Store returns the parameter store.
func (p *Pipeline) Store() *config.Store { return p.store }

// Output returns the map of computed sequences.
func (p *Pipeline) Output() *output.Map { return p.out }

// LoadImages lists and decodes every supported image in the configured
// directory, replacing any previously loaded set.
func (p *Pipeline) LoadImages(ctx context.Context) error {
	paths, err := scanimage.List(p.opts.ImagesDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%s: %w", p.opts.ImagesDir, ErrNoImages)
	}

	records := make([]*scanimage.Record, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			closeAll(records)
			return err
		}
		rec, err := scanimage.Load(path)
		if err != nil {
			closeAll(records)
			return err
		}
		records = append(records, rec)
	}

	p.mu.Lock()
	old := p.records
	p.records = records
	p.current = 0
	p.mu.Unlock()
	closeAll(old)

	logging.Info("images loaded", "dir", p.opts.ImagesDir, "count", len(records))
	p.Emit(EventImagesLoaded, len(records))
	return nil
}

// AddImage loads one more image and appends it, keeping the current index.
// It returns false when the ID is already loaded.
func (p *Pipeline) AddImage(path string) (bool, error) {
	if p.Lookup(path) != nil {
		return false, nil
	}
	rec, err := scanimage.Load(path)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	p.records = append(p.records, rec)
	p.mu.Unlock()
	return true, nil
}

// Records returns the loaded records in load order.
func (p *Pipeline) Records() []*scanimage.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*scanimage.Record(nil), p.records...)
}

// IDs returns the loaded image IDs in load order.
func (p *Pipeline) IDs() []string {
	recs := p.Records()
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

// Lookup returns the record with the given ID, or nil.
func (p *Pipeline) Lookup(id string) *scanimage.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// ProcessAll extracts numbers for every loaded image in load order. Unless
// reprocess is set, images that already have an output entry are skipped.
// An image that fails is logged and left as it was.
func (p *Pipeline) ProcessAll(ctx context.Context, reprocess bool) (Summary, error) {
	records := p.Records()
	if len(records) == 0 {
		return Summary{}, ErrNoImages
	}

	start := time.Now()
	var sum Summary
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !reprocess && p.out.Has(rec.ID) {
			sum.Skipped++
			continue
		}

		numbers, err := p.extract(rec)
		if err != nil {
			sum.Failed++
			logging.Error("image failed", "image", rec.Name, "error", err)
			p.Emit(EventImageFailed, Progress{Index: i, Total: len(records), ID: rec.ID, Err: err})
			continue
		}
		p.out.Set(rec.ID, numbers)
		sum.Processed++
		logging.Debug("image processed", "image", rec.Name, "numbers", numbers)
		p.Emit(EventImageProcessed, Progress{Index: i, Total: len(records), ID: rec.ID, Numbers: numbers})
	}
	sum.Duration = time.Since(start)

	logging.Info("process all finished",
		"processed", sum.Processed, "skipped", sum.Skipped, "failed", sum.Failed,
		"duration", sum.Duration)
	p.Emit(EventRunComplete, sum)
	return sum, nil
}

// ProcessSingle recomputes the current image and overwrites its entry. It
// does the work only when reprocess is false; callers confirm the overwrite
// first and pass the answer's negation. It reports whether anything ran.
func (p *Pipeline) ProcessSingle(ctx context.Context, reprocess bool) (bool, error) {
	if reprocess {
		return false, nil
	}
	rec := p.Current()
	if rec == nil {
		return false, ErrNoImages
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	numbers, err := p.extract(rec)
	if err != nil {
		return false, err
	}
	p.out.Set(rec.ID, numbers)
	p.Emit(EventImageProcessed, Progress{Index: p.CurrentIndex(), Total: len(p.Records()), ID: rec.ID, Numbers: numbers})
	return true, nil
}

func (p *Pipeline) extract(rec *scanimage.Record) ([]int, error) {
	prm := p.store.Params(rec.ID)
	if err := prm.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", rec.ID, err)
	}

	opts := []digits.Option{digits.WithOrder(p.opts.Order)}
	if p.opts.SaveDir != "" {
		opts = append(opts, digits.WithRegionHook(p.saveCrop(rec)))
	}
	seg := digits.NewSegmenter(p.cls, opts...)

	numbers, err := seg.ExtractNumbers(rec.Original, prm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rec.ID, err)
	}
	if numbers == nil {
		numbers = []int{}
	}
	return numbers, nil
}

// PreprocessAll draws the detected regions on every record's working
// buffer. When no image carries its own parameters, confirm is asked first
// and declining returns ErrCancelled without touching any record.
func (p *Pipeline) PreprocessAll(ctx context.Context, confirm Confirm) ([]*region.Result, error) {
	records := p.Records()
	if len(records) == 0 {
		return nil, ErrNoImages
	}
	if _, custom := p.store.All(); !custom {
		if confirm == nil || !confirm("Default values are about to be used. Would you like to proceed?") {
			return nil, ErrCancelled
		}
	}

	results := make([]*region.Result, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.preprocess(i, rec)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// PreprocessSingle draws the detected regions on the current record.
func (p *Pipeline) PreprocessSingle(ctx context.Context) (*region.Result, error) {
	rec := p.Current()
	if rec == nil {
		return nil, ErrNoImages
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.preprocess(p.CurrentIndex(), rec)
}

func (p *Pipeline) preprocess(i int, rec *scanimage.Record) (*region.Result, error) {
	res, err := region.Detect(rec, p.store.Params(rec.ID), p.opts.Style)
	if err != nil {
		return nil, err
	}
	logging.Debug("regions detected", "image", rec.Name, "regions", len(res.Boxes))
	if p.opts.SaveDir != "" {
		if err := p.exportPreview(rec); err != nil {
			logging.Warn("preview not saved", "image", rec.Name, "error", err)
		}
	}
	p.Emit(EventPreprocessed, Preprocessed{Index: i, Result: res})
	return res, nil
}

// Current returns the record under the cursor, or nil when none are loaded.
func (p *Pipeline) Current() *scanimage.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.records) == 0 {
		return nil
	}
	return p.records[p.current]
}

// CurrentIndex returns the cursor position.
func (p *Pipeline) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Forward moves the cursor to the next record, wrapping to the first.
func (p *Pipeline) Forward() *scanimage.Record { return p.step(1) }

// Back moves the cursor to the previous record, wrapping to the last.
func (p *Pipeline) Back() *scanimage.Record { return p.step(-1) }

func (p *Pipeline) step(delta int) *scanimage.Record {
	p.mu.Lock()
	if len(p.records) == 0 {
		p.mu.Unlock()
		return nil
	}
	n := len(p.records)
	p.current = ((p.current+delta)%n + n) % n
	rec := p.records[p.current]
	p.mu.Unlock()

	p.Emit(EventCurrentChanged, rec.ID)
	return rec
}

// Select moves the cursor to the record with the given ID.
func (p *Pipeline) Select(id string) (*scanimage.Record, error) {
	p.mu.Lock()
	idx := -1
	for i, r := range p.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownImage)
	}
	p.current = idx
	rec := p.records[idx]
	p.mu.Unlock()

	p.Emit(EventCurrentChanged, rec.ID)
	return rec, nil
}

// ReloadOutput replaces the output map with a saved run. Images must be
// loaded first so the entries can be matched to records.
func (p *Pipeline) ReloadOutput(path string) error {
	if len(p.Records()) == 0 {
		return ErrNoImages
	}
	saved, err := output.Load(path)
	if err != nil {
		return err
	}
	p.out.Replace(saved.Snapshot())
	logging.Info("output reloaded", "path", path, "entries", saved.Len())
	return nil
}

// Close releases every loaded record.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	recs := p.records
	p.records = nil
	p.current = 0
	p.mu.Unlock()
	closeAll(recs)
	return nil
}

func closeAll(recs []*scanimage.Record) {
	for _, r := range recs {
		r.Close()
	}
}
