package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"shelfscan/internal/classifier"
	"shelfscan/internal/config"
	"shelfscan/internal/output"
	"shelfscan/internal/params"
	"shelfscan/internal/region"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// constClassifier predicts the same digit for every glyph.
type constClassifier struct {
	digit int
	calls atomic.Int32
}

func (c *constClassifier) Classify(gocv.Mat) ([]float32, error) {
	c.calls.Add(1)
	scores := make([]float32, classifier.NumClasses)
	scores[c.digit] = 1
	return scores, nil
}

func (c *constClassifier) Close() error { return nil }

// writeScan saves a white 1200x800 scan with one dark block per rect.
func writeScan(t *testing.T, path string, blocks ...image.Rectangle) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 1200, 800))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, b := range blocks {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

var shelfBlock = image.Rect(700, 300, 740, 330)

func newFixture(t *testing.T, names ...string) (*Pipeline, *constClassifier) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		writeScan(t, filepath.Join(dir, n), shelfBlock)
	}
	cls := &constClassifier{digit: 7}
	p := New(config.NewStore(params.Default()), cls, nil, Options{
		ImagesDir: dir,
		Style:     region.DefaultStyle(),
	})
	t.Cleanup(func() { p.Close() })
	require.NoError(t, p.LoadImages(context.Background()))
	return p, cls
}

func TestLoadImagesEmptyDirectory(t *testing.T) {
	p := New(config.NewStore(params.Default()), &constClassifier{}, nil, Options{ImagesDir: t.TempDir()})
	err := p.LoadImages(context.Background())
	assert.ErrorIs(t, err, ErrNoImages)

	_, err = p.ProcessAll(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoImages)
	_, err = p.ProcessSingle(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestLoadImagesNaturalOrder(t *testing.T) {
	p, _ := newFixture(t, "Shelf 10.png", "Shelf 2.png", "Shelf 1.png")
	names := make([]string, 0, 3)
	for _, r := range p.Records() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Shelf 1.png", "Shelf 2.png", "Shelf 10.png"}, names)
}

func TestProcessAllSkipsExistingEntries(t *testing.T) {
	p, cls := newFixture(t, "Shelf 1.png", "Shelf 2.png")
	ids := p.IDs()
	p.Output().Set(ids[0], []int{42})

	sum, err := p.ProcessAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, int32(1), cls.calls.Load())

	first, _ := p.Output().Get(ids[0])
	second, _ := p.Output().Get(ids[1])
	assert.Equal(t, []int{42}, first)
	assert.Equal(t, []int{7}, second)

	// A second pass without reprocess does nothing.
	sum, err = p.ProcessAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, int32(1), cls.calls.Load())
}

func TestProcessAllReprocessOverwrites(t *testing.T) {
	p, _ := newFixture(t, "Shelf 1.png", "Shelf 2.png")
	ids := p.IDs()
	p.Output().Set(ids[0], []int{42})

	sum, err := p.ProcessAll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	first, _ := p.Output().Get(ids[0])
	assert.Equal(t, []int{7}, first)
}

func TestProcessAllEmitsProgress(t *testing.T) {
	p, _ := newFixture(t, "a.png", "b.png", "c.png")

	var seen []int
	var done Summary
	p.On(EventImageProcessed, func(data interface{}) {
		seen = append(seen, data.(Progress).Index)
	})
	p.On(EventRunComplete, func(data interface{}) {
		done = data.(Summary)
	})

	_, err := p.ProcessAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 3, done.Processed)
}

func TestProcessSingleGating(t *testing.T) {
	p, cls := newFixture(t, "a.png", "b.png")
	id := p.Current().ID
	p.Output().Set(id, []int{1})

	ran, err := p.ProcessSingle(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, cls.calls.Load())

	ran, err = p.ProcessSingle(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ran)
	vals, _ := p.Output().Get(id)
	assert.Equal(t, []int{7}, vals)
	assert.False(t, p.Output().Has(p.IDs()[1]))
}

func TestProcessUsesPerImageParams(t *testing.T) {
	p, _ := newFixture(t, "a.png", "b.png")
	ids := p.IDs()
	// Envelope that starts right of the block: nothing kept for b.
	require.NoError(t, p.Store().Set(ids[1], params.Default().WithCropEnvelope(900, 1050, 175, 9999)))

	_, err := p.ProcessAll(context.Background(), false)
	require.NoError(t, err)
	a, _ := p.Output().Get(ids[0])
	b, ok := p.Output().Get(ids[1])
	assert.Equal(t, []int{7}, a)
	assert.True(t, ok)
	assert.Empty(t, b)
}

func TestPreprocessAllAsksBeforeDefaults(t *testing.T) {
	p, _ := newFixture(t, "a.png")
	before := p.Current().Working.Clone()
	defer before.Close()

	var asked int
	decline := func(string) bool { asked++; return false }
	_, err := p.PreprocessAll(context.Background(), decline)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, asked)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(before, p.Current().Working, &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	assert.Zero(t, gocv.CountNonZero(gray), "declined preprocess must not annotate")

	results, err := p.PreprocessAll(context.Background(), func(string) bool { return true })
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Boxes, 1)
}

func TestPreprocessAllSkipsConfirmWithOverrides(t *testing.T) {
	p, _ := newFixture(t, "a.png", "b.png")
	require.NoError(t, p.Store().Set(p.IDs()[0], params.Default().WithDilation(9, 1)))

	_, err := p.PreprocessAll(context.Background(), func(string) bool {
		t.Fatal("confirm must not be asked")
		return false
	})
	assert.NoError(t, err)
}

func TestPreprocessSingle(t *testing.T) {
	p, _ := newFixture(t, "a.png", "b.png")
	p.Forward()

	var got Preprocessed
	p.On(EventPreprocessed, func(data interface{}) { got = data.(Preprocessed) })

	res, err := p.PreprocessSingle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.IDs()[1], res.ID)
	assert.Equal(t, 1, got.Index)
}

func TestNavigationWraps(t *testing.T) {
	p, _ := newFixture(t, "a.png", "b.png", "c.png")
	ids := p.IDs()

	assert.Equal(t, ids[0], p.Current().ID)
	assert.Equal(t, ids[2], p.Back().ID)
	assert.Equal(t, ids[0], p.Forward().ID)
	assert.Equal(t, ids[1], p.Forward().ID)

	rec, err := p.Select(ids[2])
	require.NoError(t, err)
	assert.Equal(t, ids[2], rec.ID)
	assert.Equal(t, ids[0], p.Forward().ID)

	_, err = p.Select("nope.png")
	assert.ErrorIs(t, err, ErrUnknownImage)
}

func TestSaveDirReceivesCropsAndPreviews(t *testing.T) {
	p, _ := newFixture(t, "Shelf 1.png")
	p.opts.SaveDir = filepath.Join(t.TempDir(), "saved")
	p.opts.PreviewWidth = 300

	_, err := p.ProcessAll(context.Background(), false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(p.opts.SaveDir, "Shelf 1_region_0.png"))

	_, err = p.PreprocessSingle(context.Background())
	require.NoError(t, err)
	preview := filepath.Join(p.opts.SaveDir, "Shelf 1_preview.png")
	require.FileExists(t, preview)

	img, err := imaging.Open(preview)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestReloadOutput(t *testing.T) {
	empty := New(config.NewStore(params.Default()), &constClassifier{}, nil, Options{})
	assert.ErrorIs(t, empty.ReloadOutput("x.json"), ErrNoImages)

	p, _ := newFixture(t, "a.png")
	saved := output.FromEntries(map[string][]int{p.IDs()[0]: {5, 6}})
	path, err := output.Save(saved, t.TempDir(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, p.ReloadOutput(path))
	vals, _ := p.Output().Get(p.IDs()[0])
	assert.Equal(t, []int{5, 6}, vals)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAddImage(t *testing.T) {
	p, _ := newFixture(t, "a.png")
	extra := filepath.Join(filepath.Dir(p.IDs()[0]), "b.png")
	writeScan(t, extra, shelfBlock)

	added, err := p.AddImage(extra)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = p.AddImage(extra)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, p.Records(), 2)
}
