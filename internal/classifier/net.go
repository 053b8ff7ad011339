package classifier

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Net runs an exported model (ONNX, TensorFlow .pb, Caffe, ...) through the
// OpenCV DNN module.
type Net struct {
	mu     sync.Mutex
	net    gocv.Net
	layout Layout
	scale  float32
	size   int
}

// NetOptions configures a Net classifier.
type NetOptions struct {
	ModelPath  string
	ConfigPath string  // Optional; required by some frameworks
	Layout     Layout  // Resolved once from configuration
	Scale      float64 // Multiplier applied to raw 0-255 pixels; 0 means 1
}

// NewNet loads a model from disk.
func NewNet(opts NetOptions) (*Net, error) {
	net := gocv.ReadNet(opts.ModelPath, opts.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", opts.ModelPath)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	return &Net{
		net:    net,
		layout: opts.Layout,
		scale:  float32(scale),
		size:   InputSize,
	}, nil
}

// Layout returns the channel ordering used for every input tensor.
func (n *Net) Layout() Layout { return n.layout }

// Classify runs one forward pass. The glyph must be single-channel and
// already resized to InputSize.
func (n *Net) Classify(glyph gocv.Mat) ([]float32, error) {
	if glyph.Rows() != n.size || glyph.Cols() != n.size || glyph.Channels() != 1 {
		return nil, fmt.Errorf("glyph is %dx%dx%d, want %dx%dx1",
			glyph.Rows(), glyph.Cols(), glyph.Channels(), n.size, n.size)
	}

	blob, err := inputTensor(glyph, n.layout, n.scale)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}
	if len(scores) == 0 {
		return nil, ErrEmptyOutput
	}
	return append([]float32(nil), scores...), nil
}

// Close releases the network.
func (n *Net) Close() error {
	return n.net.Close()
}

// inputTensor converts an 8-bit glyph into a 4-D float tensor laid out as
// the model expects. The caller owns the returned Mat.
func inputTensor(glyph gocv.Mat, layout Layout, scale float32) (gocv.Mat, error) {
	f := gocv.NewMat()
	defer f.Close()
	glyph.ConvertToWithParams(&f, gocv.MatTypeCV32F, scale, 0)
	src, err := f.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to read glyph: %w", err)
	}

	blob := gocv.NewMatWithSizes(layout.Shape(glyph.Rows()), gocv.MatTypeCV32F)
	dst, err := blob.DataPtrFloat32()
	if err != nil {
		blob.Close()
		return gocv.Mat{}, fmt.Errorf("failed to allocate input tensor: %w", err)
	}
	// With one channel NCHW and NHWC share the same element order; only the
	// declared shape differs.
	copy(dst, src)
	return blob, nil
}
