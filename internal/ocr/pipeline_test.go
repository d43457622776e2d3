package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/inference/inferencetest"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/recognition"
)

const (
	detOutput = "sigmoid_0.tmp_0"
	recOutput = "softmax_0.tmp_0"
)

// testDictionary maps classes 1..4 to H, E, L, O; the last entry is a space.
var testDictionary = []byte("blank\nH\nE\nL\nO\n \n")

// helloClasses decodes to "HELLO" with testDictionary.
var helloClasses = []int{1, 1, 0, 2, 3, 0, 3, 4, 0}

// drawText draws text on an image using basicfont
func drawText(img draw.Image, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// renderLines renders black text lines on white, scaled up by an integer
// factor. basicfont.Face7x13 is 7 pixels wide, 13 pixels tall per character.
func renderLines(lines []string, scale int) *image.RGBA {
	maxLen := 0
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	w, h := maxLen*7+40, 20*len(lines)+20

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	for i, line := range lines {
		drawText(small, 20, 25+20*i, line, color.Black)
	}
	if scale == 1 {
		return small
	}

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return img
}

// whiteImage creates a solid white image.
func whiteImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// inkSession is a detection model that marks dark input pixels as text. The
// black padding to the right and below the image is ignored. With bands set,
// each run of rows containing ink becomes one filled rectangle, the way a
// trained detector covers a whole text line.
func inkSession(bands bool) *inferencetest.Session {
	return inferencetest.NewSession("x", detOutput, func(ctx context.Context, in map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
		x := in["x"]
		h, w := int(x.Shape[2]), int(x.Shape[3])
		dark := func(px, py int) bool { return x.Data[py*w+px] < 0 }

		maxX, maxY := -1, -1
		for y := 0; y < h; y++ {
			for px := 0; px < w; px++ {
				if !dark(px, y) {
					maxX = max(maxX, px)
					maxY = max(maxY, y)
				}
			}
		}

		probs := make([]float32, h*w)
		if !bands {
			for y := 0; y <= maxY; y++ {
				for px := 0; px <= maxX; px++ {
					if dark(px, y) {
						probs[y*w+px] = 1
					}
				}
			}
		} else {
			y := 0
			for y <= maxY {
				x0, x1 := rowInk(dark, y, maxX)
				if x0 < 0 {
					y++
					continue
				}
				top := y
				for y <= maxY {
					a, b := rowInk(dark, y, maxX)
					if a < 0 {
						break
					}
					x0, x1 = min(x0, a), max(x1, b)
					y++
				}
				for fy := top; fy < y; fy++ {
					for fx := x0; fx <= x1; fx++ {
						probs[fy*w+fx] = 1
					}
				}
			}
		}

		return map[string]*inference.Tensor{
			detOutput: {Shape: []int64{1, 1, int64(h), int64(w)}, Data: probs},
		}, nil
	})
}

// rowInk returns the first and last dark column of row y, or -1, -1.
func rowInk(dark func(x, y int) bool, y, maxX int) (int, int) {
	first, last := -1, -1
	for x := 0; x <= maxX; x++ {
		if dark(x, y) {
			if first < 0 {
				first = x
			}
			last = x
		}
	}
	return first, last
}

// scriptLogits builds [1,T,C] logits peaking at classes with probability p.
func scriptLogits(numClasses int, p float32, classes []int) *inference.Tensor {
	data := make([]float32, len(classes)*numClasses)
	rest := (1 - p) / float32(numClasses-1)
	for t, c := range classes {
		for k := 0; k < numClasses; k++ {
			data[t*numClasses+k] = rest
		}
		data[t*numClasses+c] = p
	}
	return &inference.Tensor{Shape: []int64{1, int64(len(classes)), int64(numClasses)}, Data: data}
}

// textSession is a recognition model that always reads classes.
func textSession(classes []int) *inferencetest.Session {
	return inferencetest.NewSession("x", recOutput, func(ctx context.Context, in map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
		return map[string]*inference.Tensor{recOutput: scriptLogits(6, 0.9, classes)}, nil
	})
}

type fixture struct {
	det, det2 *inferencetest.Session
	rec, rec2 *inferencetest.Session
	loader    *inferencetest.Loader
	pipeline  *Pipeline
}

func newFixture(t *testing.T, configure func(*Config, *Sources)) *fixture {
	t.Helper()
	f := &fixture{
		det:  inkSession(true),
		det2: inkSession(true),
		rec:  textSession(helloClasses),
		rec2: textSession([]int{4, 0, 1}), // "OH"
	}
	f.loader = inferencetest.NewLoader(map[string]inference.Session{
		"det":  f.det,
		"det2": f.det2,
		"rec":  f.rec,
		"rec2": f.rec2,
	})

	cfg := Config{Loader: f.loader, Logger: logging.Discard()}
	src := Sources{
		DetectionModel:   []byte("det"),
		RecognitionModel: []byte("rec"),
		Dictionary:       testDictionary,
	}
	if configure != nil {
		configure(&cfg, &src)
	}
	f.pipeline = New(cfg, src)
	return f
}

func (f *fixture) initialize(t *testing.T) *fixture {
	t.Helper()
	if err := f.pipeline.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return f
}

func TestPipeline_NotInitialized(t *testing.T) {
	ctx := context.Background()
	p := newFixture(t, nil).pipeline
	img := FromImage(whiteImage(10, 10))

	if p.IsInitialized() {
		t.Fatal("new pipeline reports initialized")
	}

	calls := map[string]func() error{
		"Recognize":              func() error { _, err := p.Recognize(ctx, img, RecognizeOptions{}); return err },
		"RecognizeFlat":          func() error { _, err := p.RecognizeFlat(ctx, img, RecognizeOptions{}); return err },
		"Detect":                 func() error { _, err := p.Detect(ctx, img); return err },
		"DeskewImage":            func() error { _, err := p.DeskewImage(ctx, img); return err },
		"ChangeDetectionModel":   func() error { return p.ChangeDetectionModel(ctx, []byte("det2")) },
		"ChangeRecognitionModel": func() error { return p.ChangeRecognitionModel(ctx, []byte("rec2")) },
		"ChangeTextDictionary":   func() error { return p.ChangeTextDictionary(testDictionary) },
		"Destroy":                func() error { return p.Destroy() },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, apperrors.ErrNotInitialized) {
				t.Errorf("expected not-initialized error, got %v", err)
			}
		})
	}
}

func TestPipeline_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	p := f.pipeline

	if !p.IsInitialized() || p.State() != StateInitialized {
		t.Fatalf("state after Initialize: %v", p.State())
	}
	if err := p.Initialize(ctx); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
	if f.loader.Loads() != 2 {
		t.Errorf("loads: got %d, want 2", f.loader.Loads())
	}

	if err := p.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if p.IsInitialized() || p.State() != StateDestroyed {
		t.Errorf("state after Destroy: %v", p.State())
	}
	if !f.det.Released() || !f.rec.Released() {
		t.Error("Destroy did not release both sessions")
	}

	if _, err := p.Recognize(ctx, FromImage(whiteImage(10, 10)), RecognizeOptions{}); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("Recognize after Destroy: %v", err)
	}
	if err := p.Initialize(ctx); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("Initialize after Destroy: %v", err)
	}
	if err := p.Destroy(); !errors.Is(err, apperrors.ErrNotInitialized) {
		t.Errorf("second Destroy: %v", err)
	}
}

func TestPipeline_InitializeErrors(t *testing.T) {
	t.Run("empty dictionary", func(t *testing.T) {
		f := newFixture(t, func(c *Config, s *Sources) { s.Dictionary = []byte("\n") })
		err := f.pipeline.Initialize(context.Background())
		if !errors.Is(err, apperrors.ErrInvalidDictionary) {
			t.Fatalf("expected invalid dictionary error, got %v", err)
		}
		if !f.det.Released() || !f.rec.Released() {
			t.Error("loaded sessions were not released")
		}
		if f.pipeline.IsInitialized() {
			t.Error("pipeline initialized despite error")
		}
	})

	t.Run("loader failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.loader.Err = errors.New("corrupt model")
		err := f.pipeline.Initialize(context.Background())
		if !errors.Is(err, apperrors.ErrModelLoad) {
			t.Errorf("expected model load error, got %v", err)
		}
	})

	t.Run("missing recognition model", func(t *testing.T) {
		f := newFixture(t, func(c *Config, s *Sources) { s.RecognitionModel = nil })
		err := f.pipeline.Initialize(context.Background())
		if !errors.Is(err, apperrors.ErrModelLoad) {
			t.Errorf("expected model load error, got %v", err)
		}
		if !f.det.Released() {
			t.Error("detection session was not released")
		}
	})

	t.Run("no loader", func(t *testing.T) {
		p := New(Config{Logger: logging.Discard()}, Sources{DetectionModel: []byte("det")})
		if err := p.Initialize(context.Background()); !errors.Is(err, apperrors.ErrModelLoad) {
			t.Errorf("expected model load error, got %v", err)
		}
	})

	t.Run("failed initialize can be retried", func(t *testing.T) {
		f := newFixture(t, nil)
		f.loader.Err = errors.New("temporarily unavailable")
		if err := f.pipeline.Initialize(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		f.loader.Err = nil
		f.det, f.rec = inkSession(true), textSession(helloClasses)
		f.loader.Sessions["det"], f.loader.Sessions["rec"] = f.det, f.rec
		f.initialize(t)
	})
}

func TestPipeline_BlankImage(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	data := encodePNG(t, whiteImage(200, 100))

	got, err := f.pipeline.Recognize(context.Background(), FromBytes(data), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "" || got.Confidence != 0 || len(got.Lines) != 0 {
		t.Errorf("blank image: got %+v", got)
	}
	if f.det.Runs() != 1 || f.rec.Runs() != 0 {
		t.Errorf("runs: detection %d, recognition %d", f.det.Runs(), f.rec.Runs())
	}
}

func TestPipeline_RecognizesTextLine(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	img := renderLines([]string{"HELLO"}, 3)

	got, err := f.pipeline.Recognize(context.Background(), FromBytes(encodePNG(t, img)), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "HELLO" {
		t.Errorf("text: got %q, want HELLO", got.Text)
	}
	if got.Confidence <= 0 {
		t.Errorf("confidence: got %v", got.Confidence)
	}
	if len(got.Lines) != 1 || len(got.Lines[0]) != 1 {
		t.Fatalf("lines: got %d", len(got.Lines))
	}
	box := got.Lines[0][0].Box
	if !box.Rect().In(img.Bounds()) || box.Empty() {
		t.Errorf("box %+v outside image %v", box, img.Bounds())
	}

	shapes := f.rec.InputShapes()
	if len(shapes) != 1 || shapes[0][2] != 48 {
		t.Errorf("recognition input shapes: %v", shapes)
	}
}

func TestPipeline_MultipleLines(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	img := renderLines([]string{"HELLO", "HELLO THERE", "HELLO"}, 2)

	got, err := f.pipeline.Recognize(context.Background(), FromImage(img), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "HELLO\nHELLO\nHELLO" {
		t.Errorf("text: got %q", got.Text)
	}
	for i := 1; i < len(got.Lines); i++ {
		if got.Lines[i][0].Box.Y <= got.Lines[i-1][0].Box.Y {
			t.Errorf("line %d is not below line %d", i, i-1)
		}
	}
}

func TestPipeline_CacheHitAcrossBuffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	data := encodePNG(t, renderLines([]string{"HELLO"}, 2))

	backing := make([]byte, len(data)+13)
	copy(backing[13:], data)
	view := backing[13:]

	first, err := f.pipeline.Recognize(ctx, FromBytes(data), RecognizeOptions{})
	if err != nil {
		t.Fatalf("first Recognize failed: %v", err)
	}
	second, err := f.pipeline.Recognize(ctx, FromBytes(view), RecognizeOptions{})
	if err != nil {
		t.Fatalf("second Recognize failed: %v", err)
	}

	if f.det.Runs() != 1 || f.rec.Runs() != 1 {
		t.Errorf("runs: detection %d, recognition %d, want 1 each", f.det.Runs(), f.rec.Runs())
	}
	if first.Text != second.Text || first.Confidence != second.Confidence {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}

	// Mutating a returned result does not corrupt the cache.
	second.Lines[0][0].Text = "changed"
	third, _ := f.pipeline.Recognize(ctx, FromBytes(data), RecognizeOptions{})
	if third.Lines[0][0].Text != "HELLO" {
		t.Errorf("cache entry was mutated: %q", third.Lines[0][0].Text)
	}
}

func TestPipeline_CacheHitForDecodedImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := renderLines([]string{"HELLO"}, 2)

	big := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx()+30, img.Bounds().Dy()+30))
	draw.Draw(big, img.Bounds().Add(image.Pt(30, 30)), img, image.Point{}, draw.Src)
	sub := big.SubImage(img.Bounds().Add(image.Pt(30, 30)))

	if _, err := f.pipeline.Recognize(ctx, FromImage(img), RecognizeOptions{}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if _, err := f.pipeline.Recognize(ctx, FromImage(sub), RecognizeOptions{}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if f.det.Runs() != 1 {
		t.Errorf("detection runs: got %d, want 1", f.det.Runs())
	}
}

func TestPipeline_RecognizeOffsetImage(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	img := renderLines([]string{"HELLO"}, 2)

	offset := image.Pt(400, 400)
	big := whiteImage(1000, 1000)
	draw.Draw(big, img.Bounds().Add(offset), img, image.Point{}, draw.Src)
	sub := big.SubImage(img.Bounds().Add(offset))

	want, err := f.pipeline.Recognize(context.Background(), FromImage(img), RecognizeOptions{NoCache: true})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	got, err := f.pipeline.Recognize(context.Background(), FromImage(sub), RecognizeOptions{NoCache: true})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if got.Text != "HELLO" || got.Count() != want.Count() {
		t.Fatalf("offset image: got %q with %d results, want %q with %d", got.Text, got.Count(), want.Text, want.Count())
	}
	// Boxes are relative to the image's top-left corner.
	if got.Lines[0][0].Box != want.Lines[0][0].Box {
		t.Errorf("box: got %+v, want %+v", got.Lines[0][0].Box, want.Lines[0][0].Box)
	}
}

func TestPipeline_CacheBypass(t *testing.T) {
	ctx := context.Background()
	customDict, _ := recognition.ParseDictionary([]byte("blank\nh\ne\nl\no\n "))

	on := true

	tests := []struct {
		name    string
		opts    RecognizeOptions
		perCall int
	}{
		{"no cache", RecognizeOptions{NoCache: true}, 1},
		{"custom dictionary", RecognizeOptions{Dictionary: customDict}, 1},
		{"deskew override", RecognizeOptions{AutoDeskew: &on}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil).initialize(t)
			img := FromBytes(encodePNG(t, renderLines([]string{"HELLO"}, 2)))

			for i := 0; i < 3; i++ {
				if _, err := f.pipeline.Recognize(ctx, img, tt.opts); err != nil {
					t.Fatalf("Recognize failed: %v", err)
				}
			}
			want := 3 * tt.perCall
			if f.det.Runs() != want {
				t.Errorf("detection runs: got %d, want %d", f.det.Runs(), want)
			}

			// Bypassed calls never populated the cache.
			if _, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{}); err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}
			if f.det.Runs() != want+1 {
				t.Errorf("detection runs after cached call: got %d, want %d", f.det.Runs(), want+1)
			}
		})
	}
}

func TestPipeline_MatchingDeskewOverrideUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := FromBytes(encodePNG(t, renderLines([]string{"HELLO"}, 2)))
	off := false

	for i := 0; i < 2; i++ {
		if _, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{AutoDeskew: &off}); err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
	}
	if f.det.Runs() != 1 {
		t.Errorf("detection runs: got %d, want 1", f.det.Runs())
	}
}

func TestPipeline_CustomDictionary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := FromImage(renderLines([]string{"HELLO"}, 2))

	got, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{
		Dictionary: []string{"blank", "h", "e", "l", "o", " "},
	})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("text: got %q, want hello", got.Text)
	}

	_, err = f.pipeline.Recognize(ctx, img, RecognizeOptions{Dictionary: []string{}})
	if !errors.Is(err, apperrors.ErrInvalidDictionary) {
		t.Errorf("expected invalid dictionary error, got %v", err)
	}
}

func TestPipeline_FlattenedMatchesGrouped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)

	images := map[string]Image{
		"blank":      FromImage(whiteImage(120, 60)),
		"one line":   FromImage(renderLines([]string{"HELLO"}, 2)),
		"many lines": FromImage(renderLines([]string{"HELLO", "HELLO", "HELLO HELLO"}, 2)),
	}
	for name, img := range images {
		t.Run(name, func(t *testing.T) {
			grouped, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{NoCache: true})
			if err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}
			flat, err := f.pipeline.RecognizeFlat(ctx, img, RecognizeOptions{NoCache: true})
			if err != nil {
				t.Fatalf("RecognizeFlat failed: %v", err)
			}
			if grouped.Count() != len(flat.Results) {
				t.Errorf("count: grouped %d, flat %d", grouped.Count(), len(flat.Results))
			}
			if grouped.Text != flat.Text || grouped.Confidence != flat.Confidence {
				t.Errorf("grouped %q/%v, flat %q/%v", grouped.Text, grouped.Confidence, flat.Text, flat.Confidence)
			}
		})
	}
}

func TestPipeline_FailedBoxIsDropped(t *testing.T) {
	var calls atomic.Int32
	failing := inferencetest.NewSession("x", recOutput, func(ctx context.Context, in map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}
		return map[string]*inference.Tensor{recOutput: scriptLogits(6, 0.9, helloClasses)}, nil
	})

	f := newFixture(t, nil)
	f.loader.Sessions["rec"] = failing
	f.initialize(t)

	got, err := f.pipeline.Recognize(context.Background(), FromImage(renderLines([]string{"HELLO", "HELLO"}, 2)), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if failing.Runs() != 2 {
		t.Errorf("recognition runs: got %d, want 2", failing.Runs())
	}
	if got.Count() != 1 || got.Text != "HELLO" {
		t.Errorf("got %d results, text %q; want 1 result", got.Count(), got.Text)
	}
}

func TestPipeline_DetectionFailureYieldsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.loader.Sessions["det"] = inferencetest.NewSession("x", detOutput, func(ctx context.Context, in map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
		return nil, errors.New("out of memory")
	})
	f.initialize(t)

	got, err := f.pipeline.Recognize(context.Background(), FromImage(renderLines([]string{"HELLO"}, 2)), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Count() != 0 || got.Text != "" {
		t.Errorf("got %+v, want empty result", got)
	}

	// Failures are not cached.
	f.pipeline.Recognize(context.Background(), FromImage(renderLines([]string{"HELLO"}, 2)), RecognizeOptions{})
	if runs := f.loader.Sessions["det"].(*inferencetest.Session).Runs(); runs != 2 {
		t.Errorf("detection runs: got %d, want 2", runs)
	}
}

func TestPipeline_InvalidImage(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	_, err := f.pipeline.Recognize(context.Background(), FromBytes([]byte("not an image")), RecognizeOptions{})
	if !errors.Is(err, apperrors.ErrInvalidImage) {
		t.Errorf("expected invalid image error, got %v", err)
	}
}

func TestPipeline_Detect(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	img := renderLines([]string{"HELLO", "HELLO"}, 2)

	boxes, err := f.pipeline.Detect(context.Background(), FromImage(img))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(boxes))
	}
	if f.rec.Runs() != 0 {
		t.Error("Detect ran recognition")
	}
}

// darkBars renders dark bars on white, rotated clockwise by deg.
func darkBars(width, height int, deg float64, centers []image.Point) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	for _, c := range centers {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx, dy := float64(x-c.X), float64(y-c.Y)
				if math.Abs(dx*cos+dy*sin) <= 100 && math.Abs(-dx*sin+dy*cos) <= 1.5 {
					g.Pix[y*g.Stride+x] = 0
				}
			}
		}
	}
	return g
}

func TestPipeline_DeskewImage(t *testing.T) {
	f := newFixture(t, nil)
	f.loader.Sessions["det"] = inkSession(false)
	f.initialize(t)

	centers := []image.Point{{200, 80}, {200, 160}, {200, 240}, {200, 320}}
	img := darkBars(400, 400, 7, centers)

	rotated, est, err := f.pipeline.Deskew(context.Background(), FromImage(img))
	if err != nil {
		t.Fatalf("Deskew failed: %v", err)
	}
	if math.Abs(est.Angle-7) > 1 {
		t.Errorf("angle: got %v, want about 7", est.Angle)
	}
	if rotated.Bounds().Dx() <= 400 || rotated.Bounds().Dy() <= 400 {
		t.Errorf("rotated canvas did not grow: %v", rotated.Bounds())
	}

	// The straightened image measures close to level.
	_, level, err := f.pipeline.Deskew(context.Background(), FromImage(rotated))
	if err != nil {
		t.Fatalf("second Deskew failed: %v", err)
	}
	if math.Abs(level.Angle) > 1 {
		t.Errorf("residual angle: got %v", level.Angle)
	}

	plain, err := f.pipeline.DeskewImage(context.Background(), FromImage(img))
	if err != nil || plain.Bounds() != rotated.Bounds() {
		t.Errorf("DeskewImage: bounds %v, err %v", plain.Bounds(), err)
	}
}

func TestPipeline_AutoDeskewRunsTwoPasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config, s *Sources) {
		c.Detection.AutoDeskew = true
	}).initialize(t)
	img := FromImage(renderLines([]string{"HELLO"}, 2))

	if _, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{NoCache: true}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if f.det.Runs() != 2 {
		t.Errorf("detection runs with deskew: got %d, want 2", f.det.Runs())
	}

	off := false
	if _, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{NoCache: true, AutoDeskew: &off}); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if f.det.Runs() != 3 {
		t.Errorf("detection runs without deskew: got %d, want 3", f.det.Runs())
	}
}

func TestPipeline_ChangeModels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := FromImage(renderLines([]string{"HELLO"}, 2))

	cached, _ := f.pipeline.Recognize(ctx, img, RecognizeOptions{})

	if err := f.pipeline.ChangeDetectionModel(ctx, []byte("det2")); err != nil {
		t.Fatalf("ChangeDetectionModel failed: %v", err)
	}
	if !f.det.Released() {
		t.Error("previous detection session not released")
	}
	if err := f.pipeline.ChangeRecognitionModel(ctx, []byte("rec2")); err != nil {
		t.Fatalf("ChangeRecognitionModel failed: %v", err)
	}
	if !f.rec.Released() {
		t.Error("previous recognition session not released")
	}

	got, err := f.pipeline.Recognize(ctx, img, RecognizeOptions{NoCache: true})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "OH" {
		t.Errorf("text after swap: got %q, want OH", got.Text)
	}
	if f.det2.Runs() != 1 || f.rec2.Runs() != 1 {
		t.Errorf("new sessions runs: detection %d, recognition %d", f.det2.Runs(), f.rec2.Runs())
	}

	// Swaps keep the cache.
	again, _ := f.pipeline.Recognize(ctx, img, RecognizeOptions{})
	if again.Text != cached.Text {
		t.Errorf("cached text after swap: got %q, want %q", again.Text, cached.Text)
	}
}

func TestPipeline_FailedSwapKeepsCurrentModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)

	if err := f.pipeline.ChangeDetectionModel(ctx, []byte("unknown")); !errors.Is(err, apperrors.ErrModelLoad) {
		t.Errorf("expected model load error, got %v", err)
	}
	if err := f.pipeline.ChangeRecognitionModel(ctx, nil); !errors.Is(err, apperrors.ErrModelLoad) {
		t.Errorf("expected model load error, got %v", err)
	}
	if f.det.Released() || f.rec.Released() {
		t.Error("failed swap released the current session")
	}

	got, err := f.pipeline.Recognize(ctx, FromImage(renderLines([]string{"HELLO"}, 2)), RecognizeOptions{})
	if err != nil || got.Text != "HELLO" {
		t.Errorf("Recognize after failed swap: %q, %v", got.Text, err)
	}
}

func TestPipeline_ChangeTextDictionary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := FromImage(renderLines([]string{"HELLO"}, 2))

	if err := f.pipeline.ChangeTextDictionary([]byte("blank\nJ\nE\nL\nY\n<unk>\n")); err != nil {
		t.Fatalf("ChangeTextDictionary failed: %v", err)
	}
	got, _ := f.pipeline.Recognize(ctx, img, RecognizeOptions{NoCache: true})
	if got.Text != "JELLY" {
		t.Errorf("text: got %q, want JELLY", got.Text)
	}
	if f.pipeline.Status().DictionarySize != 6 {
		t.Errorf("dictionary size: got %d", f.pipeline.Status().DictionarySize)
	}

	if err := f.pipeline.ChangeTextDictionary(nil); !errors.Is(err, apperrors.ErrInvalidDictionary) {
		t.Errorf("expected invalid dictionary error, got %v", err)
	}
	if f.pipeline.Status().DictionarySize != 6 {
		t.Error("failed change replaced the dictionary")
	}
}

type fakeEngine struct {
	text  string
	calls atomic.Int32
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) RecognizeLine(ctx context.Context, line image.Image) (recognition.Decoded, error) {
	e.calls.Add(1)
	return recognition.Decoded{Text: e.text, Confidence: 0.75}, nil
}

func TestPipeline_LineRecognizer(t *testing.T) {
	engine := &fakeEngine{text: "engine"}
	f := newFixture(t, func(c *Config, s *Sources) {
		c.LineRecognizer = engine
		s.RecognitionModel = nil
		s.Dictionary = nil
	}).initialize(t)

	got, err := f.pipeline.Recognize(context.Background(), FromImage(renderLines([]string{"HELLO", "HELLO"}, 2)), RecognizeOptions{})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.Text != "engine\nengine" || got.Confidence != 0.75 {
		t.Errorf("got %q / %v", got.Text, got.Confidence)
	}
	if engine.calls.Load() != 2 {
		t.Errorf("engine calls: got %d, want 2", engine.calls.Load())
	}

	status := f.pipeline.Status()
	if status.Engine != "fake" || status.RecognitionModel {
		t.Errorf("status: %+v", status)
	}
}

func TestPipeline_Status(t *testing.T) {
	f := newFixture(t, func(c *Config, s *Sources) { c.DisableCache = true })
	if got := f.pipeline.Status(); got.State != "uninitialized" || got.DetectionModel {
		t.Errorf("before Initialize: %+v", got)
	}
	f.initialize(t)
	want := Status{
		State:            "initialized",
		DetectionModel:   true,
		RecognitionModel: true,
		DictionarySize:   6,
		Engine:           "ctc",
	}
	if got := f.pipeline.Status(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPipeline_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil).initialize(t)
	img := FromImage(renderLines([]string{"HELLO"}, 2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opts := RecognizeOptions{NoCache: i%2 == 0}
			if _, err := f.pipeline.Recognize(ctx, img, opts); err != nil {
				t.Errorf("Recognize failed: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.pipeline.ChangeTextDictionary(testDictionary); err != nil {
			t.Errorf("ChangeTextDictionary failed: %v", err)
		}
	}()
	wg.Wait()
}

func TestPipeline_CanceledContext(t *testing.T) {
	f := newFixture(t, nil).initialize(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Recognize(ctx, FromImage(renderLines([]string{"HELLO"}, 2)), RecognizeOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
