//go:build gocv

package cvproc

import (
	"image"
	"image/color"
	"math"
	"testing"

	ocrimaging "github.com/ironsheep/ocrpipe/internal/imaging"
)

func blockImage() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 80, 40))
	for y := 10; y < 20; y++ {
		for x := 10; x < 60; x++ {
			g.SetGray(x, y, color.Gray{Y: 220})
		}
	}
	return g
}

func TestProcessor_MatchesNativeThreshold(t *testing.T) {
	g := blockImage()
	cv := New().Threshold(g, 127)
	native := ocrimaging.NewNative().Threshold(g, 127)

	for i := range native.Pix {
		if cv.Pix[i] != native.Pix[i] {
			t.Fatalf("pixel %d differs: cv=%d native=%d", i, cv.Pix[i], native.Pix[i])
		}
	}
}

func TestProcessor_FindContours(t *testing.T) {
	p := New()
	contours := p.FindContours(p.Otsu(blockImage()))
	if len(contours) != 1 {
		t.Fatalf("got %d contours, want 1", len(contours))
	}
	if got := contours[0].BoundingRect(); got != image.Rect(10, 10, 60, 20) {
		t.Errorf("bounding rect: got %v", got)
	}
}

func TestProcessor_HoughLinesP(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 200, 100))
	for x := 20; x < 180; x++ {
		g.SetGray(x, 50, color.Gray{Y: 255})
	}
	segs := New().HoughLinesP(g, ocrimaging.DefaultHoughParams(30, 50, 10))
	if len(segs) == 0 {
		t.Fatal("expected a segment")
	}
	if math.Abs(segs[0].AngleDegrees()) > 1 {
		t.Errorf("angle: got %v", segs[0].AngleDegrees())
	}
}

func TestProcessor_Rotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 20))
	out := New().Rotate(img, 10)
	if out.Bounds().Dy() <= 20 {
		t.Errorf("canvas should grow, got %v", out.Bounds())
	}
}
