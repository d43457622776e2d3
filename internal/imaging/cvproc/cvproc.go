//go:build gocv

// Package cvproc implements imaging.Processor on top of OpenCV through gocv.
//
// Build with -tags gocv and an OpenCV 4 installation. Decoding, padding and
// cropping stay on the pure-Go path; the per-pixel heavy operations run in
// OpenCV.
package cvproc

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	ocrimaging "github.com/ironsheep/ocrpipe/internal/imaging"
)

// Processor is the OpenCV-backed imaging.Processor.
type Processor struct {
	*ocrimaging.Native
}

// New returns an OpenCV-backed Processor.
func New() *Processor {
	return &Processor{Native: ocrimaging.NewNative()}
}

var _ ocrimaging.Processor = (*Processor)(nil)

// Resize scales img with bilinear interpolation.
func (p *Processor) Resize(img image.Image, width, height int) image.Image {
	src, err := rgbaToMat(img)
	if err != nil {
		return p.Native.Resize(img, width, height)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)

	out, err := matToNRGBA(dst)
	if err != nil {
		return p.Native.Resize(img, width, height)
	}
	return out
}

// Rotate rotates clockwise by degrees on an expanded white canvas.
func (p *Processor) Rotate(img image.Image, degrees float64) image.Image {
	if degrees == 0 {
		return img
	}
	src, err := rgbaToMat(img)
	if err != nil {
		return p.Native.Rotate(img, degrees)
	}
	defer src.Close()

	w, h := src.Cols(), src.Rows()
	rad := degrees * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	newW := int(math.Ceil(float64(h)*sin + float64(w)*cos))
	newH := int(math.Ceil(float64(h)*cos + float64(w)*sin))

	// OpenCV treats positive angles as counter-clockwise.
	rotMat := gocv.GetRotationMatrix2D(image.Point{X: w / 2, Y: h / 2}, -degrees, 1.0)
	defer rotMat.Close()
	rotMat.SetDoubleAt(0, 2, rotMat.GetDoubleAt(0, 2)+float64(newW-w)/2)
	rotMat.SetDoubleAt(1, 2, rotMat.GetDoubleAt(1, 2)+float64(newH-h)/2)

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpAffineWithParams(src, &dst, rotMat, image.Point{X: newW, Y: newH},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := matToNRGBA(dst)
	if err != nil {
		return p.Native.Rotate(img, degrees)
	}
	return out
}

// Threshold binarizes gray: 255 where gray > level.
func (p *Processor) Threshold(gray *image.Gray, level uint8) *image.Gray {
	return p.threshold(gray, float32(level), gocv.ThresholdBinary)
}

// Otsu binarizes gray with OpenCV's Otsu threshold.
func (p *Processor) Otsu(gray *image.Gray) *image.Gray {
	return p.threshold(gray, 0, gocv.ThresholdBinary|gocv.ThresholdOtsu)
}

func (p *Processor) threshold(gray *image.Gray, level float32, typ gocv.ThresholdType) *image.Gray {
	src, err := grayToMat(gray)
	if err != nil {
		if typ&gocv.ThresholdOtsu != 0 {
			return p.Native.Otsu(gray)
		}
		return p.Native.Threshold(gray, uint8(level))
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, level, 255, typ)

	return matToGray(dst)
}

// FindContours returns the external contours of bin with every boundary
// point retained.
func (p *Processor) FindContours(bin *image.Gray) []ocrimaging.Contour {
	src, err := grayToMat(bin)
	if err != nil {
		return p.Native.FindContours(bin)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	offset := bin.Bounds().Min
	out := make([]ocrimaging.Contour, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		points := pv.ToPoints()
		for j := range points {
			points[j] = points[j].Add(offset)
		}
		out = append(out, ocrimaging.Contour{
			Points: points,
			Area:   gocv.ContourArea(pv),
		})
	}
	return out
}

// MorphClose runs a rectangular morphological closing.
func (p *Processor) MorphClose(bin *image.Gray, kernelWidth, kernelHeight int) *image.Gray {
	src, err := grayToMat(bin)
	if err != nil {
		return p.Native.MorphClose(bin, kernelWidth, kernelHeight)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kernelWidth, Y: kernelHeight})
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MorphologyEx(src, &dst, gocv.MorphClose, kernel)

	return matToGray(dst)
}

// HoughLinesP runs OpenCV's probabilistic Hough transform.
func (p *Processor) HoughLinesP(bin *image.Gray, params ocrimaging.HoughParams) []ocrimaging.Segment {
	src, err := grayToMat(bin)
	if err != nil {
		return p.Native.HoughLinesP(bin, params)
	}
	defer src.Close()

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(src, &lines, float32(params.Rho), float32(params.Theta),
		params.Threshold, float32(params.MinLineLength), float32(params.MaxLineGap))

	offset := bin.Bounds().Min
	segments := make([]ocrimaging.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		a := image.Pt(int(v[0]), int(v[1])).Add(offset)
		b := image.Pt(int(v[2]), int(v[3])).Add(offset)
		if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
			a, b = b, a
		}
		segments = append(segments, ocrimaging.Segment{P1: a, P2: b})
	}
	return segments
}

// grayToMat copies gray into a single-channel 8-bit Mat.
func grayToMat(gray *image.Gray) (gocv.Mat, error) {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
}

func matToGray(m gocv.Mat) *image.Gray {
	w, h := m.Cols(), m.Rows()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	copy(gray.Pix, m.ToBytes())
	return gray
}

// rgbaToMat copies img into a four-channel 8-bit Mat in RGBA order.
func rgbaToMat(img image.Image) (gocv.Mat, error) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}
	return gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, nrgba.Pix)
}

func matToNRGBA(m gocv.Mat) (*image.NRGBA, error) {
	if m.Type() != gocv.MatTypeCV8UC4 {
		return nil, fmt.Errorf("unexpected mat type %v", m.Type())
	}
	out := image.NewNRGBA(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(out.Pix, m.ToBytes())
	return out, nil
}
