package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// Annotation is one rectangle to draw on an overlay.
type Annotation struct {
	Rect image.Rectangle

	// Group selects the outline color; annotations in the same group share it.
	Group int

	// Label is drawn at the top-left corner of Rect when non-empty. Only
	// digits and commas are rendered.
	Label string
}

// Palette returns n visually distinct colors spread evenly around the hue
// wheel.
func Palette(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	colors := make([]color.RGBA, n)
	for i := range colors {
		c := colorful.Hsv(float64(i)*360/float64(n), 0.85, 0.9)
		r, g, b := c.RGB255()
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// DrawAnnotations returns a copy of img with each annotation outlined.
// Rectangles are clipped to the image; the outline is thickness pixels wide.
func DrawAnnotations(img image.Image, annotations []Annotation, thickness int) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	if thickness < 1 {
		thickness = 1
	}

	groups := 0
	for _, a := range annotations {
		if a.Group+1 > groups {
			groups = a.Group + 1
		}
	}
	palette := Palette(groups)

	labelColor := color.RGBA{255, 255, 255, 255}
	bgColor := color.RGBA{0, 0, 0, 180}

	for _, a := range annotations {
		r := a.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		c := color.RGBA{255, 0, 0, 255}
		if a.Group >= 0 && a.Group < len(palette) {
			c = palette[a.Group]
		}
		for t := 0; t < thickness; t++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				result.SetRGBA(x, r.Min.Y+t, c)
				result.SetRGBA(x, r.Max.Y-1-t, c)
			}
			for y := r.Min.Y; y < r.Max.Y; y++ {
				result.SetRGBA(r.Min.X+t, y, c)
				result.SetRGBA(r.Max.X-1-t, y, c)
			}
		}
		if a.Label != "" {
			drawLabel(result, r.Min.X+thickness+1, r.Min.Y+thickness+1, a.Label, labelColor, bgColor)
		}
	}

	return result
}

// IndexLabel formats a line and word index as "line,word".
func IndexLabel(line, word int) string {
	return strconv.Itoa(line) + "," + strconv.Itoa(word)
}

// drawLabel draws a small text label using a 3x5 pixel font covering digits
// and the comma.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	inside := func(px, py int) bool {
		return px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y
	}

	const charWidth = 4
	labelWidth := len(text) * charWidth
	const labelHeight = 6

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if inside(x+dx, y+dy) {
				img.SetRGBA(x+dx, y+dy, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if ok {
			for row, line := range glyph {
				for col, pixel := range line {
					if pixel == '1' && inside(cx+col, y+row) {
						img.SetRGBA(cx+col, y+row, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
