package imaging

import (
	"image"
	"math"
	"sort"
)

// Contour is the outer boundary of one connected foreground region.
type Contour struct {
	// Points are the boundary pixels of the region, in no particular order.
	Points []image.Point

	// Area is the region area in square pixels.
	Area float64
}

// BoundingRect returns the smallest axis-aligned rectangle containing every
// boundary point. Max is exclusive, so a single pixel has a 1x1 rectangle.
func (c Contour) BoundingRect() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := c.Points[0].X, c.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range c.Points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// RotatedRect is a rectangle of arbitrary orientation.
type RotatedRect struct {
	CenterX float64
	CenterY float64
	Width   float64 // extent along the Angle direction
	Height  float64 // extent perpendicular to Angle
	Angle   float64 // degrees in (-90, 90], positive is clockwise as displayed
}

// MinAreaRect returns the minimum-area rotated rectangle enclosing the
// contour, found with rotating calipers over the convex hull.
func (c Contour) MinAreaRect() RotatedRect {
	return MinAreaRect(c.Points)
}

// MinAreaRect returns the minimum-area rotated rectangle enclosing points.
func MinAreaRect(points []image.Point) RotatedRect {
	hull := ConvexHull(points)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{CenterX: float64(hull[0].X), CenterY: float64(hull[0].Y)}
	}

	best := RotatedRect{}
	bestArea := math.Inf(1)
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		ex := float64(b.X - a.X)
		ey := float64(b.Y - a.Y)
		norm := math.Hypot(ex, ey)
		if norm == 0 {
			continue
		}
		ux, uy := ex/norm, ey/norm
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			px, py := float64(p.X), float64(p.Y)
			u := px*ux + py*uy
			v := px*vx + py*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		w := maxU - minU
		h := maxV - minV
		if area := w * h; area < bestArea {
			bestArea = area
			cu := (minU + maxU) / 2
			cv := (minV + maxV) / 2
			best = RotatedRect{
				CenterX: cu*ux + cv*vx,
				CenterY: cu*uy + cv*vy,
				Width:   w,
				Height:  h,
				Angle:   normalizeRectAngle(math.Atan2(uy, ux) * 180 / math.Pi),
			}
		}
	}
	return best
}

// normalizeRectAngle maps an edge direction to (-90, 90].
func normalizeRectAngle(deg float64) float64 {
	for deg > 90 {
		deg -= 180
	}
	for deg <= -90 {
		deg += 180
	}
	return deg
}

// ConvexHull returns the convex hull of points in counter-clockwise order
// (Andrew's monotone chain). Collinear points are dropped.
func ConvexHull(points []image.Point) []image.Point {
	if len(points) < 3 {
		out := make([]image.Point, len(points))
		copy(out, points)
		if len(out) == 2 && out[0] == out[1] {
			out = out[:1]
		}
		return out
	}

	pts := make([]image.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// findContours groups foreground pixels into 8-connected regions and returns
// the boundary of each one. A boundary pixel is a foreground pixel with at
// least one 4-neighbor that is background or outside the image.
//
// The fill is iterative; recursion overflows the stack on page-sized blobs.
func findContours(bin *image.Gray) []Contour {
	b := bin.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return bin.Pix[y*bin.Stride+x] != 0
	}

	visited := make([]bool, width*height)
	contours := make([]Contour, 0)
	stack := make([]image.Point, 0, 64)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if visited[y*width+x] || !fg(x, y) {
				continue
			}

			var boundary []image.Point
			pixels := 0
			visited[y*width+x] = true
			stack = append(stack[:0], image.Pt(x, y))

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels++

				if !fg(p.X-1, p.Y) || !fg(p.X+1, p.Y) || !fg(p.X, p.Y-1) || !fg(p.X, p.Y+1) {
					boundary = append(boundary, image.Pt(p.X+b.Min.X, p.Y+b.Min.Y))
				}

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if (dx == 0 && dy == 0) || !fg(nx, ny) || visited[ny*width+nx] {
							continue
						}
						visited[ny*width+nx] = true
						stack = append(stack, image.Pt(nx, ny))
					}
				}
			}

			contours = append(contours, Contour{
				Points: boundary,
				Area:   float64(pixels),
			})
		}
	}

	return contours
}
