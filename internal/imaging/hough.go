package imaging

import (
	"image"
	"math"
	"math/rand"
)

// houghSeed fixes the point visiting order so results are reproducible.
const houghSeed = 0x5eed

// houghLinesP finds line segments with the progressive probabilistic Hough
// transform.
//
// Foreground points are visited in random order. Each point votes in the
// (rho, theta) accumulator; once its strongest bin reaches the vote
// threshold, the line through it is walked in both directions until more
// than MaxLineGap consecutive background pixels are met. Walked pixels are
// removed from further voting, and their votes are withdrawn when the
// segment is long enough to be reported.
func houghLinesP(bin *image.Gray, p HoughParams) []Segment {
	b := bin.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}
	if p.Rho <= 0 {
		p.Rho = 1
	}
	if p.Theta <= 0 {
		p.Theta = math.Pi / 180
	}

	numAngle := int(math.Round(math.Pi / p.Theta))
	numRho := int(math.Round(float64((width+height)*2+1) / p.Rho))
	irho := 1 / p.Rho

	cosT := make([]float64, numAngle)
	sinT := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		ang := float64(n) * p.Theta
		cosT[n] = math.Cos(ang) * irho
		sinT[n] = math.Sin(ang) * irho
	}

	mask := make([]bool, width*height)
	points := make([]image.Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if bin.Pix[y*bin.Stride+x] != 0 {
				mask[y*width+x] = true
				points = append(points, image.Pt(x, y))
			}
		}
	}

	rng := rand.New(rand.NewSource(houghSeed))
	rng.Shuffle(len(points), func(i, j int) {
		points[i], points[j] = points[j], points[i]
	})

	acc := make([]int, numAngle*numRho)
	rhoOffset := (numRho - 1) / 2
	rhoIndex := func(x, y, n int) int {
		return int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + rhoOffset
	}
	vote := func(x, y, delta int) (maxVal, maxN int) {
		maxVal = -1
		for n := 0; n < numAngle; n++ {
			r := rhoIndex(x, y, n)
			if r < 0 || r >= numRho {
				continue
			}
			acc[r*numAngle+n] += delta
			if v := acc[r*numAngle+n]; v > maxVal {
				maxVal, maxN = v, n
			}
		}
		return maxVal, maxN
	}

	const shift = 16
	segments := make([]Segment, 0)

	for _, pt := range points {
		if !mask[pt.Y*width+pt.X] {
			continue
		}

		maxVal, maxN := vote(pt.X, pt.Y, 1)
		if maxVal < p.Threshold {
			continue
		}

		// Walk direction is perpendicular to the bin's normal.
		a := -sinT[maxN]
		bb := cosT[maxN]
		x0, y0 := pt.X, pt.Y
		var dx0, dy0 int
		xflag := math.Abs(a) > math.Abs(bb)
		if xflag {
			dx0 = 1
			if a < 0 {
				dx0 = -1
			}
			dy0 = int(math.Round(bb * (1 << shift) / math.Abs(a)))
			y0 = (y0 << shift) + (1 << (shift - 1))
		} else {
			dy0 = 1
			if bb < 0 {
				dy0 = -1
			}
			dx0 = int(math.Round(a * (1 << shift) / math.Abs(bb)))
			x0 = (x0 << shift) + (1 << (shift - 1))
		}

		locate := func(x, y int) (int, int) {
			if xflag {
				return x, y >> shift
			}
			return x >> shift, y
		}

		var lineEnd [2]image.Point
		for k := 0; k < 2; k++ {
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			gap := 0
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if j1 < 0 || j1 >= width || i1 < 0 || i1 >= height {
					break
				}
				if mask[i1*width+j1] {
					gap = 0
					lineEnd[k] = image.Pt(j1, i1)
				} else if gap++; gap > p.MaxLineGap {
					break
				}
			}
		}

		goodLine := absInt(lineEnd[1].X-lineEnd[0].X) >= p.MinLineLength ||
			absInt(lineEnd[1].Y-lineEnd[0].Y) >= p.MinLineLength

		for k := 0; k < 2; k++ {
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if j1 < 0 || j1 >= width || i1 < 0 || i1 >= height {
					break
				}
				if mask[i1*width+j1] {
					if goodLine {
						vote(j1, i1, -1)
					}
					mask[i1*width+j1] = false
				}
				if j1 == lineEnd[k].X && i1 == lineEnd[k].Y {
					break
				}
			}
		}

		if goodLine {
			s := orderSegment(lineEnd[0], lineEnd[1])
			s.P1 = s.P1.Add(b.Min)
			s.P2 = s.P2.Add(b.Min)
			segments = append(segments, s)
		}
	}

	return segments
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
