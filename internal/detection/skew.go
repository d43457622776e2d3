package detection

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/logging"
)

// Skew estimation limits.
const (
	maxSkewDegrees = 20.0

	houghKernelWidth  = 3
	houghKernelHeight = 1
	houghVotes        = 30
	houghMinLength    = 50
	houghMaxGap       = 10
)

// Method identifies the measurement an angle came from.
type Method string

const (
	MethodRotatedRect Method = "rotated_rect"
	MethodBaseline    Method = "baseline"
	MethodHough       Method = "hough"
)

// AngleSample is one weighted angle measurement in degrees.
type AngleSample struct {
	Angle  float64
	Weight float64
	Method Method
}

// SkewEstimate is the consensus skew of a page.
type SkewEstimate struct {
	// Angle is the consensus angle in degrees; positive is clockwise as
	// displayed. Rotating the image by -Angle straightens it.
	Angle float64

	// Regions is the number of regions that passed filtering.
	Regions int

	// Samples counts measurements per method before outlier filtering.
	Samples map[Method]int

	// Kept is the number of measurements that survived outlier filtering.
	Kept int
}

// SkewEstimator computes a consensus skew angle from a probability map.
type SkewEstimator struct {
	proc    imaging.Processor
	minArea float64
	log     *logging.Logger
}

// NewSkewEstimator returns an estimator that ignores regions smaller than
// minArea square pixels.
func NewSkewEstimator(proc imaging.Processor, minArea int, log *logging.Logger) *SkewEstimator {
	return &SkewEstimator{proc: proc, minArea: float64(minArea), log: log}
}

// Estimate binarizes gray with Otsu's method and returns the consensus angle
// of its text regions.
func (e *SkewEstimator) Estimate(gray *image.Gray) SkewEstimate {
	bin := e.proc.Otsu(gray)
	regions := regionsFromContours(e.proc.FindContours(bin), e.minArea)

	samples := make([]AngleSample, 0, 2*len(regions))
	samples = append(samples, rotatedRectAngles(regions)...)
	samples = append(samples, baselineAngles(regions)...)
	samples = append(samples, e.houghAngles(bin)...)

	est := SkewEstimate{
		Regions: len(regions),
		Samples: make(map[Method]int),
	}
	for _, s := range samples {
		est.Samples[s.Method]++
	}
	est.Angle, est.Kept = consensus(samples)

	e.log.Debug("Estimated skew",
		"angle", est.Angle,
		"regions", est.Regions,
		"rotated_rect", est.Samples[MethodRotatedRect],
		"baseline", est.Samples[MethodBaseline],
		"hough", est.Samples[MethodHough],
		"kept", est.Kept)

	return est
}

// rotatedRectAngles measures the minimum-area rectangle of each region.
func rotatedRectAngles(regions []Region) []AngleSample {
	out := make([]AngleSample, 0, len(regions))
	for _, r := range regions {
		if len(r.Points) == 0 {
			continue
		}
		rr := imaging.MinAreaRect(r.Points)
		out = append(out, AngleSample{
			Angle:  foldAngle(rr.Angle),
			Weight: math.Log(r.Area+1) * 2 * squareness(r.AspectRatio),
			Method: MethodRotatedRect,
		})
	}
	return out
}

// baselineAngles fits a line through the lowest boundary point of each third
// of every region.
func baselineAngles(regions []Region) []AngleSample {
	out := make([]AngleSample, 0, len(regions))
	for _, r := range regions {
		if len(r.Points) < 4 {
			continue
		}
		pts := make([]image.Point, len(r.Points))
		copy(pts, r.Points)
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })

		var xs, ys []float64
		segment := len(pts) / 3
		for s := 0; s < 3; s++ {
			start := s * segment
			end := start + segment
			if s == 2 {
				end = len(pts)
			}
			if start >= end {
				continue
			}
			lowest := pts[start]
			for _, p := range pts[start+1 : end] {
				if p.Y > lowest.Y {
					lowest = p
				}
			}
			xs = append(xs, float64(lowest.X))
			ys = append(ys, float64(lowest.Y))
		}
		if len(xs) < 2 {
			continue
		}

		_, slope := stat.LinearRegression(xs, ys, nil, false)
		if math.IsNaN(slope) || math.IsInf(slope, 0) {
			continue
		}
		out = append(out, AngleSample{
			Angle:  foldAngle(math.Atan(slope) * 180 / math.Pi),
			Weight: r.Area * squareness(r.AspectRatio),
			Method: MethodBaseline,
		})
	}
	return out
}

// houghAngles measures long straight segments after closing small horizontal
// gaps.
func (e *SkewEstimator) houghAngles(bin *image.Gray) []AngleSample {
	closed := e.proc.MorphClose(bin, houghKernelWidth, houghKernelHeight)
	params := imaging.DefaultHoughParams(houghVotes, houghMinLength, houghMaxGap)

	out := make([]AngleSample, 0)
	for _, s := range e.proc.HoughLinesP(closed, params) {
		if s.P2.X-s.P1.X <= 1 {
			continue
		}
		angle := foldAngle(s.AngleDegrees())
		if math.Abs(angle) > maxSkewDegrees {
			continue
		}
		out = append(out, AngleSample{
			Angle:  angle,
			Weight: s.Length(),
			Method: MethodHough,
		})
	}
	return out
}

// consensus filters outliers by interquartile range and the skew limit, then
// returns the weighted mean of the survivors and how many there were. With
// no survivors it returns the median of all samples.
func consensus(samples []AngleSample) (float64, int) {
	n := len(samples)
	if n == 0 {
		return 0, 0
	}

	sorted := make([]AngleSample, n)
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Angle < sorted[j].Angle })

	q1 := sorted[n/4].Angle
	q3 := sorted[3*n/4].Angle
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	angles := make([]float64, 0, n)
	weights := make([]float64, 0, n)
	totalWeight := 0.0
	for _, s := range sorted {
		if s.Angle < lo || s.Angle > hi || math.Abs(s.Angle) > maxSkewDegrees {
			continue
		}
		angles = append(angles, s.Angle)
		weights = append(weights, s.Weight)
		totalWeight += s.Weight
	}

	if len(angles) == 0 {
		return sorted[n/2].Angle, 0
	}

	var mean float64
	if totalWeight == 0 {
		mean = stat.Mean(angles, nil)
	} else {
		mean = stat.Mean(angles, weights)
	}
	return math.Max(-maxSkewDegrees, math.Min(maxSkewDegrees, mean)), len(angles)
}

// foldAngle maps an angle into [-45, 45] assuming 90 degree symmetry.
func foldAngle(deg float64) float64 {
	if deg > 45 {
		deg -= 90
	} else if deg < -45 {
		deg += 90
	}
	return deg
}

// squareness is min(aspect, 1/aspect).
func squareness(aspect float64) float64 {
	if aspect <= 0 {
		return 0
	}
	return math.Min(aspect, 1/aspect)
}
