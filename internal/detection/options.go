package detection

// Options configures detection preprocessing and postprocessing.
type Options struct {
	// AutoDeskew runs a skew-estimation pass and rotates the image before
	// the detection pass whose boxes are used.
	AutoDeskew bool

	// Mean and Std normalize each RGB channel: (pixel/255 - Mean[c]) / Std[c].
	// All-zero Mean or any zero Std uses the defaults.
	Mean [3]float64
	Std  [3]float64

	// MaxSideLength bounds the longer side of the model input before padding.
	MaxSideLength int

	// PaddingVertical and PaddingHorizontal expand every box by these
	// fractions of its height. Zero leaves that side unpadded.
	PaddingVertical   float64
	PaddingHorizontal float64

	// MinimumAreaThreshold discards contours whose bounding rectangle area
	// is at or below it. The skew estimator keeps regions at or above it.
	// Zero uses the default.
	MinimumAreaThreshold int

	// BinarizeThreshold is the probability at or below which a map pixel is
	// background when extracting boxes. Zero uses the default.
	BinarizeThreshold float64

	// InputName and OutputName select the model tensors. Empty names use the
	// session's first input and output.
	InputName  string
	OutputName string
}

// DefaultOptions returns the standard detection settings.
func DefaultOptions() Options {
	return Options{
		AutoDeskew:           false,
		Mean:                 [3]float64{0.485, 0.456, 0.406},
		Std:                  [3]float64{0.229, 0.224, 0.225},
		MaxSideLength:        960,
		PaddingVertical:      0.4,
		PaddingHorizontal:    0.6,
		MinimumAreaThreshold: 20,
		BinarizeThreshold:    0.3,
	}
}

// withDefaults fills zero-valued fields that would make detection unusable.
// Zero paddings are kept; they mean unpadded boxes.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSideLength <= 0 {
		o.MaxSideLength = d.MaxSideLength
	}
	if o.Mean == ([3]float64{}) {
		o.Mean = d.Mean
	}
	for c := 0; c < 3; c++ {
		if o.Std[c] == 0 {
			o.Std = d.Std
			break
		}
	}
	if o.MinimumAreaThreshold <= 0 {
		o.MinimumAreaThreshold = d.MinimumAreaThreshold
	}
	if o.BinarizeThreshold <= 0 {
		o.BinarizeThreshold = d.BinarizeThreshold
	}
	return o
}
