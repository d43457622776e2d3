package recognition

// Options configures line recognition.
type Options struct {
	// ImageHeight is the model input height. Crops are scaled to it
	// preserving aspect ratio.
	ImageHeight int

	// InputName and OutputName select the model tensors. Empty names use the
	// session's first input and output.
	InputName  string
	OutputName string

	// Concurrency bounds how many boxes of one image are recognized at once.
	Concurrency int
}

// DefaultOptions returns the standard recognition settings.
func DefaultOptions() Options {
	return Options{
		ImageHeight: 48,
		Concurrency: 4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ImageHeight <= 0 {
		o.ImageHeight = d.ImageHeight
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}
