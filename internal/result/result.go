// Package result holds the value types produced by the OCR pipeline.
//
// All coordinates are in original-image pixel space with (0,0) at the
// top-left corner, X increasing rightward and Y increasing downward.
package result

import "image"

// Box is an axis-aligned text region in original-image pixel coordinates.
// Boxes produced by detection always have Width > 0 and Height > 0.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box to an image.Rectangle (max corner exclusive).
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// RecognitionResult is the recognized text of a single box.
type RecognitionResult struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
}

// GroupedResult is the OCR output of an image with results grouped into
// reading-ordered lines.
type GroupedResult struct {
	// Text is the whole recognized text: items of a line joined by a space,
	// lines joined by a newline.
	Text string `json:"text"`

	// Lines holds results line by line, each line ordered left to right.
	Lines [][]RecognitionResult `json:"lines"`

	// Confidence is the mean confidence over every result (0 when empty).
	Confidence float64 `json:"confidence"`
}

// FlattenedResult carries the same data as GroupedResult with the line
// structure removed.
type FlattenedResult struct {
	Text       string              `json:"text"`
	Results    []RecognitionResult `json:"results"`
	Confidence float64             `json:"confidence"`
}

// Count returns the number of recognition results across all lines.
func (g *GroupedResult) Count() int {
	n := 0
	for _, line := range g.Lines {
		n += len(line)
	}
	return n
}

// Flatten concatenates the lines in order. Text and Confidence are copied
// unchanged.
func (g *GroupedResult) Flatten() *FlattenedResult {
	results := make([]RecognitionResult, 0, g.Count())
	for _, line := range g.Lines {
		results = append(results, line...)
	}
	return &FlattenedResult{
		Text:       g.Text,
		Results:    results,
		Confidence: g.Confidence,
	}
}

// Empty returns a GroupedResult with no lines, empty text and zero confidence.
func Empty() *GroupedResult {
	return &GroupedResult{Lines: [][]RecognitionResult{}}
}

// Clone returns a deep copy of g.
func (g *GroupedResult) Clone() *GroupedResult {
	lines := make([][]RecognitionResult, len(g.Lines))
	for i, line := range g.Lines {
		lines[i] = append([]RecognitionResult(nil), line...)
	}
	return &GroupedResult{Text: g.Text, Lines: lines, Confidence: g.Confidence}
}
