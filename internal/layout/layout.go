// Package layout arranges recognized text boxes into reading order.
//
// Ordering is a two-step heuristic. Results are first sorted with a pairwise
// comparator that treats two boxes as being on the same row when their tops
// are closer than a quarter of their summed heights. The comparator is not
// transitive, so a chain of slightly offset boxes may sort differently than
// true line clustering would. A sequential sweep then splits the sorted
// results into lines by comparing each result with the one before it.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/ironsheep/ocrpipe/internal/result"
)

// lineTolerance scales the current line's average height into the largest
// vertical offset that still continues the line.
const lineTolerance = 0.5

// Assemble orders results for reading and groups them into lines.
// The input slice is not modified.
func Assemble(results []result.RecognitionResult) *result.GroupedResult {
	if len(results) == 0 {
		return result.Empty()
	}

	sorted := make([]result.RecognitionResult, len(results))
	copy(sorted, results)
	SortReadingOrder(sorted)

	lines := GroupLines(sorted)
	return &result.GroupedResult{
		Text:       joinLines(lines),
		Lines:      lines,
		Confidence: meanConfidence(results),
	}
}

// SortReadingOrder sorts results top to bottom, and left to right within a
// row.
func SortReadingOrder(results []result.RecognitionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Box, results[j].Box
		rowThreshold := float64(a.Height+b.Height) / 4
		if math.Abs(float64(a.Y-b.Y)) < rowThreshold {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}

// GroupLines splits sorted results into lines. A result joins the current
// line when its top is within half the line's average height of the
// previous result's top.
func GroupLines(sorted []result.RecognitionResult) [][]result.RecognitionResult {
	if len(sorted) == 0 {
		return [][]result.RecognitionResult{}
	}

	var lines [][]result.RecognitionResult
	current := []result.RecognitionResult{sorted[0]}
	heightSum := float64(sorted[0].Box.Height)

	for i := 1; i < len(sorted); i++ {
		r := sorted[i]
		prev := sorted[i-1]
		avgHeight := heightSum / float64(len(current))

		if math.Abs(float64(r.Box.Y-prev.Box.Y)) <= avgHeight*lineTolerance {
			current = append(current, r)
			heightSum += float64(r.Box.Height)
			continue
		}

		lines = append(lines, current)
		current = []result.RecognitionResult{r}
		heightSum = float64(r.Box.Height)
	}
	return append(lines, current)
}

func joinLines(lines [][]result.RecognitionResult) string {
	text := make([]string, len(lines))
	for i, line := range lines {
		words := make([]string, len(line))
		for j, r := range line {
			words[j] = r.Text
		}
		text[i] = strings.Join(words, " ")
	}
	return strings.Join(text, "\n")
}

func meanConfidence(results []result.RecognitionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}
