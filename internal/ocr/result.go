package ocr

import (
	"sort"
	"strings"
)

// Span is one recognized text box: the text, its confidence and the
// quad corners of its bounding box, clockwise from the top-left.
type Span struct {
	Text  string
	Score float64
	Box   [][2]float64
}

// Result is the per-frame OCR outcome after filtering and merging.
// An empty Text means the frame carried no readable subtitle.
type Result struct {
	Text string
	Conf float64
}

// midY returns the vertical midpoint of a span's box, used to order
// multi-line captions top to bottom. Spans without a full quad sort
// first.
func midY(box [][2]float64) float64 {
	if len(box) < 3 {
		return 0
	}
	return (box[0][1] + box[2][1]) / 2.0
}

// ParseSpans filters spans by confidence, orders them vertically and
// merges them into a single caption with the average confidence of
// the kept spans.
func ParseSpans(spans []Span, confThresh float64) Result {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.Score < confThresh {
			continue
		}
		s.Text = text
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return Result{}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return midY(valid[i].Box) < midY(valid[j].Box)
	})

	parts := make([]string, len(valid))
	sum := 0.0
	for i, s := range valid {
		parts[i] = s.Text
		sum += s.Score
	}
	return Result{
		Text: strings.Join(parts, " "),
		Conf: sum / float64(len(valid)),
	}
}
