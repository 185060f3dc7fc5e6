package subtitle

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityThreshold is the sequence ratio above which two readings
// count as the same caption.
const SimilarityThreshold = 0.6

// Similar reports whether two strings read as the same caption,
// comparing character sequences so OCR jitter on a few glyphs does
// not split one cue into two. Empty strings never match anything.
func Similar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio() > threshold
}
