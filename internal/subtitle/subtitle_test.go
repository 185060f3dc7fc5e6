package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilar(t *testing.T) {
	assert.True(t, Similar("Hello world", "Hello world!", SimilarityThreshold))
	assert.True(t, Similar("subtitle text", "subtitle test", SimilarityThreshold))
	assert.False(t, Similar("completely different", "nothing alike", SimilarityThreshold))
	assert.False(t, Similar("", "anything", SimilarityThreshold))
	assert.False(t, Similar("anything", "", SimilarityThreshold))
}

func TestAggregatorSingleStaticCaption(t *testing.T) {
	a := NewAggregator(0.8, 25)
	for i := 0; i < 10; i++ {
		a.AddResult("Hello there", 0.9, float64(i)*0.04)
	}
	items := a.Finalize()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].ID)
	assert.Equal(t, "Hello there", items[0].Text)
	assert.Equal(t, 0.0, items[0].Start)
	// end of last frame, not its start
	assert.InDelta(t, 9*0.04+0.04, items[0].End, 1e-9)
	assert.InDelta(t, 0.9, items[0].Conf, 1e-9)
}

func TestAggregatorTwoAdjacentCaptions(t *testing.T) {
	a := NewAggregator(0.8, 25)
	a.AddResult("First caption line", 0.9, 0.0)
	a.AddResult("First caption line", 0.9, 0.04)
	a.AddResult("Totally new words here", 0.85, 0.08)
	items := a.Finalize()
	require.Len(t, items, 2)
	assert.Equal(t, "First caption line", items[0].Text)
	assert.Equal(t, "Totally new words here", items[1].Text)
	assert.Equal(t, 0.08, items[1].Start)
	assert.LessOrEqual(t, items[0].End, items[1].Start+1e-9, "cues stay ordered")
}

func TestAggregatorGapTolerance(t *testing.T) {
	a := NewAggregator(0.8, 25)
	a.AddResult("Persistent caption", 0.9, 0.0)
	// up to gapTolerance empty frames keep the cue open
	for i := 1; i <= 5; i++ {
		a.AddResult("", 0, float64(i)*0.04)
	}
	a.AddResult("Persistent caption", 0.9, 0.24)
	items := a.Finalize()
	require.Len(t, items, 1, "short dropout must not split the cue")

	b := NewAggregator(0.8, 25)
	b.AddResult("Short caption", 0.9, 0.0)
	for i := 1; i <= 6; i++ {
		b.AddResult("", 0, float64(i)*0.04)
	}
	b.AddResult("Short caption", 0.9, 0.28)
	assert.Len(t, b.Finalize(), 2, "gap past tolerance commits the cue")
}

func TestAggregatorAdoptsBetterReading(t *testing.T) {
	a := NewAggregator(0.5, 25)
	a.AddResult("Hallo world", 0.6, 0.0)
	a.AddResult("Hello world", 0.9, 0.04)
	a.AddResult("Hello warld", 0.7, 0.08)
	items := a.Finalize()
	require.Len(t, items, 1)
	assert.Equal(t, "Hello world", items[0].Text)
	assert.InDelta(t, 0.9, items[0].Conf, 1e-9)
}

func TestAggregatorLowConfidenceIsBlank(t *testing.T) {
	a := NewAggregator(0.8, 25)
	a.AddResult("noise", 0.2, 0.0)
	assert.Empty(t, a.Finalize())
}

func TestAggregatorOnCommitFires(t *testing.T) {
	a := NewAggregator(0.8, 25)
	var seen []Item
	a.OnCommit = func(it Item) { seen = append(seen, it) }
	a.AddResult("One caption here", 0.9, 0.0)
	a.AddResult("Another caption now", 0.9, 0.04)
	a.Finalize()
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[0].ID)
	assert.Equal(t, 2, seen[1].ID)
}

func TestAggregatorFinalizeIdempotent(t *testing.T) {
	a := NewAggregator(0.8, 25)
	a.AddResult("Caption", 0.9, 0.0)
	first := a.Finalize()
	second := a.Finalize()
	assert.Equal(t, first, second)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", FormatTimestamp(0))
	assert.Equal(t, "00:01:05,500", FormatTimestamp(65.5))
	assert.Equal(t, "01:00:00,042", FormatTimestamp(3600.042))
	assert.Equal(t, "00:00:00,000", FormatTimestamp(-1))
}

func TestSRTRoundTrip(t *testing.T) {
	in := []Item{
		{ID: 1, Start: 0, End: 1.5, Text: "First cue"},
		{ID: 2, Start: 2, End: 4.25, Text: "Second cue\nwith two lines"},
	}
	out := ParseSRT(WriteSRT(in))
	require.Len(t, out, 2)
	assert.Equal(t, "First cue", out[0].Text)
	assert.Equal(t, 1.5, out[0].End)
	assert.Equal(t, "Second cue\nwith two lines", out[1].Text)
	assert.Equal(t, 1.0, out[1].Conf)
	assert.True(t, out[1].Edited)
}

func TestParseSRTStripsTagsAndCRLF(t *testing.T) {
	content := "1\r\n00:00:01,000 --> 00:00:02,000\r\n<i>Styled</i> text\r\n\r\n"
	items := ParseSRT(content)
	require.Len(t, items, 1)
	assert.Equal(t, "Styled text", items[0].Text)
	assert.Equal(t, 1.0, items[0].Start)
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	content := "1\n00:00:01,000 --> 00:00:02,000\nGood cue\n\nnot-a-number\njunk line\n\n3\n00:00:05,000 --> 00:00:06,000\nAnother good cue\n"
	items := ParseSRT(content)
	require.Len(t, items, 2)
	assert.Equal(t, "Good cue", items[0].Text)
	assert.Equal(t, 3, items[1].ID)
}
