package blur

import (
	"image"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Settings control where the obscuring region sits and how it is
// rendered. Zero values are replaced by defaults tuned for typical
// burned-in subtitles.
type Settings struct {
	// Mode is "hybrid" (inpaint + blur) or "blur" (blur only).
	Mode     string  `json:"mode"`
	FontSize int     `json:"font_size"`
	PaddingX int     `json:"padding_x"`
	PaddingY float64 `json:"padding_y"`
	// Sigma sets the box blur radius; kernel size is sigma*2+1.
	Sigma int `json:"sigma"`
	// Feather is the soft edge width of the blended region.
	Feather         int     `json:"feather"`
	WidthMultiplier float64 `json:"width_multiplier"`
	// Y is the text baseline in pixels from the top; 0 means
	// height-50.
	Y int `json:"y"`
}

// DefaultSettings returns the standard subtitle blur parameters.
func DefaultSettings() Settings {
	return Settings{
		Mode:            "hybrid",
		FontSize:        21,
		PaddingX:        40,
		PaddingY:        2.0,
		Sigma:           5,
		Feather:         30,
		WidthMultiplier: 1.0,
	}
}

// withDefaults fills unset fields so partially specified client
// settings behave predictably.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Mode == "" {
		s.Mode = d.Mode
	}
	if s.FontSize <= 0 {
		s.FontSize = d.FontSize
	}
	if s.PaddingX <= 0 {
		s.PaddingX = d.PaddingX
	}
	if s.PaddingY <= 0 {
		s.PaddingY = d.PaddingY
	}
	if s.WidthMultiplier <= 0 {
		s.WidthMultiplier = d.WidthMultiplier
	}
	return s
}

const (
	wideASCII = "mwWM@OQG"
	thinASCII = "il1.,!I|:;tfj"
)

// charWeight maps one rune to its width as a fraction of the font
// size. East-Asian full-width glyphs run wider than the em square;
// narrow punctuation and stems run far under it.
func charWeight(r rune) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 1.1
	}
	if strings.ContainsRune(thinASCII, r) {
		return 0.35
	}
	if strings.ContainsRune(wideASCII, r) {
		return 0.95
	}
	if unicode.IsUpper(r) {
		return 0.8
	}
	if unicode.IsDigit(r) {
		return 0.65
	}
	return 0.65
}

// EstimateTextWidth approximates the rendered pixel width of text at
// the given font size.
func EstimateTextWidth(text string, fontSize int, multiplier float64) int {
	if text == "" {
		return 0
	}
	sum := 0.0
	for _, r := range text {
		sum += charWeight(r)
	}
	return int(math.Ceil(sum * float64(fontSize) * multiplier))
}

// CalcROI computes the obscuring rectangle for text centered
// horizontally at the configured baseline, padded and clamped to the
// frame. Empty text yields an empty rectangle.
func CalcROI(text string, frameW, frameH int, s Settings) image.Rectangle {
	if strings.TrimSpace(text) == "" {
		return image.Rectangle{}
	}
	s = s.withDefaults()

	yPos := s.Y
	if yPos <= 0 {
		yPos = frameH - 50
	}

	textH := s.FontSize + 4
	textW := EstimateTextWidth(text, s.FontSize, s.WidthMultiplier)
	padY := int(float64(textH) * s.PaddingY)

	x := (frameW - textW) / 2
	y := yPos - textH

	finalX := max(0, x-s.PaddingX)
	finalY := max(0, y-padY)
	rawW := textW + s.PaddingX*2
	rawH := textH + padY*2
	finalW := min(frameW-finalX, rawW)
	finalH := min(frameH-finalY, rawH)
	if finalW <= 0 || finalH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(finalX, finalY, finalX+finalW, finalY+finalH)
}
