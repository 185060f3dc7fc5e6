package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormatTimestamp renders seconds as an SRT timestamp, HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	ms := int((seconds - float64(total)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total%3600)/60, total%60, ms)
}

// WriteSRT renders cues as an SRT document. Cues are numbered from 1
// in the order given, ignoring their stored IDs, so an edited list
// with holes still produces a valid file.
func WriteSRT(items []Item) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(it.Start), FormatTimestamp(it.End), it.Text)
	}
	return b.String()
}

var (
	timesRe = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2},\d{3}) --> (\d{2}:\d{2}:\d{2},\d{3})`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
)

// ParseSRT parses SRT content into cues. Line endings are normalized
// first, HTML styling tags are stripped so downstream width estimates
// see the visible text, and malformed blocks are skipped rather than
// failing the whole document. Imported cues carry Conf 1.0 and the
// Edited flag.
func ParseSRT(content string) []Item {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var items []Item
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		m := timesRe.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}
		start, err1 := parseTimestamp(m[1])
		end, err2 := parseTimestamp(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		text := tagRe.ReplaceAllString(strings.TrimSpace(strings.Join(lines[2:], "\n")), "")
		items = append(items, Item{
			ID:     id,
			Start:  start,
			End:    end,
			Text:   text,
			Conf:   1.0,
			Edited: true,
		})
	}
	return items
}

func parseTimestamp(s string) (float64, error) {
	var h, m, sec, ms int
	if _, err := fmt.Sscanf(s, "%02d:%02d:%02d,%03d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return float64(h*3600+m*60+sec) + float64(ms)/1000.0, nil
}
