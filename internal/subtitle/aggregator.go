package subtitle

// Aggregator folds the per-frame OCR stream into subtitle cues. A cue
// opens on the first valid reading, extends while similar readings
// keep arriving, tolerates a few blank frames, and commits once the
// gap grows past the tolerance or the text changes.
type Aggregator struct {
	minConf       float64
	gapTolerance  int
	frameDuration float64

	items  []Item
	active *event

	// OnCommit, when set, observes each cue as it is committed.
	OnCommit func(Item)
}

const (
	defaultGapTolerance  = 5
	defaultFrameDuration = 0.04
)

// NewAggregator builds an aggregator for a stream at the given fps.
// Readings below minConf are treated the same as empty frames.
func NewAggregator(minConf, fps float64) *Aggregator {
	fd := defaultFrameDuration
	if fps > 0 {
		fd = 1.0 / fps
	}
	return &Aggregator{
		minConf:       minConf,
		gapTolerance:  defaultGapTolerance,
		frameDuration: fd,
	}
}

// AddResult feeds one frame's reading at the given timestamp. Results
// must arrive in timestamp order.
func (a *Aggregator) AddResult(text string, conf, timestamp float64) {
	valid := text != "" && conf >= a.minConf

	if !valid {
		if a.active != nil {
			a.active.gapFrames++
			if a.active.gapFrames > a.gapTolerance {
				a.commit()
			}
		}
		return
	}

	end := timestamp + a.frameDuration
	if a.active == nil {
		a.active = &event{text: text, start: timestamp, end: end, maxConf: conf}
		return
	}
	if Similar(a.active.text, text, SimilarityThreshold) {
		a.active.extend(text, end, conf)
		return
	}
	// Different caption: close the current cue at its last seen end
	// and open a new one.
	a.commit()
	a.active = &event{text: text, start: timestamp, end: end, maxConf: conf}
}

func (a *Aggregator) commit() {
	if a.active == nil {
		return
	}
	item := Item{
		ID:    len(a.items) + 1,
		Start: a.active.start,
		End:   a.active.end,
		Text:  a.active.text,
		Conf:  a.active.maxConf,
	}
	a.items = append(a.items, item)
	a.active = nil
	if a.OnCommit != nil {
		a.OnCommit(item)
	}
}

// Finalize commits any open cue and returns the full list. Calling it
// twice returns the same list.
func (a *Aggregator) Finalize() []Item {
	a.commit()
	return a.items
}
