package subtitle

// Item is one finished subtitle cue. Times are seconds from the start
// of the video. Conf carries the best OCR confidence seen while the
// cue was active; imported cues get 1.0 and the Edited flag.
type Item struct {
	ID     int     `json:"id"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Text   string  `json:"text"`
	Conf   float64 `json:"conf"`
	Edited bool    `json:"isEdited,omitempty"`
}

// event is a cue still being assembled by the aggregator.
type event struct {
	text      string
	start     float64
	end       float64
	maxConf   float64
	gapFrames int
}

// extend pushes the cue's end forward and adopts the new reading when
// it is more confident, or longer at equal confidence.
func (e *event) extend(text string, end, conf float64) {
	e.end = end
	e.gapFrames = 0
	if conf > e.maxConf || (conf == e.maxConf && len(text) > len(e.text)) {
		e.text = text
		e.maxConf = conf
	}
}
