package ws

import "github.com/Dezexus/SubVision/internal/subtitle"

// Event type tags sent over the session socket.
const (
	TypeLog            = "log"
	TypeSubtitleNew    = "subtitle_new"
	TypeSubtitleUpdate = "subtitle_update"
	TypeProgress       = "progress"
	TypeFinish         = "finish"
	TypePong           = "pong"
)

// LogMessage carries a human-readable processing log line.
type LogMessage struct {
	Type string `json:"type"`
	Text string `json:"message"`
}

// SubtitleMessage announces a committed cue (subtitle_new) or a
// revision of the still-open cue (subtitle_update).
type SubtitleMessage struct {
	Type string        `json:"type"`
	Item subtitle.Item `json:"subtitle"`
}

// ProgressMessage reports processing progress. ETA is formatted MM:SS.
type ProgressMessage struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percent"`
	Frame   int     `json:"frame"`
	Total   int     `json:"total"`
	ETA     string  `json:"eta,omitempty"`
}

// FinishMessage is the terminal event of a session: exactly one is
// sent, with Success false on stop or failure. DownloadURL points at
// the produced artifact when a successful run has one.
type FinishMessage struct {
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

func NewLog(text string) LogMessage {
	return LogMessage{Type: TypeLog, Text: text}
}

func NewSubtitle(item subtitle.Item) SubtitleMessage {
	return SubtitleMessage{Type: TypeSubtitleNew, Item: item}
}

func NewSubtitleUpdate(item subtitle.Item) SubtitleMessage {
	return SubtitleMessage{Type: TypeSubtitleUpdate, Item: item}
}

func NewProgress(percent float64, frame, total int, eta string) ProgressMessage {
	return ProgressMessage{Type: TypeProgress, Percent: percent, Frame: frame, Total: total, ETA: eta}
}

func NewFinish(success bool, downloadURL, errText string) FinishMessage {
	return FinishMessage{Type: TypeFinish, Success: success, DownloadURL: downloadURL, Error: errText}
}
