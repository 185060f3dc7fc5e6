package ws

import "github.com/Dezexus/SubVision/internal/subtitle"

// Emitter is the session-event surface the workers depend on, so
// processing code never imports the socket machinery directly and
// tests can capture events with a stub.
type Emitter interface {
	Log(text string)
	SubtitleNew(item subtitle.Item)
	SubtitleUpdate(item subtitle.Item)
	Progress(percent float64, frame, total int, eta string)
	Finish(success bool, downloadURL, errText string)
}

// busEmitter routes one session's events to its client over the hub.
type busEmitter struct {
	hub      *Hub
	clientID string
}

// NewEmitter binds an Emitter to clientID on the hub.
func NewEmitter(hub *Hub, clientID string) Emitter {
	return &busEmitter{hub: hub, clientID: clientID}
}

func (e *busEmitter) Log(text string) {
	e.hub.Send(e.clientID, NewLog(text))
}

func (e *busEmitter) SubtitleNew(item subtitle.Item) {
	e.hub.Send(e.clientID, NewSubtitle(item))
}

func (e *busEmitter) SubtitleUpdate(item subtitle.Item) {
	e.hub.Send(e.clientID, NewSubtitleUpdate(item))
}

func (e *busEmitter) Progress(percent float64, frame, total int, eta string) {
	e.hub.Send(e.clientID, NewProgress(percent, frame, total, eta))
}

func (e *busEmitter) Finish(success bool, downloadURL, errText string) {
	e.hub.Send(e.clientID, NewFinish(success, downloadURL, errText))
}
