package server

import "github.com/Dezexus/SubVision/internal/blur"

// renderJob adapts a blur render to the session manager's Job shape.
// The launcher closes done when the render function returns.
type renderJob struct {
	renderer *blur.Renderer
	done     chan struct{}
}

func newRenderJob(renderer *blur.Renderer) *renderJob {
	return &renderJob{renderer: renderer, done: make(chan struct{})}
}

func (j *renderJob) Stop()                 { j.renderer.Stop() }
func (j *renderJob) Done() <-chan struct{} { return j.done }
