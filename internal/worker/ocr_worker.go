package worker

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dezexus/SubVision/internal/imaging"
	"github.com/Dezexus/SubVision/internal/ocr"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/video"
	"github.com/Dezexus/SubVision/internal/ws"
)

const (
	frameQueueSize  = 30
	batchSize       = 4
	pollInterval    = 200 * time.Millisecond
	watchdogTimeout = 45 * time.Second
)

// State describes where a worker is in its lifecycle. It only moves
// forward: Created -> Running -> one of the terminal states.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateSucceeded
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Params identify one OCR session and its inputs.
type Params struct {
	SessionID  string
	VideoPath  string
	OutputPath string
	Lang       string
	UseGPU     bool
	// ROI is the subtitle region in full-frame pixels.
	ROI image.Rectangle
}

type frameItem struct {
	index     int
	timestamp float64
	img       *image.RGBA
	skipped   bool
}

// frameBatch accumulates stream items until enough frames actually
// need inference. Skipped frames ride along for ordering but do not
// count toward the trigger, otherwise heavy smart-skip degenerates to
// near-per-frame engine calls.
type frameBatch struct {
	items []frameItem
	valid int
}

func (b *frameBatch) add(item frameItem) {
	b.items = append(b.items, item)
	if !item.skipped && item.img != nil {
		b.valid++
	}
}

func (b *frameBatch) full() bool { return b.valid >= batchSize }

func (b *frameBatch) reset() {
	b.items = b.items[:0]
	b.valid = 0
}

// Worker runs one OCR session: a producer goroutine decodes and
// preprocesses frames into a bounded queue, the worker's own
// goroutine batches them through the OCR engine and folds the
// readings into cues. Exactly one finish event is emitted no matter
// how the session ends.
type Worker struct {
	params  Params
	cfg     Config
	engine  *ocr.Engine
	emitter ws.Emitter
	backend imaging.Backend

	frameCh  chan frameItem
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	state    atomic.Int32
}

func NewWorker(params Params, cfg Config, engine *ocr.Engine, emitter ws.Emitter, backend imaging.Backend) *Worker {
	if backend == nil {
		backend = imaging.Auto()
	}
	return &Worker{
		params:  params,
		cfg:     cfg,
		engine:  engine,
		emitter: emitter,
		backend: backend,
		frameCh: make(chan frameItem, frameQueueSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Stop requests cancellation. Safe to call repeatedly and from any
// goroutine.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Done is closed when the worker has fully exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) stopped() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) produce(reader *video.Reader, pipeline *imaging.Pipeline, errCh chan<- error) {
	defer close(w.frameCh)
	for {
		if w.stopped() {
			return
		}
		frame, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				errCh <- err
			}
			return
		}
		img, skipped := pipeline.Process(frame.Image)
		item := frameItem{index: frame.Index, timestamp: frame.Timestamp, img: img, skipped: skipped}
		select {
		case w.frameCh <- item:
		case <-w.stopCh:
			return
		}
	}
}

// Run executes the session to completion. Call it in its own
// goroutine; observers use Done and State.
func (w *Worker) Run() {
	defer close(w.done)
	w.state.Store(int32(StateRunning))
	w.emitter.Log("--- START OCR ---")

	err := w.process()
	switch {
	case err == nil:
		w.state.Store(int32(StateSucceeded))
		w.emitter.Finish(true, "", "")
	case errors.Is(err, errStopped):
		w.state.Store(int32(StateCancelled))
		w.emitter.Log("Process stopped by user.")
		w.emitter.Finish(false, "", "")
	default:
		w.state.Store(int32(StateFailed))
		log.Printf("[OCRWorker] session %s failed: %v", w.params.SessionID, err)
		w.emitter.Log(fmt.Sprintf("CRITICAL ERROR: %v", err))
		w.emitter.Finish(false, "", err.Error())
	}
}

var errStopped = errors.New("worker stopped")

func (w *Worker) process() error {
	reader, err := video.NewReader(w.params.VideoPath, w.cfg.Step)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer reader.Close()
	info := reader.Info()

	pipeline := imaging.NewPipeline(imaging.PipelineOptions{
		ROI:             w.params.ROI,
		SmartSkip:       w.cfg.SmartSkip,
		DenoiseStrength: w.cfg.DenoiseStrength,
		ScaleFactor:     w.cfg.ScaleFactor,
		Sharpen:         true,
	}, w.backend)

	agg := subtitle.NewAggregator(w.cfg.MinConf, info.FPS)
	agg.OnCommit = w.emitter.SubtitleNew

	errCh := make(chan error, 1)
	go w.produce(reader, pipeline, errCh)

	var (
		pending    frameBatch
		lastResult ocr.Result
		startTime  = time.Now()
		lastFrame  = time.Now()
	)

consume:
	for {
		select {
		case <-w.stopCh:
			return errStopped
		case item, ok := <-w.frameCh:
			if !ok {
				w.flush(pending.items, &lastResult, agg, info, startTime)
				break consume
			}
			lastFrame = time.Now()
			pending.add(item)
			if pending.full() {
				w.flush(pending.items, &lastResult, agg, info, startTime)
				pending.reset()
			}
		case <-time.After(pollInterval):
			if time.Since(lastFrame) > watchdogTimeout {
				return fmt.Errorf("pipeline stalled: no frames for %s", watchdogTimeout)
			}
			if len(pending.items) > 0 {
				w.flush(pending.items, &lastResult, agg, info, startTime)
				pending.reset()
			}
		}
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("frame producer: %w", err)
	default:
	}
	if w.stopped() {
		return errStopped
	}

	items := agg.Finalize()
	w.emitter.Log(fmt.Sprintf("Smart Skip: %d frames", pipeline.SkippedCount()))
	if err := os.WriteFile(w.params.OutputPath, []byte(subtitle.WriteSRT(items)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// flush OCRs the frames of a batch in one engine call and feeds every
// reading to the aggregator in stream order. Skipped frames reuse the
// last real reading so a static caption keeps extending its cue.
func (w *Worker) flush(batch []frameItem, lastResult *ocr.Result, agg *subtitle.Aggregator, info *video.Info, startTime time.Time) {
	if len(batch) == 0 {
		return
	}

	frames := make([]*image.RGBA, 0, len(batch))
	slots := make([]int, 0, len(batch))
	for i, item := range batch {
		if !item.skipped && item.img != nil {
			frames = append(frames, item.img)
			slots = append(slots, i)
		}
	}
	results := w.engine.PredictBatch(frames, parseConfThreshold)

	ocrResults := make(map[int]ocr.Result, len(slots))
	for i, slot := range slots {
		ocrResults[slot] = results[i]
	}

	for i, item := range batch {
		var res ocr.Result
		switch {
		case item.skipped:
			res = *lastResult
		case item.img != nil:
			res = ocrResults[i]
			*lastResult = res
		}
		agg.AddResult(res.Text, res.Conf, item.timestamp)
		w.reportProgress(item.index, info.TotalFrames, startTime)
	}
}

// parseConfThreshold filters individual OCR spans; the aggregator's
// MinConf gates whole readings separately.
const parseConfThreshold = 0.5

func (w *Worker) reportProgress(current, total int, startTime time.Time) {
	if total <= 0 {
		return
	}
	eta := "--:--"
	if current > 0 {
		avg := time.Since(startTime).Seconds() / float64(current+1)
		etaSec := int(float64(total-current) * avg)
		eta = fmt.Sprintf("%02d:%02d", etaSec/60, etaSec%60)
	}
	percent := float64(current) / float64(total) * 100
	w.emitter.Progress(percent, current, total, eta)
}
