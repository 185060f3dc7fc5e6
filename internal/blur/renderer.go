package blur

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Dezexus/SubVision/internal/imaging"
	"github.com/Dezexus/SubVision/internal/subtitle"
	"github.com/Dezexus/SubVision/internal/video"
)

const (
	renderQueueSize      = 30
	progressReportEvery  = 25
	renderPlanTailFrames = 5
)

// ProgressFunc observes render progress as processed frames over the
// total frame count.
type ProgressFunc func(done, total int)

// Renderer drives the blurred-video pipeline: decode, per-frame
// effect, encode, then the audio mux. One Renderer serves one render;
// Stop aborts it from any goroutine.
type Renderer struct {
	backend  imaging.Backend
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRenderer(backend imaging.Backend) *Renderer {
	if backend == nil {
		backend = imaging.Auto()
	}
	return &Renderer{
		backend: backend,
		stopCh:  make(chan struct{}),
	}
}

// Stop aborts the render. Safe to call repeatedly.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Renderer) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Preview extracts one frame and applies the effect for the given
// caption text, without touching the source file.
func (r *Renderer) Preview(videoPath string, frameIndex int, s Settings, text string) (*image.RGBA, error) {
	frame, err := video.ExtractFrame(videoPath, frameIndex)
	if err != nil {
		return nil, fmt.Errorf("preview frame %d: %w", frameIndex, err)
	}
	roi := CalcROI(text, frame.Bounds().Dx(), frame.Bounds().Dy(), s)
	ApplyBlur(frame, roi, s, 1.0, nil, r.backend)
	return frame, nil
}

type blurTarget struct {
	roi   image.Rectangle
	subID int
}

// buildPlan maps frame indices to the cue that must be obscured on
// them. Cue ranges are widened by one frame on each side, and the end
// may run slightly past the reported frame count since containers
// under-report it.
func buildPlan(subs []subtitle.Item, s Settings, info *video.Info) map[int]blurTarget {
	plan := make(map[int]blurTarget)
	for _, sub := range subs {
		text := strings.TrimSpace(sub.Text)
		if text == "" {
			continue
		}
		roi := CalcROI(text, info.Width, info.Height, s)
		if roi.Empty() {
			continue
		}
		startF := max(0, int(sub.Start*info.FPS)-1)
		endF := min(info.TotalFrames+renderPlanTailFrames, int(sub.End*info.FPS)+1)
		for f := startF; f < endF; f++ {
			plan[f] = blurTarget{roi: roi, subID: sub.ID}
		}
	}
	return plan
}

// Render obscures every cue range of subs in videoPath and writes the
// final video with the original audio to outputPath. Returns
// video.ErrCancelled when stopped; a partially written output never
// survives a stop.
func (r *Renderer) Render(videoPath string, subs []subtitle.Item, s Settings, outputPath string, progress ProgressFunc) error {
	// Every exit must release the stage goroutines: the reader and
	// processor block on channel sends guarded only by stopCh, and
	// nobody calls Stop after Render returns with an error.
	defer r.Stop()
	s = s.withDefaults()

	reader, err := video.NewReader(videoPath, 1)
	if err != nil {
		return fmt.Errorf("open render source: %w", err)
	}
	defer reader.Close()
	info := reader.Info()

	ext := filepath.Ext(outputPath)
	tempPath := strings.TrimSuffix(outputPath, ext) + "_temp" + ext

	masks := BestMasks(videoPath, subs, s, info)
	plan := buildPlan(subs, s, info)

	writer, err := video.NewWriter(tempPath, info.Width, info.Height, info.FPS)
	if err != nil {
		return fmt.Errorf("open render sink: %w", err)
	}

	readCh := make(chan *video.Frame, renderQueueSize)
	writeCh := make(chan *image.RGBA, renderQueueSize)
	errCh := make(chan error, 2)

	go func() {
		defer close(readCh)
		for {
			frame, err := reader.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errCh <- err
				}
				return
			}
			select {
			case readCh <- frame:
			case <-r.stopCh:
				return
			}
		}
	}()

	go func() {
		defer close(writeCh)
		for frame := range readCh {
			if r.stopped() {
				return
			}
			if target, ok := plan[frame.Index]; ok {
				ApplyBlur(frame.Image, target.roi, s, 1.0, masks[target.subID], r.backend)
			}
			select {
			case writeCh <- frame.Image:
			case <-r.stopCh:
				return
			}
			if progress != nil && frame.Index%progressReportEvery == 0 {
				progress(frame.Index, info.TotalFrames)
			}
		}
	}()

	for img := range writeCh {
		if r.stopped() {
			break
		}
		if err := writer.WriteFrame(img); err != nil {
			writer.Abort()
			os.Remove(tempPath)
			return fmt.Errorf("render write: %w", err)
		}
	}

	select {
	case err := <-errCh:
		writer.Abort()
		os.Remove(tempPath)
		return fmt.Errorf("render read: %w", err)
	default:
	}

	if r.stopped() {
		writer.Abort()
		os.Remove(tempPath)
		return video.ErrCancelled
	}

	if err := writer.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("finish intermediate: %w", err)
	}

	if progress != nil {
		progress(info.TotalFrames, info.TotalFrames)
	}

	if err := video.MergeWithAudio(tempPath, videoPath, outputPath, r.stopCh); err != nil {
		if errors.Is(err, video.ErrCancelled) {
			os.Remove(tempPath)
			return err
		}
		// The render itself succeeded: promote the intermediate so the
		// work is not lost over a mux failure.
		log.Printf("[Renderer] audio mux failed, delivering intermediate: %v", err)
		os.Remove(outputPath)
		if renameErr := os.Rename(tempPath, outputPath); renameErr != nil {
			return fmt.Errorf("deliver intermediate: %w", renameErr)
		}
		return err
	}
	return nil
}
