package video

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// Writer encodes raw RGB frames into an intermediate video file
// through an ffmpeg pipe. The intermediate uses a fast low-loss codec;
// the final deliverable goes through the Transcoder afterwards.
type Writer struct {
	width  int
	height int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	rgb    []byte
	closed bool
}

// NewWriter opens an encode pipe producing path at the given geometry.
func NewWriter(path string, width, height int, fps float64) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid writer dimensions %dx%d", width, height)
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	cmd := exec.Command("ffmpeg",
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		"-c:v", "mpeg4",
		"-q:v", "5",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open encode pipe: %w", err)
	}
	w := &Writer{
		width:  width,
		height: height,
		cmd:    cmd,
		stdin:  stdin,
		rgb:    make([]byte, width*height*3),
	}
	cmd.Stderr = &w.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}
	return w, nil
}

// WriteFrame pushes one frame into the encoder.
func (w *Writer) WriteFrame(img *image.RGBA) error {
	if w.closed {
		return fmt.Errorf("write to closed encoder")
	}
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}
	di := 0
	for y := 0; y < w.height; y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w.width; x++ {
			w.rgb[di] = img.Pix[si]
			w.rgb[di+1] = img.Pix[si+1]
			w.rgb[di+2] = img.Pix[si+2]
			si += 4
			di += 3
		}
	}
	if _, err := w.stdin.Write(w.rgb); err != nil {
		return fmt.Errorf("write frame to encoder: %w", err)
	}
	return nil
}

// Close flushes the pipe and waits for the encoder to exit.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder exited: %w (stderr: %s)", err, w.stderr.String())
	}
	return nil
}

// Abort kills the encoder without flushing. Used on cancellation so a
// partial output never looks finished.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.stdin.Close()
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.cmd.Wait()
}
