package video

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log"
	"os/exec"
)

// Frame is one decoded video frame with its source index and timestamp
// in seconds.
type Frame struct {
	Index     int
	Timestamp float64
	Image     *image.RGBA
}

// Reader decodes a video file into raw RGB frames through an ffmpeg
// pipe. Decoding starts with hardware acceleration and reopens in
// software when the accelerated pipe dies before producing a frame.
// Step controls sampling: only every step-th frame is returned, the
// rest are read and discarded to keep indices exact.
type Reader struct {
	path string
	step int
	info *Info

	cmd      *exec.Cmd
	pipe     io.ReadCloser
	buf      *bufio.Reader
	rowBytes int

	frameIdx int
	yielded  bool
	hwTried  bool
}

// NewReader probes path and opens the decode pipe.
func NewReader(path string, step int) (*Reader, error) {
	if step < 1 {
		step = 1
	}
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		path:     path,
		step:     step,
		info:     info,
		rowBytes: info.Width * 3,
	}
	if err := r.open(true); err != nil {
		return nil, err
	}
	return r, nil
}

// Info returns the probed stream geometry.
func (r *Reader) Info() *Info { return r.info }

func (r *Reader) open(hwaccel bool) error {
	args := []string{"-v", "error"}
	if hwaccel {
		args = append(args, "-hwaccel", "auto")
		r.hwTried = true
	}
	args = append(args,
		"-i", r.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	cmd := exec.Command("ffmpeg", args...)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open decode pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg for %s: %w", r.path, err)
	}
	r.cmd = cmd
	r.pipe = pipe
	r.buf = bufio.NewReaderSize(pipe, r.rowBytes*4)
	return nil
}

func (r *Reader) reopen() error {
	r.release()
	log.Printf("[VideoReader] hardware decode produced no frames for %s, reopening in software", r.path)
	r.frameIdx = 0
	return r.open(false)
}

// Next returns the next sampled frame, or io.EOF when the stream ends.
func (r *Reader) Next() (*Frame, error) {
	raw := make([]byte, r.rowBytes*r.info.Height)
	for {
		if _, err := io.ReadFull(r.buf, raw); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// A hardware pipe that dies before the first frame
				// gets one software retry.
				if !r.yielded && r.hwTried && r.frameIdx == 0 {
					r.hwTried = false
					if rerr := r.reopen(); rerr != nil {
						return nil, rerr
					}
					continue
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read frame %d: %w", r.frameIdx, err)
		}

		idx := r.frameIdx
		r.frameIdx++
		if idx%r.step != 0 {
			continue
		}
		r.yielded = true

		img := image.NewRGBA(image.Rect(0, 0, r.info.Width, r.info.Height))
		si, di := 0, 0
		for i := 0; i < r.info.Width*r.info.Height; i++ {
			img.Pix[di] = raw[si]
			img.Pix[di+1] = raw[si+1]
			img.Pix[di+2] = raw[si+2]
			img.Pix[di+3] = 0xff
			si += 3
			di += 4
		}
		return &Frame{
			Index:     idx,
			Timestamp: float64(idx) / r.info.FPS,
			Image:     img,
		}, nil
	}
}

func (r *Reader) release() {
	if r.pipe != nil {
		r.pipe.Close()
	}
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
		r.cmd.Wait()
	}
	r.cmd = nil
	r.pipe = nil
}

// Close tears the decode pipe down. Safe to call more than once.
func (r *Reader) Close() error {
	r.release()
	return nil
}
