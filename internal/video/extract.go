package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strconv"
	"time"

	"github.com/Dezexus/SubVision/internal/imaging"
)

const extractTimeout = 5 * time.Second

// ExtractFrame pulls a single frame out of a video file. The index is
// clamped to the last frame when it runs past the end. Extraction is
// retried through progressively blunter paths: an accelerated rawvideo
// seek, the same seek in software, and finally a single-JPEG seek that
// tolerates streams the rawvideo path cannot decode.
func ExtractFrame(path string, index int) (*image.RGBA, error) {
	if path == "" {
		return nil, fmt.Errorf("extract frame: empty path")
	}
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		index = 0
	}
	if info.TotalFrames > 0 && index >= info.TotalFrames {
		index = info.TotalFrames - 1
	}
	ts := float64(index) / info.FPS

	if img, err := extractRaw(path, ts, info, true); err == nil {
		return img, nil
	}
	if img, err := extractRaw(path, ts, info, false); err == nil {
		return img, nil
	}
	return extractJPEG(path, ts)
}

func extractRaw(path string, ts float64, info *Info, hwaccel bool) (*image.RGBA, error) {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	args := []string{"-v", "error"}
	if hwaccel {
		args = append(args, "-hwaccel", "auto")
	}
	args = append(args,
		"-ss", strconv.FormatFloat(ts, 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rawvideo seek: %w", err)
	}
	want := info.Width * info.Height * 3
	if stdout.Len() < want {
		return nil, fmt.Errorf("rawvideo seek: short frame (%d of %d bytes)", stdout.Len(), want)
	}

	raw := stdout.Bytes()
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	si, di := 0, 0
	for i := 0; i < info.Width*info.Height; i++ {
		img.Pix[di] = raw[si]
		img.Pix[di+1] = raw[si+1]
		img.Pix[di+2] = raw[si+2]
		img.Pix[di+3] = 0xff
		si += 3
		di += 4
	}
	return img, nil
}

func extractJPEG(path string, ts float64) (*image.RGBA, error) {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-v", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("jpeg seek: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("jpeg seek: no frame at %.3fs", ts)
	}
	decoded, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return imaging.ToRGBA(decoded), nil
}
