package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultFPS is assumed when the container does not report a frame rate.
const DefaultFPS = 25.0

// Info describes the primary video stream of a file.
type Info struct {
	Width       int
	Height      int
	FPS         float64
	TotalFrames int
	Duration    float64
	Codec       string
}

type probeOutput struct {
	Streams []struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		CodecName string `json:"codec_name"`
		FrameRate string `json:"r_frame_rate"`
		NbFrames  string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects path with ffprobe and returns the stream geometry.
// Missing frame counts are derived from duration and fps.
func Probe(path string) (*Info, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_name,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w (stderr: %s)", path, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d in %s", s.Width, s.Height, path)
	}

	info := &Info{
		Width:  s.Width,
		Height: s.Height,
		FPS:    parseRate(s.FrameRate),
		Codec:  s.CodecName,
	}
	if info.FPS <= 0 {
		info.FPS = DefaultFPS
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.TotalFrames = n
	} else if info.Duration > 0 {
		info.TotalFrames = int(math.Round(info.Duration * info.FPS))
	}
	return info, nil
}

// parseRate converts an ffprobe rational like "30000/1001" to a float.
func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
