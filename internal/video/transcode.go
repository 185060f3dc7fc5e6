package video

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrCancelled reports that a transcode was aborted by a stop request.
var ErrCancelled = errors.New("transcode cancelled")

const (
	cancelPollInterval = 500 * time.Millisecond
	terminateGrace     = 2 * time.Second
)

// runCancellable executes an ffmpeg command while watching stop. On a
// stop signal the process gets SIGTERM and two seconds to exit before
// it is killed.
func runCancellable(args []string, stop <-chan struct{}) error {
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("ffmpeg exited: %w", err)
			}
			return nil
		case <-ticker.C:
			select {
			case <-stop:
				cmd.Process.Signal(syscall.SIGTERM)
				select {
				case <-done:
				case <-time.After(terminateGrace):
					cmd.Process.Kill()
					<-done
				}
				return ErrCancelled
			default:
			}
		}
	}
}

// MergeWithAudio muxes the processed video stream with the original
// file's audio into outputPath, walking the encoder chain from NVENC
// with audio copy down to software x264 with AAC. The intermediate
// file is removed on success and kept when every encoder fails, so a
// long render is never thrown away over a mux problem.
func MergeWithAudio(processedVideo, originalVideo, outputPath string, stop <-chan struct{}) error {
	base := []string{
		"-y",
		"-i", processedVideo,
		"-i", originalVideo,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-shortest",
	}
	nvenc := []string{"-c:v", "h264_nvenc", "-preset", "p4", "-cq", "23", "-pix_fmt", "yuv420p"}
	x264 := []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p"}

	attempts := [][]string{
		append(append(append([]string{}, base...), nvenc...), "-c:a", "copy", outputPath),
		append(append(append([]string{}, base...), nvenc...), "-c:a", "aac", outputPath),
		append(append(append([]string{}, base...), x264...), "-c:a", "aac", outputPath),
	}

	var err error
	for i, args := range attempts {
		err = runCancellable(args, stop)
		if err == nil {
			os.Remove(processedVideo)
			return nil
		}
		if errors.Is(err, ErrCancelled) {
			os.Remove(outputPath)
			return err
		}
		if i < len(attempts)-1 {
			log.Printf("[Transcoder] encoder attempt %d failed, trying next: %v", i+1, err)
		}
	}
	log.Printf("[Transcoder] all encoders failed, keeping intermediate %s: %v", processedVideo, err)
	return fmt.Errorf("transcode %s: %w", outputPath, err)
}

// ConvertToH264 remuxes input into a plain H.264/AAC MP4. Used when an
// uploaded file carries a codec the decode pipe cannot handle.
func ConvertToH264(input, output string) error {
	args := []string{
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		output,
	}
	never := make(chan struct{})
	if err := runCancellable(args, never); err != nil {
		return fmt.Errorf("convert %s to h264: %w", input, err)
	}
	return nil
}
