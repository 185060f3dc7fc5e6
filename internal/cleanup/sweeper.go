// Package cleanup removes stale artifacts from the cache directory:
// videos and SRT files nobody downloaded, and chunk directories of
// uploads that were never completed.
package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sweeper deletes cache entries older than MaxAge on every Sweep.
type Sweeper struct {
	cacheDir string
	maxAge   time.Duration
}

func NewSweeper(cacheDir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{cacheDir: cacheDir, maxAge: maxAge}
}

// Sweep runs one pass and returns the number of entries removed.
func (s *Sweeper) Sweep() int {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Cleanup] read cache dir: %v", err)
		}
		return 0
	}

	for _, e := range entries {
		if e.Name() == ".temp" {
			removed += s.sweepUploads(filepath.Join(s.cacheDir, e.Name()), cutoff)
			continue
		}
		path := filepath.Join(s.cacheDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[Cleanup] remove %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("[Cleanup] removed %d stale cache entries", removed)
	}
	return removed
}

// sweepUploads removes abandoned chunk directories. Age is judged by
// the newest chunk, so an upload still receiving data survives.
func (s *Sweeper) sweepUploads(tempDir string, cutoff time.Time) int {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(tempDir, e.Name())
		if newestModTime(dir).After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[Cleanup] remove upload dir %s: %v", dir, err)
			continue
		}
		removed++
	}
	return removed
}

func newestModTime(dir string) time.Time {
	newest := time.Time{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newest
	}
	if info, err := os.Stat(dir); err == nil {
		newest = info.ModTime()
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}

// Run sweeps on a fixed interval until stop closes. One sweep runs
// immediately at startup.
func (s *Sweeper) Run(interval time.Duration, stop <-chan struct{}) {
	s.Sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-stop:
			return
		}
	}
}
