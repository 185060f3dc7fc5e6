package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidID rejects upload ids that could escape the chunk
// directory.
var ErrInvalidID = errors.New("invalid upload id")

var idRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Manager stores upload chunks in per-upload directories under
// <dir>/.temp and assembles them into the final file once every chunk
// has arrived. Chunks may arrive out of order and may be re-sent;
// writes go through a temp file and rename so a torn upload never
// leaves a half chunk behind.
type Manager struct {
	dir     string
	tempDir string
	mu      sync.Mutex
}

func NewManager(dir string) (*Manager, error) {
	tempDir := filepath.Join(dir, ".temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload temp dir: %w", err)
	}
	return &Manager{dir: dir, tempDir: tempDir}, nil
}

func validateID(id string) error {
	if !idRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (m *Manager) chunkDir(uploadID string) string {
	return filepath.Join(m.tempDir, uploadID)
}

// SaveChunk persists one chunk. Re-sending an index overwrites it.
func (m *Manager) SaveChunk(uploadID string, index int, data io.Reader) error {
	if err := validateID(uploadID); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("negative chunk index %d", index)
	}
	dir := m.chunkDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "partial-*")
	if err != nil {
		return fmt.Errorf("create chunk temp file: %w", err)
	}
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write chunk %d: %w", index, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close chunk %d: %w", index, err)
	}
	final := filepath.Join(dir, fmt.Sprintf("%d.chunk", index))
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit chunk %d: %w", index, err)
	}
	return nil
}

// received returns the set of chunk indices present on disk.
func (m *Manager) received(uploadID string) (map[int]bool, error) {
	entries, err := os.ReadDir(m.chunkDir(uploadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	got := make(map[int]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".chunk") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, ".chunk"))
		if err != nil {
			continue
		}
		got[idx] = true
	}
	return got, nil
}

// Missing lists the chunk indices not yet received, letting clients
// resume an interrupted upload.
func (m *Manager) Missing(uploadID string, totalChunks int) ([]int, error) {
	if err := validateID(uploadID); err != nil {
		return nil, err
	}
	got, err := m.received(uploadID)
	if err != nil {
		return nil, err
	}
	missing := make([]int, 0)
	for i := 0; i < totalChunks; i++ {
		if !got[i] {
			missing = append(missing, i)
		}
	}
	return missing, nil
}

// IsComplete reports whether every chunk of the upload has arrived.
func (m *Manager) IsComplete(uploadID string, totalChunks int) (bool, error) {
	missing, err := m.Missing(uploadID, totalChunks)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Assemble concatenates the chunks in index order into finalName
// under the upload directory and removes the chunk directory. The
// assembly is serialized so two completion requests for the same
// upload cannot interleave.
func (m *Manager) Assemble(uploadID string, totalChunks int, finalName string) (string, error) {
	if err := validateID(uploadID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	missing, err := m.Missing(uploadID, totalChunks)
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("upload %s incomplete: %d chunks missing", uploadID, len(missing))
	}

	finalPath := filepath.Join(m.dir, filepath.Base(finalName))
	out, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("create assembled file: %w", err)
	}

	dir := m.chunkDir(uploadID)
	for i := 0; i < totalChunks; i++ {
		chunk, err := os.Open(filepath.Join(dir, fmt.Sprintf("%d.chunk", i)))
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return "", fmt.Errorf("open chunk %d: %w", i, err)
		}
		_, err = io.Copy(out, chunk)
		chunk.Close()
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return "", fmt.Errorf("append chunk %d: %w", i, err)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(finalPath)
		return "", fmt.Errorf("finish assembled file: %w", err)
	}
	os.RemoveAll(dir)
	return finalPath, nil
}
