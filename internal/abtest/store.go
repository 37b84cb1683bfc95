package abtest

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var header = []string{"Input", "Output"}

// Store appends rows to CSV transcripts in one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates dir if needed and returns a Store writing into it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// FileName is the transcript name for a model/template pair:
// <model>_<md5 hex of template>.csv. Path separators in the model id are
// replaced so the file stays inside the store directory.
func FileName(model, template string) string {
	sum := md5.Sum([]byte(template))
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(model)
	return safe + "_" + hex.EncodeToString(sum[:]) + ".csv"
}

// Append adds one Input,Output row to the transcript for model and
// template, writing the header first if the file is new. It returns the
// file's path.
func (s *Store) Append(model, template, input, output string) (string, error) {
	path := filepath.Join(s.dir, FileName(model, template))

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(path)
	fresh := errors.Is(err, fs.ErrNotExist)
	if err != nil && !fresh {
		return "", fmt.Errorf("stat transcript: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening transcript: %w", err)
	}

	w := csv.NewWriter(f)
	if fresh {
		_ = w.Write(header)
	}
	_ = w.Write([]string{input, output})
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing transcript: %w", err)
	}
	return path, nil
}

// Read returns every data row of a transcript, header excluded.
func (s *Store) Read(model, template string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, FileName(model, template)))
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}
