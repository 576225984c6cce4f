package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileLog keeps one record per line in <dir>/<key>.csv.
type FileLog struct {
	mu   sync.Mutex
	path string
}

func OpenFileLog(dir, key string) (*FileLog, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileLog{path: filepath.Join(dir, key+".csv")}, nil
}

// Load returns every non-empty line. A missing file is an empty log.
func (f *FileLog) Load(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return lines, nil
}

func (f *FileLog) Append(ctx context.Context, line string) error {
	if err := validateLine(line); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	if _, err := fh.WriteString(line + "\n"); err != nil {
		_ = fh.Close()
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	if err := fh.Sync(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("sync %s: %w", f.path, err)
	}
	return fh.Close()
}

func (f *FileLog) Close() error { return nil }

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
