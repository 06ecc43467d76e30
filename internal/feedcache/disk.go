package feedcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Disk stores payloads as <prefix>_<unix>.<ext> files in one directory and
// keeps at most maxFiles of them.
type Disk struct {
	dir      string
	prefix   string
	ext      string
	maxFiles int
}

// NewDisk creates a Disk cache. ext is the file extension without the dot.
func NewDisk(dir, prefix, ext string, maxFiles int) *Disk {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Disk{
		dir:      dir,
		prefix:   prefix,
		ext:      ext,
		maxFiles: maxFiles,
	}
}

// Write saves data under a timestamped name and prunes the oldest files.
func (d *Disk) Write(_ context.Context, data []byte, ts time.Time) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(d.dir, fmt.Sprintf("%s_%d.%s", d.prefix, ts.Unix(), d.ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return d.prune()
}

// LoadLatest reads the newest file. Returns ErrMiss when the directory is
// empty or missing.
func (d *Disk) LoadLatest(_ context.Context) ([]byte, time.Time, error) {
	files, err := d.list()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrMiss
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(d.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type diskFile struct {
	name string
	ts   time.Time
}

// list returns matching files sorted oldest first.
func (d *Disk) list() ([]diskFile, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	head, tail := d.prefix+"_", "."+d.ext
	var files []diskFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, head) || !strings.HasSuffix(name, tail) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, head), tail), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, diskFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (d *Disk) prune() error {
	files, err := d.list()
	if err != nil {
		return err
	}
	if len(files) <= d.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-d.maxFiles] {
		if err := os.Remove(filepath.Join(d.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
