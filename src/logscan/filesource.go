package logscan

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Log file extensions the directory enumerator tracks.
var logExtensions = map[string]bool{
	".log": true,
	".txt": true,
	".out": true,
}

// FileSource reads one log file lazily.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file's base name.
func (f *FileSource) Name() string {
	return filepath.Base(f.path)
}

// Lines reads the whole file line by line.
func (f *FileSource) Lines(ctx context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning log file: %w", err)
	}
	return lines, nil
}

// DirSources enumerates log files under dir (recursively) in sorted path
// order. A missing directory yields no sources, not an error: the pipeline
// reports "no entries" for an unprovisioned log store.
func DirSources(dir string) ([]Source, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if logExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walking log directory: %w", err)
	}

	sort.Strings(paths)
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, NewFileSource(p))
	}
	return sources, nil
}

// MemorySource serves lines from memory; used in tests and by the sample data
// seeding path.
type MemorySource struct {
	name  string
	lines []string
}

func NewMemorySource(name, content string) *MemorySource {
	return &MemorySource{name: name, lines: strings.Split(content, "\n")}
}

func (m *MemorySource) Name() string { return m.name }

func (m *MemorySource) Lines(ctx context.Context) ([]string, error) {
	return m.lines, nil
}
