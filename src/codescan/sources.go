package codescan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource enumerates code files under a directory, filtered by extension.
type DirSource struct {
	dir        string
	extensions map[string]bool
}

// NewDirSource builds a source over dir tracking the given extensions (each
// including the dot, e.g. ".py").
func NewDirSource(dir string, extensions []string) *DirSource {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &DirSource{dir: dir, extensions: exts}
}

// Files reads every tracked file under the directory in sorted path order. A
// missing directory yields no files, not an error. An individual unreadable
// file is skipped.
func (d *DirSource) Files(ctx context.Context) ([]File, error) {
	var paths []string
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}
		if d.extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walking codebase directory: %w", err)
	}

	sort.Strings(paths)
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		files = append(files, File{Path: p, Content: string(content)})
	}
	return files, nil
}

// MemorySources serves an in-memory file set; used in tests and by the sample
// data seeding path.
type MemorySources struct {
	files []File
}

func NewMemorySources(files ...File) *MemorySources {
	return &MemorySources{files: files}
}

func (m *MemorySources) Files(ctx context.Context) ([]File, error) {
	return m.files, nil
}
