package project

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

// Scan lists the applications under parent: every immediate subdirectory
// holding a compose file, in lexical order. Directories without one are
// skipped. The parent itself must be a readable directory.
func Scan(parent string) (iter.Seq[models.Application], error) {
	if parent == "" {
		return nil, fault.Newf(fault.KindScan, "scan", "parent directory is not set")
	}

	absParent, err := filepath.Abs(parent)
	if err != nil {
		return nil, fault.New(fault.KindScan, "scan", fmt.Errorf("failed to resolve %s: %w", parent, err))
	}

	info, err := os.Stat(absParent)
	if err != nil {
		return nil, fault.New(fault.KindScan, "scan", fmt.Errorf("failed to access %s: %w", absParent, err))
	}
	if !info.IsDir() {
		return nil, fault.Newf(fault.KindScan, "scan", "%s is not a directory", absParent)
	}

	entries, err := os.ReadDir(absParent)
	if err != nil {
		return nil, fault.New(fault.KindScan, "scan", fmt.Errorf("failed to read %s: %w", absParent, err))
	}

	return func(yield func(models.Application) bool) {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") || !isDir(absParent, entry) {
				continue
			}

			dir := filepath.Join(absParent, entry.Name())
			files := findComposeFiles(dir)
			if len(files) == 0 {
				continue
			}

			app := models.Application{
				Name:         entry.Name(),
				Path:         dir,
				ComposeFiles: files,
			}
			if !yield(app) {
				return
			}
		}
	}, nil
}

func isDir(parent string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

// findComposeFiles returns the primary compose file of dir followed by its
// override file, if any.
func findComposeFiles(dir string) []string {
	primary := firstRegularFile(dir, composeFileNames)
	if primary == "" {
		return nil
	}

	files := []string{primary}
	if override := firstRegularFile(dir, overrideFileNames); override != "" {
		files = append(files, override)
	}
	return files
}

func firstRegularFile(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}
