package native

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// GetFiles lists the files in dir as full paths, in directory order (sorted
// by name). Subdirectories are descended into only when recursive is set.
// Symlinked directories are never followed, which keeps link cycles from
// looping. Entries whose target cannot be resolved are listed as files.
func GetFiles(dir string, recursive bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		isDir, isLink := entry.IsDir(), entry.Type()&fs.ModeSymlink != 0
		if isLink {
			if info, err := os.Stat(full); err == nil && info.IsDir() {
				continue
			}
		}

		if !isDir {
			files = append(files, full)
			continue
		}
		if !recursive {
			continue
		}
		nested, err := GetFiles(full, true)
		if err != nil {
			return nil, err
		}
		files = append(files, nested...)
	}
	return files, nil
}
