package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSources is returned when no source patterns were given.
var ErrNoSources = errors.New("no log sources given")

// logExtensions are the file types picked up when a source is a directory.
var logExtensions = map[string]bool{
	".log":  true,
	".txt":  true,
	".gz":   true,
	".zst":  true,
	".zstd": true,
}

// ExpandSources turns file paths, glob patterns and directories into a
// sorted, deduplicated list of files. A directory contributes the log files
// directly inside it. Patterns that match nothing are returned as-is so the
// open error names the missing file.
func ExpandSources(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, ErrNoSources
	}

	seen := make(map[string]bool)
	var result []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			add(pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				add(match)
				continue
			}

			files, err := dirLogFiles(match)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	sort.Strings(result)

	return result, nil
}

func dirLogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if logExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
