// Package batch implements the C7 batch driver: discovering inputs,
// running each through C1-C9, and aggregating the run into a Summary
// (spec §4.7).
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hadronmedia/recompress/internal/util"
)

// Discover walks root and returns every supported media file, sorted by
// ascending size so a batch's early progress reflects real work done
// rather than one giant file dominating the tail (§4.7).
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input path does not exist: %s", root)
	}
	if !info.IsDir() {
		if util.IsSupportedMediaFile(root) {
			return []string{root}, nil
		}
		return nil, fmt.Errorf("%s is not a supported media file", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if util.IsSupportedMediaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk %s: %w", root, err)
	}

	sortBySize(files)
	return files, nil
}

// DiscoverUnsupported walks root and returns every regular file that is
// NOT a supported media file, for the copy-through pass that mirrors a
// batch's non-media files into the output tree untouched.
func DiscoverUnsupported(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !util.IsSupportedMediaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk %s: %w", root, err)
	}
	return files, nil
}

func sortBySize(files []string) {
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			sizes[f] = info.Size()
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return sizes[files[i]] < sizes[files[j]]
	})
}
