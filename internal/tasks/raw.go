package tasks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"coursepipe/internal/services"
)

var mediaPattern = regexp.MustCompile(`(?i)^(\d{2})_.*\.(mp4|mp3)$`)

// ScanRawFolder discovers lesson keys from media files named "NN_<anything>.mp4|mp3".
// Keys are returned in file-name order and must be unique.
func ScanRawFolder(dir string) ([]string, error) {
	entries, err := readRawDir(dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, name := range entries {
		match := mediaPattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		key := match[1]
		if first, ok := seen[key]; ok {
			return nil, services.Errorf(services.CodeRawFolderDuplicateLesson,
				"lesson %s appears twice (%s, %s)", key, first, name).
				WithDetail("lesson_key", key)
		}
		seen[key] = name
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, services.Errorf(services.CodeRawFolderInvalidName,
			"no media named NN_<title>.mp4 or NN_<title>.mp3 in %s", dir)
	}
	return keys, nil
}

// MediaForKey returns the raw media file for a lesson key.
func MediaForKey(dir, key string) (string, error) {
	entries, err := readRawDir(dir)
	if err != nil {
		return "", err
	}
	for _, name := range entries {
		match := mediaPattern.FindStringSubmatch(name)
		if match != nil && match[1] == key {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("missing_media:%s: %w", key, services.ErrNotFound)
}

func readRawDir(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.NewError(services.CodeRawFolderNotFound, dir)
		}
		return nil, services.WrapCode(services.CodeRawFolderNotFound, dir, err)
	}
	if !info.IsDir() {
		return nil, services.Errorf(services.CodeRawFolderNotFound, "%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
