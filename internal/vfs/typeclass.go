package vfs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/model"
)

// ClassSet maps type-class names (images, videos, ...) to the lowercase
// extensions that belong to them.
type ClassSet struct {
	classes map[string][]string
}

// DefaultClasses returns the built-in class table.
func DefaultClasses() *ClassSet {
	return &ClassSet{classes: map[string][]string{
		"images": {
			"bmp", "jpg", "jpeg", "png", "tif", "tiff", "gif", "pcx", "tga",
			"exif", "fpx", "svg", "psd", "pcd", "dxf", "ufo", "eps", "ai",
			"raw", "wmf", "webp", "avif", "apng",
		},
		"videos":    {"mp4", "mov", "wmv", "flv", "avi", "avchd", "webm", "mkv"},
		"archives":  {"7z", "rar", "zip", "tgz", "tar", "gz"},
		"documents": {"pdf", "doc", "docx", "xls", "xlsx", "log", "txt", "ppt", "pptx"},
	}}
}

// LoadFormatsFile reads class overrides from a file of "class: ext, ext"
// lines. Blank lines and lines starting with # are skipped. Classes not
// mentioned keep their defaults.
func LoadFormatsFile(path string) (*ClassSet, error) {
	set := DefaultClasses()
	if path == "" {
		return set, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open formats file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("formats file: malformed line %q", line)
		}

		exts := make([]string, 0)
		for _, raw := range strings.Split(rest, ",") {
			ext := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), ".")))
			if ext != "" {
				exts = append(exts, ext)
			}
		}
		set.classes[strings.ToLower(strings.TrimSpace(name))] = exts
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read formats file: %w", err)
	}

	return set, nil
}

// Names lists the known classes, sorted.
func (s *ClassSet) Names() []string {
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Extensions returns the extension list for a class.
func (s *ClassSet) Extensions(class string) ([]string, error) {
	exts, ok := s.classes[strings.ToLower(class)]
	if !ok {
		return nil, fmt.Errorf("type class %q: %w", class, model.ErrUnknownTypeClass)
	}

	return exts, nil
}

// ScanByExtensions walks startDir recursively and returns every regular file
// whose extension, compared case-insensitively, is in exts.
func ScanByExtensions(ctx context.Context, c hdfs.Client, startDir string, exts []string) ([]hdfs.Entry, error) {
	wanted := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		wanted[strings.ToLower(ext)] = struct{}{}
	}

	entries, err := c.ListRecursive(ctx, startDir)
	if err != nil {
		return nil, err
	}

	matched := make([]hdfs.Entry, 0)
	for _, entry := range entries {
		if entry.IsDirectory {
			continue
		}
		if _, ok := wanted[extensionOf(entry.Name())]; ok {
			matched = append(matched, entry)
		}
	}

	return matched, nil
}

// extensionOf returns the lowercase extension after the last dot, without
// the dot. Dotless names yield "".
func extensionOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[idx+1:])
}
