// Package intake discovers input images on disk and reads them into memory
// with a content-detected mime type.
package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the scanned root (the file name when
	// the file was given directly).
	RelPath string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists recognized image file extensions.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// Scan expands the given paths into image sources. Directories are walked
// recursively, skipping hidden ones; plain files are taken as-is whatever
// their extension, since their type is checked by content on Read.
func Scan(paths []string) ([]Source, error) {
	var sources []Source
	seen := map[string]bool{}

	add := func(src Source) {
		if seen[src.AbsPath] {
			return
		}
		seen[src.AbsPath] = true
		sources = append(sources, src)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(Source{AbsPath: abs, RelPath: filepath.Base(abs), Size: info.Size()})
			continue
		}

		found, err := scanDir(abs)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		for _, src := range found {
			add(src)
		}
	}
	return sources, nil
}

func scanDir(root string) ([]Source, error) {
	var sources []Source

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
		})
		return nil
	})

	return sources, err
}

// File is a source read into memory.
type File struct {
	Source
	Data []byte
	MIME string // detected from content
}

// Read loads the source and detects its mime type from the bytes.
func Read(src Source) (*File, error) {
	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.RelPath, err)
	}
	mt := mimetype.Detect(data)
	return &File{
		Source: src,
		Data:   data,
		MIME:   mt.String(),
	}, nil
}
