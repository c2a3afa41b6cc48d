package ingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/mediaparse"
)

// discoveredFile is one candidate video file surfaced by walking the
// configured source roots.
type discoveredFile struct {
	path       string
	size       int64
	forcedKind mediaparse.Kind
	hasForced  bool
}

// discover walks the source roots according to the configured source
// mode, filtering hidden paths, unrecognized extensions, undersized files
// and ignore-listed names.
func discover(cfg config.Document) ([]discoveredFile, error) {
	switch cfg.SourceMode {
	case config.SourceModeSeparate:
		movies, err := walkRoot(cfg.SourceMoviesPath, cfg, mediaparse.KindMovie, true)
		if err != nil {
			return nil, err
		}
		tv, err := walkRoot(cfg.SourceTVPath, cfg, mediaparse.KindTV, true)
		if err != nil {
			return nil, err
		}
		return append(movies, tv...), nil
	default:
		return walkRoot(cfg.SourcePath, cfg, "", false)
	}
}

func walkRoot(root string, cfg config.Document, forcedKind mediaparse.Kind, hasForced bool) ([]discoveredFile, error) {
	var out []discoveredFile
	extensions := cfg.VideoExtensionSet()
	minSize := cfg.MinVideoSizeBytes()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if hasDottedComponent(root, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !extensions[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() < minSize {
			return nil
		}
		if mediaparse.ShouldIgnore(path) {
			return nil
		}

		out = append(out, discoveredFile{path: path, size: info.Size(), forcedKind: forcedKind, hasForced: hasForced})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// hasDottedComponent reports whether any path component between root and
// path (exclusive of root) begins with a dot.
func hasDottedComponent(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
