// Package config implements the on-disk configuration document: load,
// partial update, atomic persistence, and the typed accessors the rest of
// the ingestion pipeline reads on every scan.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/JustinTDCT/ingestarr/internal/logging"
)

// SourceMode controls whether the scanner walks one unified download
// directory or two separate movie/tv roots.
type SourceMode string

const (
	SourceModeUnified  SourceMode = "unified"
	SourceModeSeparate SourceMode = "separate"
)

// IntervalUnit is the unit auto_scan_interval is expressed in.
type IntervalUnit string

const (
	IntervalSeconds IntervalUnit = "seconds"
	IntervalMinutes IntervalUnit = "minutes"
)

// Document is the full configuration document, persisted as JSON.
type Document struct {
	SourceMode       SourceMode   `json:"source_mode"`
	SourcePath       string       `json:"source_path"`
	SourceMoviesPath string       `json:"source_movies_path"`
	SourceTVPath     string       `json:"source_tv_path"`
	MoviesPath       string       `json:"movies_path"`
	TVPath           string       `json:"tv_path"`

	RadarrURL    string `json:"radarr_url"`
	RadarrAPIKey string `json:"radarr_api_key"`
	SonarrURL    string `json:"sonarr_url"`
	SonarrAPIKey string `json:"sonarr_api_key"`
	RequireArr   bool   `json:"require_arr"`

	AutoScanEnabled  bool         `json:"auto_scan_enabled"`
	AutoScanInterval int          `json:"auto_scan_interval"`
	AutoScanUnit     IntervalUnit `json:"auto_scan_unit"`

	TMDBAPIKey    string `json:"tmdb_api_key"`
	TMDBLanguage  string `json:"tmdb_language"`
	MinVideoSizeMB int   `json:"min_video_size_mb"`

	VideoExtensions []string `json:"video_extensions"`
}

// Defaults returns the document CineVault-style first-boot behavior falls
// back to: the same values renamearr's config_manager.py ships.
func Defaults() Document {
	return Document{
		SourceMode:       SourceModeUnified,
		SourcePath:       "/mnt/alldebrid/torrents",
		SourceMoviesPath: "/mnt/alldebrid/torrents/movies",
		SourceTVPath:     "/mnt/alldebrid/torrents/tv",
		MoviesPath:       "/mnt/media/movies",
		TVPath:           "/mnt/media/tv",
		RequireArr:       false,
		AutoScanEnabled:  false,
		AutoScanInterval: 30,
		AutoScanUnit:     IntervalMinutes,
		TMDBLanguage:     "en-US",
		MinVideoSizeMB:   50,
		VideoExtensions:  []string{".mkv", ".mp4", ".avi", ".mov", ".wmv", ".m4v", ".webm"},
	}
}

// Partial is an update request: every field is a pointer so that only
// fields actually set by the caller are merged into the cached document.
type Partial struct {
	SourceMode       *SourceMode   `json:"source_mode,omitempty"`
	SourcePath       *string       `json:"source_path,omitempty"`
	SourceMoviesPath *string       `json:"source_movies_path,omitempty"`
	SourceTVPath     *string       `json:"source_tv_path,omitempty"`
	MoviesPath       *string       `json:"movies_path,omitempty"`
	TVPath           *string       `json:"tv_path,omitempty"`
	RadarrURL        *string       `json:"radarr_url,omitempty"`
	RadarrAPIKey     *string       `json:"radarr_api_key,omitempty"`
	SonarrURL        *string       `json:"sonarr_url,omitempty"`
	SonarrAPIKey     *string       `json:"sonarr_api_key,omitempty"`
	RequireArr       *bool         `json:"require_arr,omitempty"`
	AutoScanEnabled  *bool         `json:"auto_scan_enabled,omitempty"`
	AutoScanInterval *int          `json:"auto_scan_interval,omitempty"`
	AutoScanUnit     *IntervalUnit `json:"auto_scan_unit,omitempty"`
	TMDBAPIKey       *string       `json:"tmdb_api_key,omitempty"`
	TMDBLanguage     *string       `json:"tmdb_language,omitempty"`
	MinVideoSizeMB   *int          `json:"min_video_size_mb,omitempty"`
	VideoExtensions  []string `json:"video_extensions,omitempty"`
}

// Store is the in-memory cache of the configuration document, backed by an
// atomically-written JSON file on disk.
type Store struct {
	mu   sync.RWMutex
	doc  Document
	path string
}

// New creates a Store rooted at path, loading the existing document if
// present or seeding it with Defaults().
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the document from disk. A missing, unreadable or malformed
// file is not fatal: the in-memory document falls back to Defaults(),
// which is then persisted so the file exists for the next read. Unreadable
// and malformed files are logged; a missing file is not.
func (s *Store) Load() error {
	logger := logging.For("config")

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Msg("failed to read config file, using defaults")
		}
		s.mu.Lock()
		s.doc = Defaults()
		s.mu.Unlock()
		return s.persist()
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn().Err(err).Msg("config file is malformed, falling back to defaults")
		s.mu.Lock()
		s.doc = Defaults()
		s.mu.Unlock()
		return s.persist()
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current document.
func (s *Store) Get() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Update merges the non-nil fields of p into the cached document and
// persists the result atomically.
func (s *Store) Update(p Partial) (Document, error) {
	s.mu.Lock()
	if p.SourceMode != nil {
		s.doc.SourceMode = *p.SourceMode
	}
	if p.SourcePath != nil {
		s.doc.SourcePath = *p.SourcePath
	}
	if p.SourceMoviesPath != nil {
		s.doc.SourceMoviesPath = *p.SourceMoviesPath
	}
	if p.SourceTVPath != nil {
		s.doc.SourceTVPath = *p.SourceTVPath
	}
	if p.MoviesPath != nil {
		s.doc.MoviesPath = *p.MoviesPath
	}
	if p.TVPath != nil {
		s.doc.TVPath = *p.TVPath
	}
	if p.RadarrURL != nil {
		s.doc.RadarrURL = *p.RadarrURL
	}
	if p.RadarrAPIKey != nil {
		s.doc.RadarrAPIKey = *p.RadarrAPIKey
	}
	if p.SonarrURL != nil {
		s.doc.SonarrURL = *p.SonarrURL
	}
	if p.SonarrAPIKey != nil {
		s.doc.SonarrAPIKey = *p.SonarrAPIKey
	}
	if p.RequireArr != nil {
		s.doc.RequireArr = *p.RequireArr
	}
	if p.AutoScanEnabled != nil {
		s.doc.AutoScanEnabled = *p.AutoScanEnabled
	}
	if p.AutoScanInterval != nil {
		s.doc.AutoScanInterval = *p.AutoScanInterval
	}
	if p.AutoScanUnit != nil {
		s.doc.AutoScanUnit = *p.AutoScanUnit
	}
	if p.TMDBAPIKey != nil {
		s.doc.TMDBAPIKey = *p.TMDBAPIKey
	}
	if p.TMDBLanguage != nil {
		s.doc.TMDBLanguage = *p.TMDBLanguage
	}
	if p.MinVideoSizeMB != nil {
		s.doc.MinVideoSizeMB = *p.MinVideoSizeMB
	}
	if p.VideoExtensions != nil {
		s.doc.VideoExtensions = p.VideoExtensions
	}
	doc := s.doc
	s.mu.Unlock()

	return doc, s.persist()
}

// persist writes the current document to disk via a temp-file-then-rename
// so a crash mid-write never leaves a truncated config.json behind.
func (s *Store) persist() error {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return renameio.WriteFile(s.path, raw, 0o644)
}

// MinVideoSizeBytes converts the configured MB threshold to bytes.
func (d Document) MinVideoSizeBytes() int64 {
	return int64(d.MinVideoSizeMB) * 1024 * 1024
}

// VideoExtensionSet returns the configured extensions as a lookup set.
func (d Document) VideoExtensionSet() map[string]bool {
	set := make(map[string]bool, len(d.VideoExtensions))
	for _, ext := range d.VideoExtensions {
		set[ext] = true
	}
	return set
}

// AutoScanIntervalSeconds converts AutoScanInterval/AutoScanUnit into seconds.
func (d Document) AutoScanIntervalSeconds() int {
	if d.AutoScanUnit == IntervalSeconds {
		return d.AutoScanInterval
	}
	return d.AutoScanInterval * 60
}

// RadarrConfigured reports whether a Radarr target is usable.
func (d Document) RadarrConfigured() bool {
	return d.RadarrURL != "" && d.RadarrAPIKey != ""
}

// SonarrConfigured reports whether a Sonarr target is usable.
func (d Document) SonarrConfigured() bool {
	return d.SonarrURL != "" && d.SonarrAPIKey != ""
}
