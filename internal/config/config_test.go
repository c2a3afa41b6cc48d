package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeedsDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := New(path)
	require.NoError(t, err)

	doc := s.Get()
	assert.Equal(t, SourceModeUnified, doc.SourceMode)
	assert.Equal(t, 30, doc.AutoScanInterval)
	assert.Equal(t, IntervalMinutes, doc.AutoScanUnit)

	// Defaults must have been persisted so a second Store sees the same doc.
	s2, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, doc, s2.Get())
}

func TestLoad_MalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s.Get())
}

func TestUpdate_MergesOnlyNonNilFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := New(path)
	require.NoError(t, err)

	newPath := "/mnt/media/movies2"
	doc, err := s.Update(Partial{MoviesPath: &newPath})
	require.NoError(t, err)

	assert.Equal(t, newPath, doc.MoviesPath)
	assert.Equal(t, Defaults().TVPath, doc.TVPath, "unrelated fields must be untouched")

	reloaded, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, newPath, reloaded.Get().MoviesPath)
}

func TestMinVideoSizeBytes(t *testing.T) {
	d := Document{MinVideoSizeMB: 50}
	assert.Equal(t, int64(50*1024*1024), d.MinVideoSizeBytes())
}

func TestAutoScanIntervalSeconds(t *testing.T) {
	assert.Equal(t, 120, Document{AutoScanInterval: 2, AutoScanUnit: IntervalMinutes}.AutoScanIntervalSeconds())
	assert.Equal(t, 45, Document{AutoScanInterval: 45, AutoScanUnit: IntervalSeconds}.AutoScanIntervalSeconds())
}
