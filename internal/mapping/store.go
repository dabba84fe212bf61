// internal/mapping/store.go

// Package mapping loads static site-mapping documents and resolves
// profile fields to ordered CSS selector lists.
package mapping

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store holds the site mappings loaded at startup. It is read-only
// after Load, so lookups need no locking.
type Store struct {
	logger   *zap.Logger
	mappings map[string]*schemas.SiteMapping // keyed by mapping URL
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:   logger.Named("mapping"),
		mappings: make(map[string]*schemas.SiteMapping),
	}
}

// Load reads every *.json document in dir. A malformed document is
// skipped with a warning; a missing directory loads nothing.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Mappings directory does not exist; starting with none",
				zap.String("dir", dir))
			return nil
		}
		return fmt.Errorf("reading mappings directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		m, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("Skipping malformed mapping document",
				zap.String("file", path), zap.Error(err))
			continue
		}
		s.mappings[m.URL] = m
		s.logger.Info("Loaded site mapping",
			zap.String("file", entry.Name()),
			zap.String("url", m.URL),
			zap.Int("fields", len(m.Fields)))
	}

	s.logger.Info("Site mappings loaded", zap.Int("count", len(s.mappings)))
	return nil
}

func (s *Store) loadFile(path string) (*schemas.SiteMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m schemas.SiteMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	if m.URL == "" {
		return nil, fmt.Errorf("mapping %q has no url", path)
	}
	return &m, nil
}

// Add inserts a mapping directly. Used by tests and programmatic setup.
func (s *Store) Add(m *schemas.SiteMapping) {
	s.mappings[m.URL] = m
}

// Len reports how many mappings are loaded.
func (s *Store) Len() int { return len(s.mappings) }

// ForURL returns the mapping for a page URL: an exact match first,
// otherwise the first mapping whose host appears in the page URL.
func (s *Store) ForURL(pageURL string) *schemas.SiteMapping {
	if m, ok := s.mappings[pageURL]; ok {
		return m
	}
	for mappedURL, m := range s.mappings {
		if host := extractHost(mappedURL); host != "" && strings.Contains(pageURL, host) {
			return m
		}
	}
	return nil
}

func extractHost(raw string) string {
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	parts := strings.Split(raw, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return raw
}

// NormalizeValue applies a field's value aliases to the raw profile
// value. Lookup is case-insensitive; without a hit the value passes
// through unchanged.
func NormalizeValue(def *schemas.FieldDefinition, value string) string {
	if def == nil || len(def.ValueAliases) == 0 {
		return value
	}
	if mapped, ok := def.ValueAliases[value]; ok {
		return mapped
	}
	lower := strings.ToLower(value)
	for k, v := range def.ValueAliases {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return value
}
