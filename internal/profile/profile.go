// internal/profile/profile.go

// Package profile loads the user data documents that drive form
// filling. A profile is a flat map of semantic field names to values,
// stored one JSON document per file.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Profile is one named set of values to fill forms with.
type Profile struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// Value returns the value for a semantic field name, case-insensitively.
func (p *Profile) Value(field string) (string, bool) {
	if v, ok := p.Fields[field]; ok {
		return v, true
	}
	lowered := strings.ToLower(field)
	for k, v := range p.Fields {
		if strings.ToLower(k) == lowered {
			return v, true
		}
	}
	return "", false
}

// FieldNames returns the profile's field names in stable order.
func (p *Profile) FieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store holds the loaded profiles keyed by name.
type Store struct {
	logger   *zap.Logger
	profiles map[string]*Profile
}

// NewStore creates an empty profile store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:   logger.Named("profiles"),
		profiles: make(map[string]*Profile),
	}
}

// Load reads every .json document in dir. Malformed documents are
// skipped with a warning. A missing directory is not an error; the
// store just stays empty.
func (s *Store) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Profile directory does not exist", zap.String("dir", dir))
			return nil
		}
		return fmt.Errorf("reading profile directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable profile", zap.String("path", path), zap.Error(err))
			continue
		}

		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			s.logger.Warn("Skipping malformed profile", zap.String("path", path), zap.Error(err))
			continue
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(entry.Name(), ".json")
		}

		s.profiles[p.Name] = &p
		s.logger.Debug("Loaded profile",
			zap.String("name", p.Name),
			zap.Int("fields", len(p.Fields)))
	}

	s.logger.Info("Profiles loaded", zap.Int("count", len(s.profiles)))
	return nil
}

// Get returns the named profile.
func (s *Store) Get(name string) (*Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// Len reports how many profiles are loaded.
func (s *Store) Len() int {
	return len(s.profiles)
}
