// Package config provides the string key/value configuration store scoped to
// the plugin system. Values are stored as strings; typed accessors parse at
// the boundary. Nested YAML documents flatten into dotted keys
// ("storage.backend", "network.timeout"); keys are lowercase dotted paths by
// convention, which is what environment overrides resolve against.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/latticekit/lattice/errors"
	"github.com/latticekit/lattice/logger"
)

// Store is a concurrency-safe string key/value store.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	logger logger.Logger
}

// NewStore creates an empty store.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &Store{
		values: make(map[string]string),
		logger: log.Named("config"),
	}
}

// Get returns the raw value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Remove deletes the entry for key.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// All returns a snapshot copy of all entries.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out
}

// GetString returns the value for key, or def when absent.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}

	return def
}

// GetBool parses the value for key as a bool, returning def when absent or
// unparsable.
func (s *Store) GetBool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}

	return parsed
}

// GetInt parses the value for key as an int, returning def when absent or
// unparsable.
func (s *Store) GetInt(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return parsed
}

// GetDuration parses the value for key as a time.Duration, returning def when
// absent or unparsable.
func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	v, ok := s.Get(key)
	if !ok {
		return def
	}

	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}

	return parsed
}

// LoadFile reads a YAML document from path and merges it into the store.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ErrConfigError("failed to read config file "+path, err)
	}

	return s.LoadBytes(data)
}

// LoadBytes merges a YAML document into the store. Nested mappings flatten
// into dotted keys; scalars are stored as their string form.
func (s *Store) LoadBytes(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.ErrConfigError("failed to parse config document", err)
	}

	flat := make(map[string]string)
	flatten("", doc, flat)

	s.mu.Lock()
	for k, v := range flat {
		s.values[k] = v
	}
	s.mu.Unlock()

	s.logger.Debug("config document loaded", logger.Int("keys", len(flat)))

	return nil
}

// ApplyEnvOverrides overlays environment variables on the store. A variable
// PREFIX_SECTION_KEY overrides the entry "section.key". Prefix matching is
// case-insensitive; derived keys are always lowercase, so only lowercase
// store keys (the dotted-key convention throughout) are addressable from the
// environment.
func (s *Store) ApplyEnvOverrides(prefix string) {
	prefix = strings.ToUpper(prefix) + "_"

	applied := 0

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(name), prefix) {
			continue
		}

		key := strings.ToLower(strings.TrimPrefix(strings.ToUpper(name), prefix))
		key = strings.ReplaceAll(key, "_", ".")

		s.Set(key, value)

		applied++
	}

	if applied > 0 {
		s.logger.Debug("environment overrides applied", logger.Int("count", applied))
	}
}

// flatten walks a decoded YAML tree and writes scalar leaves into flat under
// dotted keys.
func flatten(prefix string, node map[string]any, flat map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch child := v.(type) {
		case map[string]any:
			flatten(key, child, flat)
		case nil:
			flat[key] = ""
		default:
			flat[key] = fmt.Sprint(child)
		}
	}
}
