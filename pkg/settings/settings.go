// Package settings persists user preferences and saved server aliases
// as key=value files in the user config directory: settings.vks for
// preferences, server.vks for the alias to URL map.
package settings

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	settingsFile = "settings.vks"
	serversFile  = "server.vks"
	appDirName   = "valkey_insight"
)

// DefaultDir is the per-user config directory the desktop app uses.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "locate user config dir")
	}
	return filepath.Join(base, appDirName), nil
}

// Store holds the two settings maps. Safe for concurrent use.
type Store struct {
	fs  afero.Fs
	dir string

	mu       sync.RWMutex
	settings map[string]string
	servers  map[string]string
}

// New returns an empty store bound to dir on fs.
func New(fs afero.Fs, dir string) *Store {
	return &Store{
		fs:       fs,
		dir:      dir,
		settings: make(map[string]string),
		servers:  make(map[string]string),
	}
}

// Open loads the store from disk; missing files leave the maps empty.
func Open(fs afero.Fs, dir string) (*Store, error) {
	s := New(fs, dir)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces both maps with the file contents. Blank lines and
// #-comments are skipped.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = make(map[string]string)
	s.servers = make(map[string]string)
	if err := s.loadFile(settingsFile, s.settings); err != nil {
		return err
	}
	return s.loadFile(serversFile, s.servers)
}

func (s *Store) loadFile(name string, into map[string]string) error {
	path := filepath.Join(s.dir, name)
	ok, err := afero.Exists(s.fs, path)
	if err != nil || !ok {
		return err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			into[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return errors.Wrapf(scanner.Err(), "read %s", path)
}

// Save writes both files back, keys sorted for stable output.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", s.dir)
	}
	if err := s.saveFile(settingsFile, s.settings); err != nil {
		return err
	}
	return s.saveFile(serversFile, s.servers)
}

func (s *Store) saveFile(name string, from map[string]string) error {
	keys := make([]string, 0, len(from))
	for key := range from {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", key, from[key])
	}
	path := filepath.Join(s.dir, name)
	return errors.Wrapf(
		afero.WriteFile(s.fs, path, []byte(sb.String()), 0600),
		"write %s", path)
}

// Get returns the setting or the default when unset.
func (s *Store) Get(key, defaultValue string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.settings[key]; ok {
		return value
	}
	return defaultValue
}

// Set stores a setting in memory; Save persists it.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// Language is a regular setting with a conventional key.
func (s *Store) Language() string { return s.Get("language", "english") }

func (s *Store) SetLanguage(lang string) { s.Set("language", strings.ToLower(lang)) }

// AddServer saves an alias unless it is already taken; adding never
// overwrites.
func (s *Store) AddServer(alias, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[alias]; ok {
		return errors.Errorf("server alias %q already exists", alias)
	}
	s.servers[alias] = url
	return nil
}

// UpdateServer changes an existing alias and persists immediately.
func (s *Store) UpdateServer(alias, url string) error {
	s.mu.Lock()
	if _, ok := s.servers[alias]; !ok {
		s.mu.Unlock()
		return errors.Errorf("unknown server alias %q", alias)
	}
	s.servers[alias] = url
	s.mu.Unlock()
	return s.Save()
}

// DeleteServer removes an alias and persists immediately. Deleting an
// unknown alias is a no-op.
func (s *Store) DeleteServer(alias string) error {
	s.mu.Lock()
	delete(s.servers, alias)
	s.mu.Unlock()
	return s.Save()
}

// Server looks one alias up.
func (s *Store) Server(alias string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.servers[alias]
	return url, ok
}

// Servers returns a copy of the alias map.
func (s *Store) Servers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.servers))
	for alias, url := range s.servers {
		out[alias] = url
	}
	return out
}
