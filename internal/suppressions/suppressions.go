// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package suppressions records findings accepted as false positives. Rules
// match the finding fingerprint, so the suppression file never holds the
// sensitive text itself.
package suppressions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"shroud/internal/faults"
)

// ErrNotFound is returned when no rule has the requested ID
var ErrNotFound = errors.New("suppression rule not found")

// Rule suppresses one finding fingerprint, optionally only under matching paths
type Rule struct {
	ID          string     `yaml:"id"`
	Fingerprint string     `yaml:"fingerprint"`
	Category    string     `yaml:"category,omitempty"`
	Path        string     `yaml:"path,omitempty"` // glob over the root-relative path
	Reason      string     `yaml:"reason"`
	Enabled     bool       `yaml:"enabled"`
	CreatedBy   string     `yaml:"created_by,omitempty"`
	CreatedAt   time.Time  `yaml:"created_at"`
	ExpiresAt   *time.Time `yaml:"expires_at,omitempty"`
}

// Expired reports whether the rule has passed its expiry
func (r Rule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

func (r Rule) matches(category, fingerprint, rel string, now time.Time) bool {
	if !r.Enabled || r.Expired(now) || r.Fingerprint != fingerprint {
		return false
	}
	if r.Category != "" && !strings.EqualFold(r.Category, category) {
		return false
	}
	if r.Path != "" {
		ok, _ := filepath.Match(r.Path, rel)
		return ok
	}
	return true
}

type file struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Manager loads, queries and saves a suppression file. Safe for concurrent use.
type Manager struct {
	path string

	mu    sync.RWMutex
	rules []Rule
	now   func() time.Time
}

// Load reads the suppression file at path. A missing file is an empty rule set;
// a corrupt one is a Configuration fault.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path, now: time.Now}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, faults.New(faults.Configuration, "suppressions", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, faults.New(faults.Configuration, "suppressions", path, fmt.Errorf("parsing suppression file: %w", err))
	}
	m.rules = f.Rules
	return m, nil
}

// Path returns the file the manager reads and writes
func (m *Manager) Path() string { return m.path }

// Suppressed reports whether an active rule covers the finding
func (m *Manager) Suppressed(category, fingerprint, rel string) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	for _, r := range m.rules {
		if r.matches(category, fingerprint, rel, now) {
			return true
		}
	}
	return false
}

// Rules returns a copy of every rule
func (m *Manager) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Rule(nil), m.rules...)
}

// Add stores a new enabled rule and saves the file. ID and CreatedAt are filled in.
func (m *Manager) Add(r Rule) (Rule, error) {
	r.Fingerprint = strings.ToLower(strings.TrimSpace(r.Fingerprint))
	if r.Fingerprint == "" {
		return Rule{}, errors.New("fingerprint is required")
	}
	if r.Reason == "" {
		return Rule{}, errors.New("reason is required")
	}
	if r.Path != "" {
		if _, err := filepath.Match(r.Path, ""); err != nil {
			return Rule{}, fmt.Errorf("invalid path pattern %q: %w", r.Path, err)
		}
	}
	r.ID = uuid.NewString()[:8]
	r.Enabled = true
	r.CreatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
	return r, m.saveLocked()
}

// Remove deletes the rule with the given ID
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return m.saveLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// CleanupExpired drops expired rules and returns how many were removed
func (m *Manager) CleanupExpired() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	kept := m.rules[:0]
	for _, r := range m.rules {
		if !r.Expired(now) {
			kept = append(kept, r)
		}
	}
	removed := len(m.rules) - len(kept)
	m.rules = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, m.saveLocked()
}

// saveLocked writes the file with restrictive permissions via temp + rename
func (m *Manager) saveLocked() error {
	if m.path == "" {
		return errors.New("no suppression file configured")
	}
	data, err := yaml.Marshal(file{Version: "1", Rules: m.rules})
	if err != nil {
		return fmt.Errorf("failed to marshal suppressions: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".shroud-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}
