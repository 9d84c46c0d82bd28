// Package persona keeps the assistant's default reply settings, layered as
// built-in defaults overridden by values saved in the settings table.
package persona

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/solace/internal/provider"
)

// ErrInvalid is returned for unknown keys and malformed values.
var ErrInvalid = errors.New("invalid persona setting")

// SettingsStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type SettingsStore interface {
	SetSetting(key, value string) error
	GetAllSettings() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached access to the persona.
type Manager struct {
	store    SettingsStore
	defaults Persona
	clock    Clock
	ttl      time.Duration

	mu       sync.RWMutex
	cached   *Persona
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL. defaults fill
// every setting that has not been saved.
func NewManager(store SettingsStore, defaults Persona) *Manager {
	return NewManagerWithClock(store, defaults, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store SettingsStore, defaults Persona, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store:    store,
		defaults: defaults,
		clock:    clock,
		ttl:      ttl,
	}
}

// Get returns the effective persona.
func (m *Manager) Get() (Persona, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := *m.cached
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return *m.cached, nil
	}

	keys, err := m.store.GetAllSettings()
	if err != nil {
		return Persona{}, fmt.Errorf("loading persona settings: %w", err)
	}

	p := build(m.defaults, keys)
	m.cached = &p
	m.cachedAt = m.clock.Now()
	return p, nil
}

// Set validates and persists a single setting, then invalidates the cache.
func (m *Manager) Set(key, value string) error {
	value, err := normalize(key, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetSetting(key, value); err != nil {
		return fmt.Errorf("setting persona key %q: %w", key, err)
	}
	m.cached = nil
	return nil
}

// Apply validates every field of patch before persisting any of them.
func (m *Manager) Apply(patch Patch) (Persona, error) {
	var updates [][2]string
	add := func(key string, v *string) {
		if v != nil {
			updates = append(updates, [2]string{key, *v})
		}
	}
	add(KeyPersonality, patch.Personality)
	add(KeyModelPreference, patch.ModelPreference)
	add(KeyDatasetContext, patch.DatasetContext)
	if patch.UseDatasetContext != nil {
		updates = append(updates, [2]string{KeyUseDatasetContext, strconv.FormatBool(*patch.UseDatasetContext)})
	}

	for i, u := range updates {
		v, err := normalize(u[0], u[1])
		if err != nil {
			return Persona{}, err
		}
		updates[i][1] = v
	}

	m.mu.Lock()
	for _, u := range updates {
		if err := m.store.SetSetting(u[0], u[1]); err != nil {
			m.cached = nil
			m.mu.Unlock()
			return Persona{}, fmt.Errorf("setting persona key %q: %w", u[0], err)
		}
	}
	m.cached = nil
	m.mu.Unlock()

	return m.Get()
}

func normalize(key, value string) (string, error) {
	switch key {
	case KeyPersonality, KeyDatasetContext:
		return value, nil
	case KeyModelPreference:
		id, err := provider.Parse(strings.TrimSpace(value))
		if err != nil || id == provider.Command {
			return "", fmt.Errorf("%w: model preference %q, want primary, secondary or openai", ErrInvalid, value)
		}
		return string(id), nil
	case KeyUseDatasetContext:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return "", fmt.Errorf("%w: %s %q is not a boolean", ErrInvalid, key, value)
		}
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
}

// build layers saved settings over defaults. Malformed saved values are
// skipped with a warning.
func build(defaults Persona, keys map[string]string) Persona {
	p := defaults
	if v, ok := keys[KeyPersonality]; ok && strings.TrimSpace(v) != "" {
		p.Personality = v
	}
	if v, ok := keys[KeyDatasetContext]; ok {
		p.DatasetContext = v
	}
	if v, ok := keys[KeyModelPreference]; ok {
		if id, err := provider.Parse(v); err == nil {
			p.ModelPreference = id
		} else {
			slog.Warn("malformed persona setting, skipping", "key", KeyModelPreference, "error", err)
		}
	}
	if v, ok := keys[KeyUseDatasetContext]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.UseDatasetContext = b
		} else {
			slog.Warn("malformed persona setting, skipping", "key", KeyUseDatasetContext, "error", err)
		}
	}
	return p
}
