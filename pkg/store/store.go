// Package store defines where baked passport photos are persisted and where
// card profiles come from.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// ErrNotFound is returned when no profile exists for a reference
var ErrNotFound = errors.New("profile not found")

// PhotoSaver persists a baked photo data URL on the owning profile.
type PhotoSaver interface {
	SavePhoto(ctx context.Context, ref types.ProfileRef, dataURL string) error
}

// ProfileLoader reads the profile a passport card is rendered for.
type ProfileLoader interface {
	LoadProfile(ctx context.Context, ref types.ProfileRef) (types.Profile, error)
}

// SaverFunc adapts a function to PhotoSaver
type SaverFunc func(ctx context.Context, ref types.ProfileRef, dataURL string) error

// SavePhoto calls f
func (f SaverFunc) SavePhoto(ctx context.Context, ref types.ProfileRef, dataURL string) error {
	return f(ctx, ref, dataURL)
}

// Memory keeps profiles and photos in process. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	profiles map[types.ProfileRef]types.Profile
	saves    int
}

var (
	_ PhotoSaver    = (*Memory)(nil)
	_ ProfileLoader = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{profiles: make(map[types.ProfileRef]types.Profile)}
}

// PutProfile adds or replaces a profile
func (m *Memory) PutProfile(p types.Profile) error {
	if err := types.Validate(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Ref()] = p
	return nil
}

// SavePhoto sets the profile's photo. The last save wins.
func (m *Memory) SavePhoto(ctx context.Context, ref types.ProfileRef, dataURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.Validate(ref); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[ref]
	if !ok {
		p = types.Profile{ID: ref.ID, Role: ref.Role}
	}
	p.PhotoURL = dataURL
	m.profiles[ref] = p
	m.saves++
	return nil
}

// LoadProfile returns the stored profile or ErrNotFound
func (m *Memory) LoadProfile(ctx context.Context, ref types.ProfileRef) (types.Profile, error) {
	if err := ctx.Err(); err != nil {
		return types.Profile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[ref]
	if !ok {
		return types.Profile{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ref.Role, ref.ID)
	}
	return p, nil
}

// Photo returns the stored photo for ref
func (m *Memory) Photo(ref types.ProfileRef) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[ref]
	if !ok || p.PhotoURL == "" {
		return "", false
	}
	return p.PhotoURL, true
}

// Saves counts successful SavePhoto calls
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
