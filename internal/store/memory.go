package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is a process-local Repository, used for local runs and tests.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	progress map[string]Progress
	grants   map[Grant]struct{}
	now      func() time.Time

	// reads counts repository lookups, so callers can observe caching.
	reads atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]Profile),
		progress: make(map[string]Progress),
		grants:   make(map[Grant]struct{}),
		now:      time.Now,
	}
}

// Reads returns how many lookups hit the repository.
func (m *Memory) Reads() int64 {
	return m.reads.Load()
}

func (m *Memory) Profile(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}

	return p, nil
}

func (m *Memory) UpdateProfile(ctx context.Context, profile Profile) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile.UpdatedAt = m.now().UTC()
	m.profiles[profile.ID] = profile

	return profile, nil
}

func (m *Memory) HasAccess(ctx context.Context, userID, resourceType, resourceID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.grants[Grant{UserID: userID, ResourceType: resourceType, ResourceID: "*"}]; ok {
		return true, nil
	}

	_, ok := m.grants[Grant{UserID: userID, ResourceType: resourceType, ResourceID: resourceID}]

	return ok, nil
}

// Grant gives userID access to a resource. A ResourceID of "*" covers every
// resource of that type.
func (m *Memory) Grant(g Grant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.grants[g] = struct{}{}
}

func (m *Memory) Progress(ctx context.Context, userID string) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}

	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.progress[userID]
	if !ok {
		return Progress{UserID: userID, CompletedLessons: []string{}}, nil
	}

	p.CompletedLessons = slices.Clone(p.CompletedLessons)

	return p, nil
}

func (m *Memory) SaveProgress(ctx context.Context, progress Progress) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	progress.UpdatedAt = m.now().UTC()
	progress.CompletedLessons = slices.Clone(progress.CompletedLessons)
	if progress.CompletedLessons == nil {
		progress.CompletedLessons = []string{}
	}
	m.progress[progress.UserID] = progress

	return progress, nil
}

var _ Repository = (*Memory)(nil)
