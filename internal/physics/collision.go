// Package physics holds the collision-group manager. A manager is scoped to
// one environment; handlers that resolve group names must use the manager of
// the environment they were built for.
package physics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownGroup is returned when a group name is not registered.
	ErrUnknownGroup = errors.New("physics: unknown collision group")
	// ErrTooManyGroups is returned when all group bits are in use.
	ErrTooManyGroups = errors.New("physics: collision group limit reached")
)

// CollisionGroup is a named collision layer with its own bit.
type CollisionGroup struct {
	Name string
	Flag uint16
}

// DefaultGroups are registered by every new manager.
var DefaultGroups = []string{"default", "static", "kinematic", "debris", "sensor", "character", "world", "liquid"}

// CollisionGroupManager assigns bits to collision group names.
type CollisionGroupManager struct {
	mu     sync.RWMutex
	groups map[string]CollisionGroup
}

// NewCollisionGroupManager creates a manager holding DefaultGroups.
func NewCollisionGroupManager() *CollisionGroupManager {
	m := &CollisionGroupManager{groups: make(map[string]CollisionGroup)}
	for _, name := range DefaultGroups {
		if _, err := m.Register(name); err != nil {
			panic(err)
		}
	}
	return m
}

// Register returns the group for name, allocating a bit when it is new.
// Names are case-insensitive.
func (m *CollisionGroupManager) Register(name string) (CollisionGroup, error) {
	key := strings.ToLower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.groups[key]; ok {
		return g, nil
	}
	if len(m.groups) >= 16 {
		return CollisionGroup{}, fmt.Errorf("%w: %q", ErrTooManyGroups, name)
	}
	g := CollisionGroup{Name: key, Flag: 1 << len(m.groups)}
	m.groups[key] = g
	return g, nil
}

// Group looks up a registered group.
func (m *CollisionGroupManager) Group(name string) (CollisionGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[strings.ToLower(name)]
	if !ok {
		return CollisionGroup{}, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return g, nil
}

// Groups returns the registered groups ordered by bit.
func (m *CollisionGroupManager) Groups() []CollisionGroup {
	m.mu.RLock()
	out := make([]CollisionGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Flag < out[j].Flag })
	return out
}
