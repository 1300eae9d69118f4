package permission

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagepilot/pagepilot/pkg/config"
)

// Action is the effect of a permission item.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Duration is how long a permission item stays valid.
type Duration string

const (
	// DurationOnce is valid for exactly one tool invocation and is deleted
	// when consumed.
	DurationOnce Duration = "once"

	// DurationAlways is valid indefinitely for its scope.
	DurationAlways Duration = "always"
)

// Item is one persisted grant or denial.
//
// ToolInvocationID is set only when Duration is Once: a once-grant is tied
// to the exact invocation the user approved, not to the host in general.
type Item struct {
	ID               string     `json:"id"`
	Scope            Scope      `json:"scope"`
	Action           Action     `json:"action"`
	Duration         Duration   `json:"duration"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	ToolInvocationID string     `json:"tool_invocation_id,omitempty"`
}

// NewItem creates an item with a fresh ID and creation timestamp.
func NewItem(scope Scope, action Action, duration Duration, invocationID string) *Item {
	item := &Item{
		ID:        uuid.New().String(),
		Scope:     scope,
		Action:    action,
		Duration:  duration,
		CreatedAt: time.Now(),
	}
	if duration == DurationOnce {
		item.ToolInvocationID = invocationID
	}
	return item
}

// storeSection is the section key in the backing store.
const storeSection = "permissions"

// Store is the durable owner of permission items. Items are held in memory
// and round-tripped through a sectioned key-value backend on every change,
// so concurrent contexts see each other's writes on the next reload.
type Store struct {
	mu      sync.Mutex
	backend config.Store
	items   []*Item
	rev     uint64
}

// NewStore creates a store over the given backend and loads existing items.
func NewStore(backend config.Store) (*Store, error) {
	s := &Store{backend: backend}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads items from the backend. It returns true when the loaded
// items differ from what was previously in memory, so callers holding
// derived caches know to drop them.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Load(); err != nil {
		return false, fmt.Errorf("failed to reload permission store: %w", err)
	}

	section, err := s.backend.GetSection(storeSection)
	if err != nil {
		return false, fmt.Errorf("failed to read permission section: %w", err)
	}

	items, err := decodeItems(section)
	if err != nil {
		return false, err
	}

	changed := !itemsEqual(s.items, items)
	s.items = items
	if changed {
		s.rev++
	}
	return changed, nil
}

// Revision returns a counter that increments whenever the in-memory item
// list changes.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// Items returns a snapshot of all items.
func (s *Store) Items() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Item, len(s.items))
	copy(out, s.items)
	return out
}

// Add appends an item and persists.
func (s *Store) Add(item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)
	s.rev++
	return s.persistLocked()
}

// Remove deletes the item with the given ID and persists. Removing an
// unknown ID is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := false
	for _, item := range s.items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return nil
	}
	s.items = kept
	s.rev++
	return s.persistLocked()
}

// Touch records that an item matched a check.
func (s *Store) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, item := range s.items {
		if item.ID == id {
			item.LastUsedAt = &now
			s.rev++
			return s.persistLocked()
		}
	}
	return nil
}

// ClearOnce removes every Once-duration item. Called at the start of each
// conversational turn so stale one-shot grants cannot leak across turns.
func (s *Store) ClearOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := false
	for _, item := range s.items {
		if item.Duration == DurationOnce {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return nil
	}
	s.items = kept
	s.rev++
	return s.persistLocked()
}

// persistLocked writes the current items through the backend. Caller holds mu.
func (s *Store) persistLocked() error {
	encoded, err := encodeItems(s.items)
	if err != nil {
		return err
	}
	if err := s.backend.SetSection(storeSection, encoded); err != nil {
		return fmt.Errorf("failed to write permission section: %w", err)
	}
	if err := s.backend.Save(); err != nil {
		return fmt.Errorf("failed to persist permission store: %w", err)
	}
	return nil
}

// encodeItems converts items to the generic section shape.
func encodeItems(items []*Item) (map[string]interface{}, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permission items: %w", err)
	}
	var generic []interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to convert permission items: %w", err)
	}
	return map[string]interface{}{"items": generic}, nil
}

// decodeItems converts the generic section shape back to items.
func decodeItems(section map[string]interface{}) ([]*Item, error) {
	rawItems, ok := section["items"]
	if !ok || rawItems == nil {
		return nil, nil
	}
	raw, err := json.Marshal(rawItems)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode permission items: %w", err)
	}
	var items []*Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode permission items: %w", err)
	}
	return items, nil
}

// itemsEqual compares two item lists by identity-relevant fields.
func itemsEqual(a, b []*Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Action != b[i].Action || a[i].Duration != b[i].Duration {
			return false
		}
	}
	return true
}
