package genotype

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

const registryFormat = "innovations/v1"

// InnovationRegistry hands out stable innovation numbers for structural body
// changes so equal changes made in different lineages align during crossover.
type InnovationRegistry struct {
	mu    sync.Mutex
	next  int64
	byKey map[string]int64
}

type registryEntry struct {
	Key        string `json:"key"`
	Innovation int64  `json:"innovation"`
}

type registryPayload struct {
	Format  string          `json:"format"`
	Next    int64           `json:"next"`
	Entries []registryEntry `json:"entries"`
}

func NewInnovationRegistry() *InnovationRegistry {
	return &InnovationRegistry{next: 1, byKey: make(map[string]int64)}
}

func (r *InnovationRegistry) Innovation(x, y int, kind string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%d,%d,%s", x, y, kind)
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byKey[key] = id
	return id
}

func (r *InnovationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// Serialize encodes the registry deterministically.
func (r *InnovationRegistry) Serialize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]registryEntry, 0, len(r.byKey))
	for key, id := range r.byKey {
		entries = append(entries, registryEntry{Key: key, Innovation: id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Innovation < entries[j].Innovation })
	data, err := json.Marshal(registryPayload{Format: registryFormat, Next: r.next, Entries: entries})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Deserialize replaces the registry contents with a serialized snapshot.
func (r *InnovationRegistry) Deserialize(data string) error {
	var payload registryPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return fmt.Errorf("decode innovation registry: %w", err)
	}
	if payload.Format != registryFormat {
		return fmt.Errorf("unsupported innovation registry format: %q", payload.Format)
	}
	byKey := make(map[string]int64, len(payload.Entries))
	for _, entry := range payload.Entries {
		byKey[entry.Key] = entry.Innovation
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = payload.Next
	r.byKey = byKey
	return nil
}
