package client

import "sync"

// Resource names a kind of shared NetBox object whose ids are cached
type Resource string

const (
	ResourceRoles         Resource = "roles"
	ResourceManufacturers Resource = "manufacturers"
	ResourceDeviceTypes   Resource = "device_types"
)

// CacheManager remembers the ids of shared objects reconciled earlier in a
// push, keyed by slug
type CacheManager struct {
	mu  sync.RWMutex
	ids map[Resource]map[string]int
}

// NewCacheManager creates an empty cache
func NewCacheManager() *CacheManager {
	return &CacheManager{ids: make(map[Resource]map[string]int)}
}

// GetID retrieves an ID from the cache
func (cm *CacheManager) GetID(resource Resource, slug string) (int, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, ok := cm.ids[resource][slug]
	return id, ok
}

// Set records the id of a reconciled object. Dry-run creates return id 0,
// which is not cached so lookups keep reporting a miss.
func (cm *CacheManager) Set(resource Resource, slug string, id int) {
	if id == 0 {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.ids[resource] == nil {
		cm.ids[resource] = make(map[string]int)
	}
	cm.ids[resource][slug] = id
}
