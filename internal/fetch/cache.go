package fetch

import "sync"

// RepositoryCache maps repository keys to local clone paths.
type RepositoryCache interface {
	Lookup(repositoryKey string) (string, bool)
	Store(repositoryKey string, repositoryPath string)
}

// MemoryRepositoryCache is a RepositoryCache safe for concurrent use.
type MemoryRepositoryCache struct {
	mutex   sync.RWMutex
	entries map[string]string
}

// NewMemoryRepositoryCache constructs an empty in-memory cache.
func NewMemoryRepositoryCache() *MemoryRepositoryCache {
	return &MemoryRepositoryCache{entries: make(map[string]string)}
}

// Lookup returns the cached path for the key.
func (cache *MemoryRepositoryCache) Lookup(repositoryKey string) (string, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()

	repositoryPath, exists := cache.entries[repositoryKey]
	return repositoryPath, exists
}

// Store records the path for the key, replacing any previous entry.
func (cache *MemoryRepositoryCache) Store(repositoryKey string, repositoryPath string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	if cache.entries == nil {
		cache.entries = make(map[string]string)
	}
	cache.entries[repositoryKey] = repositoryPath
}

// Len reports the number of cached entries.
func (cache *MemoryRepositoryCache) Len() int {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return len(cache.entries)
}
