package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var _ ObjectStore = (*MemoryObjectStore)(nil)

// MemoryObjectStore is an in-process ObjectStore for development and tests
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data     []byte
	modified time.Time
}

// NewMemoryObjectStore creates an empty MemoryObjectStore
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]memoryObject), now: time.Now}
}

// Put implements ObjectStore
func (s *MemoryObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if key == "" {
		return fmt.Errorf("storage key is required")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: cp, modified: s.now()}
	return nil
}

// Get implements ObjectStore
func (s *MemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

// List implements ObjectStore. The token is the offset into the sorted listing.
func (s *MemoryObjectStore) List(_ context.Context, prefix, token string, limit int) (*ObjectPage, error) {
	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("storage: invalid continuation token %q", token)
		}
		offset = n
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &ObjectPage{}
	if offset < len(keys) {
		end := len(keys)
		if limit > 0 && offset+limit < end {
			end = offset + limit
			page.NextToken = strconv.Itoa(end)
		}
		for _, k := range keys[offset:end] {
			obj := s.objects[k]
			page.Objects = append(page.Objects, ObjectInfo{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	s.mu.RUnlock()
	return page, nil
}

// Ping implements ObjectStore
func (s *MemoryObjectStore) Ping(context.Context) error { return nil }

// Len returns the number of stored objects
func (s *MemoryObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
