package httpcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMemorySize = 1024

// Memory is an in-process Cache bounded to a fixed number of entries.
type Memory struct {
	entries *lru.Cache[string, *Entry]
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a memory cache; size <= 0 uses DefaultMemorySize.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		// only returned for a non-positive size
		panic(fmt.Sprintf("httpcache: %v", err))
	}
	return &Memory{entries: entries}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return cloneEntry(e), true, nil
}

func (m *Memory) Set(_ context.Context, key string, entry *Entry) error {
	m.entries.Add(key, cloneEntry(entry))
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.entries.Purge()
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of cached entries.
func (m *Memory) Len() int {
	return m.entries.Len()
}
