package registry

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process Store bounded to a fixed number of streams. The
// least recently used stream is evicted first.
type Memory struct {
	cache *lru.Cache[string, Entry]
}

// NewMemory creates a Memory store holding at most maxStreams entries.
func NewMemory(maxStreams int) (*Memory, error) {
	c, err := lru.New[string, Entry](maxStreams)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c}, nil
}

func (m *Memory) Put(_ context.Context, e Entry) error {
	m.cache.Add(e.Stream, e)
	return nil
}

func (m *Memory) Get(_ context.Context, stream string) (Entry, bool, error) {
	e, ok := m.cache.Get(stream)
	return e, ok, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	keys := m.cache.Keys()
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored streams.
func (m *Memory) Len() int {
	return m.cache.Len()
}

func (m *Memory) Close() error {
	m.cache.Purge()
	return nil
}
