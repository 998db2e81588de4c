package store

import (
	"context"
	"sort"
	"sync"

	"classrecord/backend/internal/shared"
)

// MemoryStore keeps collections in process memory. It backs tests and the
// STORE_DRIVER=memory development mode.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	watchers    map[string]map[chan struct{}]struct{}

	// Fail, when set, is returned from every call, simulating an outage.
	Fail error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[string]map[chan struct{}]struct{}),
	}
}

func (m *MemoryStore) failure(op string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return shared.Unavailable(op, m.Fail)
	}
	return nil
}

// SetFailure switches the simulated outage on (err != nil) or off.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	m.Fail = err
	m.mu.Unlock()
}

// ListAll returns a copy of every document ordered by id.
func (m *MemoryStore) ListAll(ctx context.Context, collection string) ([]shared.Document, error) {
	if err := m.failure("list " + collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, shared.Unavailable("list "+collection, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(collection), nil
}

func (m *MemoryStore) snapshotLocked(collection string) []shared.Document {
	docs := make([]shared.Document, 0, len(m.collections[collection]))
	for id, fields := range m.collections[collection] {
		docs = append(docs, shared.Document{ID: id, Fields: fields}.Clone())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Upsert merges fields into the stored document.
func (m *MemoryStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := m.failure("upsert " + collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return shared.Unavailable("upsert "+collection, err)
	}

	m.mu.Lock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	doc, ok := docs[id]
	if !ok {
		doc = make(map[string]any, len(fields))
		docs[id] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	m.notifyLocked(collection)
	m.mu.Unlock()
	return nil
}

// Delete removes a document.
func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := m.failure("delete " + collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return shared.Unavailable("delete "+collection, err)
	}

	m.mu.Lock()
	if _, ok := m.collections[collection][id]; ok {
		delete(m.collections[collection], id)
		m.notifyLocked(collection)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) notifyLocked(collection string) {
	for w := range m.watchers[collection] {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

// Watch emits the current snapshot, then a fresh snapshot after every change.
func (m *MemoryStore) Watch(ctx context.Context, collection string) (*Subscription, error) {
	if err := m.failure("watch " + collection); err != nil {
		return nil, err
	}

	changed := make(chan struct{}, 1)
	m.mu.Lock()
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[chan struct{}]struct{})
	}
	m.watchers[collection][changed] = struct{}{}
	m.mu.Unlock()

	return newSubscription(ctx, func(ctx context.Context, publish func([]shared.Document)) {
		defer func() {
			m.mu.Lock()
			delete(m.watchers[collection], changed)
			m.mu.Unlock()
		}()

		for {
			m.mu.RLock()
			snap := m.snapshotLocked(collection)
			m.mu.RUnlock()
			publish(snap)

			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	}), nil
}

// Ping fails only while a simulated outage is set.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.failure("ping")
}

// Watchers reports the number of open subscriptions on a collection.
func (m *MemoryStore) Watchers(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[collection])
}
