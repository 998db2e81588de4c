// Package store is the narrow document-collection contract the grading core
// depends on, with MongoDB and in-process implementations.
package store

import (
	"context"
	"sync"

	"classrecord/backend/internal/shared"
)

// RecordStore is a collection/document store keyed by idNumber.
//
// Every method returns an error wrapping shared.ErrStoreUnavailable when the
// backend cannot be reached or a call exceeds its timeout.
type RecordStore interface {
	// ListAll returns every document of a collection ordered by id.
	ListAll(ctx context.Context, collection string) ([]shared.Document, error)

	// Upsert merges fields into the document with the given id, creating it if absent.
	Upsert(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting a missing id is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Watch opens a live feed of full collection snapshots.
	Watch(ctx context.Context, collection string) (*Subscription, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Subscription delivers full snapshots of a collection. Each value replaces
// the previous one; a slow reader only ever sees the latest snapshot.
type Subscription struct {
	C <-chan []shared.Document

	ch     chan []shared.Document
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// newSubscription starts a feed whose producer runs until ctx is cancelled or
// Close is called. produce must return when its context is done.
func newSubscription(ctx context.Context, produce func(ctx context.Context, publish func([]shared.Document))) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan []shared.Document, 1)
	s := &Subscription{C: ch, ch: ch, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(ch)
		produce(ctx, s.publish)
	}()
	return s
}

// publish replaces any undelivered snapshot with snap.
func (s *Subscription) publish(snap []shared.Document) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Close releases the store-side listener and waits for the producer to exit.
// It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
	})
	<-s.done
}

// Done is closed once the feed has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
