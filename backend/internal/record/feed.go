package record

import (
	"context"
	"io"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/store"
)

// Feed is a live instructor table. Every value is the complete current
// table and replaces the previous one.
type Feed struct {
	sub  *store.Subscription
	tmpl *grading.Template
	svc  *Service
}

// Subscribe opens a live feed of a template's records. The feed ends when
// ctx is cancelled or Close is called.
func (s *Service) Subscribe(ctx context.Context, template string) (*Feed, error) {
	tmpl, err := s.Template(template)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.Watch(ctx, tmpl.Collection)
	if err != nil {
		return nil, err
	}
	return &Feed{sub: sub, tmpl: tmpl, svc: s}, nil
}

// Next blocks for the next snapshot. It returns io.EOF once the store side
// has stopped, or ctx.Err() if ctx ends first.
func (f *Feed) Next(ctx context.Context) ([]grading.StudentRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case docs, ok := <-f.sub.C:
		if !ok {
			return nil, io.EOF
		}
		return f.svc.normalize(docs, f.tmpl), nil
	}
}

// Close releases the store listener. Safe to call more than once.
func (f *Feed) Close() {
	f.sub.Close()
}
