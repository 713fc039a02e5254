// Package memory provides an in-memory EventStore for tests and examples.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/storage"
)

// Store implements storage.EventStore using an in-memory map.
type Store struct {
	mu     sync.RWMutex
	events map[string]*calendar.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{events: make(map[string]*calendar.Event)}
}

func (s *Store) Get(_ context.Context, uid string) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[uid]
	if !ok {
		return nil, calendar.NewError(calendar.KindNotFound, "event %s not found", uid)
	}
	return ev.Clone(), nil
}

func (s *Store) PutIfSequence(_ context.Context, ev *calendar.Event, expectedSequence int) error {
	if ev == nil || ev.UID == "" {
		return calendar.NewError(calendar.KindValidation, "cannot store event without UID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.events[ev.UID]
	switch {
	case !exists && expectedSequence != 0:
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s expected at sequence %d but is absent", ev.UID, expectedSequence)
	case exists && expectedSequence == 0:
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s already exists at sequence %d", ev.UID, stored.Sequence)
	case exists && stored.Sequence != expectedSequence:
		return calendar.NewError(calendar.KindStaleWrite,
			"event %s is at sequence %d, expected %d", ev.UID, stored.Sequence, expectedSequence)
	}
	s.events[ev.UID] = ev.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[uid]; !ok {
		return calendar.NewError(calendar.KindNotFound, "event %s not found", uid)
	}
	delete(s.events, uid)
	return nil
}

func (s *Store) Query(_ context.Context, q storage.Query) ([]*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*calendar.Event
	for _, ev := range s.events {
		if q.Matches(ev) {
			out = append(out, ev.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
