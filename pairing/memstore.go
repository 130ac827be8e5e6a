// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package pairing

import "sync"

// entry pairs a stored record with the options it was Set with, so a
// controller can later look up which relay/keys a topic uses without
// threading that context through every call site.
type entry[T any] struct {
	record T
	opts   SetOptions
}

// MemStore is an in-memory, map-backed Store[T] guarded by a single mutex --
// the same structure the session package uses for its live session table.
// Two independent instances drive the pairing state machine (pending,
// settled); neither is safe to share between controllers.
type MemStore[T any] struct {
	mu      sync.RWMutex
	records map[string]entry[T]
	h       Handlers[T]
}

// NewMemStore returns an empty, ready-to-use store.
func NewMemStore[T any]() *MemStore[T] {
	return &MemStore[T]{records: make(map[string]entry[T])}
}

// Init satisfies Store; MemStore needs no setup.
func (s *MemStore[T]) Init() error { return nil }

func (s *MemStore[T]) Get(topic string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[topic]
	if !ok {
		var zero T
		return zero, NewError(KindNotFound, "topic "+topic+" not found", nil)
	}
	return e.record, nil
}

// Opts returns the SetOptions a topic was stored with, for callers that
// need its relay/key configuration (e.g. to publish on it).
func (s *MemStore[T]) Opts(topic string) (SetOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[topic]
	if !ok {
		return SetOptions{}, NewError(KindNotFound, "topic "+topic+" not found", nil)
	}
	return e.opts, nil
}

func (s *MemStore[T]) Set(topic string, record T, opts SetOptions) error {
	s.mu.Lock()
	s.records[topic] = entry[T]{record: record, opts: opts}
	h := s.h
	s.mu.Unlock()

	if h.OnCreated != nil {
		h.OnCreated(topic, record)
	}
	return nil
}

func (s *MemStore[T]) Update(topic string, mutate func(*T) error) error {
	s.mu.Lock()
	e, ok := s.records[topic]
	if !ok {
		s.mu.Unlock()
		return NewError(KindNotFound, "topic "+topic+" not found", nil)
	}
	if err := mutate(&e.record); err != nil {
		s.mu.Unlock()
		return err
	}
	s.records[topic] = e
	h := s.h
	s.mu.Unlock()

	if h.OnUpdated != nil {
		h.OnUpdated(topic, e.record)
	}
	return nil
}

func (s *MemStore[T]) Delete(topic string, reason string) error {
	s.mu.Lock()
	e, ok := s.records[topic]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.records, topic)
	h := s.h
	s.mu.Unlock()

	if h.OnDeleted != nil {
		h.OnDeleted(topic, e.record, reason)
	}
	return nil
}

func (s *MemStore[T]) Entries() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.record)
	}
	return out
}

func (s *MemStore[T]) Length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemStore[T]) Subscribe(h Handlers[T]) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *MemStore[T]) Notify(topic string, payload []byte) {
	s.mu.RLock()
	_, ok := s.records[topic]
	h := s.h
	s.mu.RUnlock()

	if ok && h.OnPayload != nil {
		h.OnPayload(topic, payload)
	}
}

func (s *MemStore[T]) Close() error {
	s.mu.Lock()
	s.h = Handlers[T]{}
	s.mu.Unlock()
	return nil
}
