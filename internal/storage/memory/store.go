// Package memory is an in-memory chatlog.Sink for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatgate-dev/chatgate/internal/chatlog"
)

// Store keeps documents in process memory. Contents are lost on restart.
type Store struct {
	mu   sync.RWMutex
	docs map[string]chatlog.Document
	// order preserves insertion order per request id
	order []string
}

var _ chatlog.Sink = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string]chatlog.Document)}
}

func (s *Store) PutDocument(ctx context.Context, doc chatlog.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*chatlog.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[id]
	if !exists {
		return nil, fmt.Errorf("chat record %s not found", id)
	}
	return &doc, nil
}

func (s *Store) ListByRequestID(ctx context.Context, requestID string) ([]chatlog.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []chatlog.Document
	for _, id := range s.order {
		if doc := s.docs[id]; doc.RequestID == requestID {
			result = append(result, doc)
		}
	}
	return result, nil
}

// Len reports the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
