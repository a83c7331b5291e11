// Package assets holds document storage adapters.
package assets

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "dealerhub/pkg/domain"
	"dealerhub/pkg/platform/sentinel"
)

const scheme = "mem://documents/"

type object struct {
	contentType string
	data        []byte
}

// InMemory is a development document store. References look like
// mem://documents/<account>/<docType>/<uuid>.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string]object)}
}

func (s *InMemory) Store(_ context.Context, accountID id.AccountID, docType string, contentType string, data []byte) (string, error) {
	ref := fmt.Sprintf("%s%s/%s/%s", scheme, accountID, docType, uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return ref, nil
}

// Delete removes an object. Deleting an unknown reference is not an error.
func (s *InMemory) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	return nil
}

// Exists reports whether ref is stored. Test helper.
func (s *InMemory) Exists(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[ref]
	return ok
}

// Open returns the stored bytes and content type.
func (s *InMemory) Open(_ context.Context, ref string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[ref]
	if !ok {
		return nil, "", fmt.Errorf("document %s: %w", ref, sentinel.ErrNotFound)
	}
	return append([]byte(nil), o.data...), o.contentType, nil
}
