package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// ItemIdentifier extracts the identifier of an item
type ItemIdentifier interface {
	IdentifiersFromItem(ctx context.Context, item any) (metadata.Identifier, error)
}

// MemoryStore is a provider and processor keeping items in process, keyed
// by class and formatted identifier. It serves operations bound to the
// "memory" backend or naming it as provider or processor.
type MemoryStore struct {
	ids   ItemIdentifier
	mu    sync.RWMutex
	items map[metadata.ResourceClass]map[string]any
	order map[metadata.ResourceClass][]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore(ids ItemIdentifier) *MemoryStore {
	return &MemoryStore{
		ids:   ids,
		items: make(map[metadata.ResourceClass]map[string]any),
		order: make(map[metadata.ResourceClass][]string),
	}
}

// Supports implements Provider and Processor
func (s *MemoryStore) Supports(_ context.Context, op metadata.Operation, _ Context) bool {
	return op.Persistence.Backend == "memory" ||
		op.Provider == "memory.provider" ||
		op.Processor == "memory.processor"
}

// Provide implements Provider. Collections come back in insertion order;
// a missing item is nil.
func (s *MemoryStore) Provide(_ context.Context, op metadata.Operation, uriVariables map[string]any, _ Context) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if op.IsCollection() {
		items := make([]any, 0, len(s.order[op.Class]))
		for _, key := range s.order[op.Class] {
			items = append(items, s.items[op.Class][key])
		}
		return items, nil
	}

	key, err := ItemKey(op, uriVariables)
	if err != nil {
		return nil, err
	}
	return s.items[op.Class][key], nil
}

// Process implements Processor
func (s *MemoryStore) Process(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, _ Context) (any, error) {
	if op.IsDelete() {
		key, err := ItemKey(op, uriVariables)
		if err != nil {
			return nil, err
		}
		s.delete(op.Class, key)
		return nil, nil
	}

	if s.ids == nil {
		return nil, fmt.Errorf("memory store has no identifier extractor")
	}
	id, err := s.ids.IdentifiersFromItem(ctx, data)
	if err != nil {
		return nil, err
	}
	s.put(op.Class, id.String(), data)
	return data, nil
}

// Len returns the number of items stored for class
func (s *MemoryStore) Len(class metadata.ResourceClass) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[class])
}

func (s *MemoryStore) put(class metadata.ResourceClass, key string, item any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[class] == nil {
		s.items[class] = make(map[string]any)
	}
	if _, exists := s.items[class][key]; !exists {
		s.order[class] = append(s.order[class], key)
	}
	s.items[class][key] = item
}

func (s *MemoryStore) delete(class metadata.ResourceClass, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[class][key]; !exists {
		return
	}
	delete(s.items[class], key)
	order := s.order[class]
	for i, k := range order {
		if k == key {
			s.order[class] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
}

// ItemKey formats the identifier of the item an operation addresses from
// its converted URI variables. Only variables identifying the operation's
// own class are used; composite variables hold one value per identifier
// property.
func ItemKey(op metadata.Operation, uriVariables map[string]any) (string, error) {
	var id metadata.Identifier
	for _, v := range op.URIVariables {
		if v.ToProperty != "" || (v.FromClass != "" && v.FromClass != op.Class) {
			continue
		}
		value, ok := uriVariables[v.Parameter]
		if !ok {
			return "", &metadata.InvalidURIVariableError{Parameter: v.Parameter, Err: fmt.Errorf("missing value")}
		}

		if !v.Composite {
			name := v.Parameter
			if len(v.Identifiers) > 0 {
				name = v.Identifiers[0]
			}
			id = append(id, metadata.IdentifierValue{Property: name, Value: value})
			continue
		}

		parts, ok := value.(map[string]any)
		if !ok {
			return "", &metadata.InvalidURIVariableError{Parameter: v.Parameter, Value: fmt.Sprint(value), Err: fmt.Errorf("composite value expected")}
		}
		for _, name := range v.Identifiers {
			id = append(id, metadata.IdentifierValue{Property: name, Value: parts[name]})
		}
	}
	if len(id) == 0 {
		return "", &metadata.InvalidURIVariableError{Parameter: "id", Err: fmt.Errorf("operation %s has no identifier variables", op.Name)}
	}
	return id.String(), nil
}
