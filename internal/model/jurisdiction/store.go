package jurisdiction

import "strings"

// Store exposes jurisdiction lookup for handlers and the prompt builder.
type Store interface {
	List() []Jurisdiction
	FindByCode(code string) (Jurisdiction, bool)
	Default() Jurisdiction
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items       []Jurisdiction
	defaultCode string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied items.
// defaultCode falls back to the first item when it is unknown.
func NewMemoryStore(items []Jurisdiction, defaultCode string) *MemoryStore {
	return &MemoryStore{
		items:       append([]Jurisdiction(nil), items...),
		defaultCode: strings.ToUpper(strings.TrimSpace(defaultCode)),
	}
}

// List returns the configured jurisdictions.
func (s *MemoryStore) List() []Jurisdiction {
	return append([]Jurisdiction(nil), s.items...)
}

// FindByCode looks up a jurisdiction by its code, ignoring case.
func (s *MemoryStore) FindByCode(code string) (Jurisdiction, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, item := range s.items {
		if item.Code == code {
			return item, true
		}
	}
	return Jurisdiction{}, false
}

// Default returns the deployment's default jurisdiction.
func (s *MemoryStore) Default() Jurisdiction {
	if j, ok := s.FindByCode(s.defaultCode); ok {
		return j
	}
	if len(s.items) > 0 {
		return s.items[0]
	}
	return Jurisdiction{
		Code:             "XX",
		Name:             "Unknown",
		EmergencyNumbers: []Number{{Label: "Emergency Services", Number: "112"}},
	}
}

// Resolve returns the jurisdiction for code, or the default when code is
// empty or unknown.
func Resolve(s Store, code string) Jurisdiction {
	if strings.TrimSpace(code) != "" {
		if j, ok := s.FindByCode(code); ok {
			return j
		}
	}
	return s.Default()
}
