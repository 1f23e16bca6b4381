package hprof

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClassLayout is the instance layout declared by one CLASS DUMP. Fields
// holds only the fields declared on the class itself, in declaration
// order; inherited fields live on the ancestors' layouts.
type ClassLayout struct {
	ClassID      uint64
	SuperClassID uint64 // 0 means no superclass
	InstanceSize uint32
	Fields       []InstanceField
}

// ClassRegistry stores class layouts for the duration of one parse and
// resolves the full field list of a class through its superclass chain.
// Layouts are write-once, so resolved lists never go stale. It is not
// safe for concurrent use.
type ClassRegistry struct {
	layouts map[uint64]*ClassLayout
	// nil when caching is disabled
	resolved *lru.Cache[uint64, []InstanceField]
}

// NewClassRegistry creates an empty registry. cacheSize bounds the number
// of resolved field lists kept; zero or negative disables the cache.
func NewClassRegistry(cacheSize int) *ClassRegistry {
	r := &ClassRegistry{layouts: make(map[uint64]*ClassLayout)}
	if cacheSize > 0 {
		// lru.New only fails for a non-positive size.
		r.resolved, _ = lru.New[uint64, []InstanceField](cacheSize)
	}
	return r
}

// Register adds the layout of a class. Registering a class id twice is
// an error.
func (r *ClassRegistry) Register(layout *ClassLayout) error {
	if _, exists := r.layouts[layout.ClassID]; exists {
		return &DecodeError{
			Kind:   ErrDuplicateClass,
			Detail: fmt.Sprintf("class 0x%x already registered", layout.ClassID),
		}
	}
	r.layouts[layout.ClassID] = layout
	return nil
}

// Lookup returns the layout registered for classID.
func (r *ClassRegistry) Lookup(classID uint64) (*ClassLayout, bool) {
	l, ok := r.layouts[classID]
	return l, ok
}

// Len returns the number of registered classes.
func (r *ClassRegistry) Len() int {
	return len(r.layouts)
}

// ResolveFields returns the instance fields of classID and all of its
// ancestors, most distant ancestor first. The returned slice is shared
// and must not be modified.
func (r *ClassRegistry) ResolveFields(classID uint64) ([]InstanceField, error) {
	if r.resolved != nil {
		if fields, ok := r.resolved.Get(classID); ok {
			return fields, nil
		}
	}

	// Walk up to the root collecting the chain, class itself first.
	var chain []*ClassLayout
	total := 0
	for id := classID; id != 0; {
		layout, ok := r.layouts[id]
		if !ok {
			detail := fmt.Sprintf("class 0x%x is not registered", id)
			if id != classID {
				detail = fmt.Sprintf("ancestor 0x%x of class 0x%x is not registered", id, classID)
			}
			return nil, &DecodeError{Kind: ErrUnresolvedClass, Detail: detail}
		}
		if len(chain) >= len(r.layouts) {
			return nil, &DecodeError{
				Kind:   ErrUnresolvedClass,
				Detail: fmt.Sprintf("superclass cycle through class 0x%x", classID),
			}
		}
		chain = append(chain, layout)
		total += len(layout.Fields)
		id = layout.SuperClassID
	}

	fields := make([]InstanceField, 0, total)
	for i := len(chain) - 1; i >= 0; i-- {
		fields = append(fields, chain[i].Fields...)
	}

	if r.resolved != nil {
		r.resolved.Add(classID, fields)
	}
	return fields, nil
}
