package factmodel

import "sync"

// SymbolID is an interned field name.
type SymbolID uint32

// Interner maps field names to small dense integers and back. Condition
// evaluation, the alpha memories and the beta network do not use it: they
// compare and look up fields by their string names.
type Interner struct {
	mu      sync.RWMutex
	byName  map[string]SymbolID
	byIndex []string
}

func NewInterner() *Interner {
	return &Interner{byName: make(map[string]SymbolID)}
}

// Intern returns the SymbolID for name, assigning a new one if this is the
// first time name has been seen.
func (in *Interner) Intern(name string) SymbolID {
	in.mu.RLock()
	if id, ok := in.byName[name]; ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byName[name]; ok {
		return id
	}
	id := SymbolID(len(in.byIndex))
	in.byIndex = append(in.byIndex, name)
	in.byName[name] = id
	return id
}

// Lookup returns the SymbolID already assigned to name, if any.
func (in *Interner) Lookup(name string) (SymbolID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byName[name]
	return id, ok
}

// Name returns the field name for a SymbolID previously returned by Intern.
func (in *Interner) Name(id SymbolID) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.byIndex) {
		return ""
	}
	return in.byIndex[id]
}
