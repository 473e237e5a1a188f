package bytecode

import "sort"

// Globals is the name-to-value table shared by every run in a session.
type Globals struct {
	values map[string]Value
}

// NewGlobals returns an empty table.
func NewGlobals() *Globals {
	return &Globals{values: make(map[string]Value)}
}

// Define binds name, replacing any previous binding.
func (g *Globals) Define(name string, v Value) {
	g.values[name] = v
}

// Get looks name up.
func (g *Globals) Get(name string) (Value, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Set rebinds an existing global. It reports false if name is undefined.
func (g *Globals) Set(name string, v Value) bool {
	if _, ok := g.values[name]; !ok {
		return false
	}
	g.values[name] = v
	return true
}

// Delete removes a binding.
func (g *Globals) Delete(name string) {
	delete(g.values, name)
}

// Names returns the bound names in sorted order.
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.values))
	for name := range g.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (g *Globals) Len() int {
	return len(g.values)
}
