package module

import (
	"sort"
	"sync"
)

// registry of port sets by module name, filled once during bootstrap
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores a port set for a module name; a later call replaces it
func Register(name string, ports any) {
	mu.Lock()
	reg[name] = ports
	mu.Unlock()
}

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Names lists the registered module names, sorted
func Names() []string {
	mu.RLock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reset clears the registry
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
