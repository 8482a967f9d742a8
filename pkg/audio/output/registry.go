// ABOUTME: Named registry of playback drivers
// ABOUTME: Built-in drivers register themselves according to build tags
package output

import (
	"fmt"
	"sort"
	"sync"

	"github.com/decred/slog"
)

// Config is passed to driver factories.
type Config struct {
	Log slog.Logger

	// WAVPath is the file the wavfile driver writes for the default device.
	WAVPath string
}

// Factory creates a driver.
type Factory func(cfg Config) (Driver, error)

// Registry maps driver names to factories.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a driver factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Lookup creates the driver registered under name.
func (r *Registry) Lookup(name string, cfg Config) (Driver, error) {
	r.mu.Lock()
	f, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown output driver %q (available: %v)", name, r.Names())
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	return f(cfg)
}

// Has returns true if a driver is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered driver names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

func init() {
	Register("null", func(cfg Config) (Driver, error) {
		return NewNull(cfg.Log), nil
	})
	Register("wavfile", func(cfg Config) (Driver, error) {
		return NewWAVFile(cfg.WAVPath, cfg.Log), nil
	})
}

// Register adds a driver to the process-wide registry.
func Register(name string, f Factory) {
	defaultRegistry.Register(name, f)
}

// Lookup creates a driver from the process-wide registry.
func Lookup(name string, cfg Config) (Driver, error) {
	return defaultRegistry.Lookup(name, cfg)
}

// Names lists the drivers in the process-wide registry.
func Names() []string {
	return defaultRegistry.Names()
}

// preferredDrivers is the order DefaultDriverName walks.
var preferredDrivers = []string{"alsa", "malgo", "oto", "null"}

// DefaultDriverName returns the best driver compiled into this binary.
func DefaultDriverName() string {
	for _, name := range preferredDrivers {
		if defaultRegistry.Has(name) {
			return name
		}
	}
	return "null"
}
