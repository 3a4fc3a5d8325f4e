package engine

import (
	"fmt"
	"sort"
)

// Loader reopens a trained model from its artifact directory.
type Loader func(dir string) (Classifier, error)

var registry = map[string]Loader{}

// Register adds a model loader under the given kind name.
func Register(kind string, loader Loader) {
	registry[kind] = loader
}

// Get returns the loader for the given model kind.
func Get(kind string) (Loader, error) {
	load, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("engine: unknown model kind: %s", kind)
	}
	return load, nil
}

// Kinds returns the registered model kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
