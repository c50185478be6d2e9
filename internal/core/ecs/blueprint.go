package ecs

import (
	"fmt"
	"slices"
	"sync"
)

// Blueprint assembles a fresh set of components for a new entity.
type Blueprint func() []Component

// Blueprints maps blueprint identifiers to their assemblies.
type Blueprints struct {
	mu sync.RWMutex
	m  map[string]Blueprint
}

func NewBlueprints() *Blueprints {
	return &Blueprints{m: make(map[string]Blueprint)}
}

func (b *Blueprints) Register(id string, bp Blueprint) error {
	if id == "" || bp == nil {
		return fmt.Errorf("%w: empty id or nil assembly", ErrUnknownBlueprint)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.m[id]; exists {
		return fmt.Errorf("%w: %s", ErrBlueprintRegistered, id)
	}
	b.m[id] = bp
	return nil
}

func (b *Blueprints) Resolve(id string) (Blueprint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bp, ok := b.m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlueprint, id)
	}
	return bp, nil
}

func (b *Blueprints) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.m))
	for id := range b.m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
