package ecs

import "errors"

// Configuration errors. They indicate a build that cannot run safely and
// are returned at the call site that discovers them.
var (
	ErrUnknownBlueprint    = errors.New("unknown blueprint")
	ErrBlueprintRegistered = errors.New("blueprint already registered")
	ErrUnknownKind         = errors.New("unknown component kind")
	ErrKindRegistered      = errors.New("component kind already registered")
	ErrInvalidKind         = errors.New("invalid component kind")
	ErrNotReplicable       = errors.New("component is replicated but can neither be deserialized nor interpolated")
	ErrDuplicateComponent  = errors.New("entity already has a component of this kind")
	ErrComponentAttached   = errors.New("component is attached to another entity")
)

// Runtime errors.
var (
	ErrEntityExists   = errors.New("entity already exists")
	ErrEntityNotFound = errors.New("entity not found")
	ErrReservedAction = errors.New("action name is reserved for lifecycle events")
)
