// ABOUTME: Index and capability contracts published by backends
// ABOUTME: Journal and repository collaborators wired into the engine

// Package index resolves abstract index requirements to concrete indices
// published by pluggable backends.
package index

import (
	"context"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/layout"
)

// Index is a concrete index over one or more attributes.
type Index interface {
	Attributes() []*Attribute
	// Features lists the features this index serves.
	Features() FeatureSet
	Add(e *Entity) error
	Remove(e *Entity) error
	// Retrieve returns the IDs of matching entities. Queries whose feature is
	// not in Features fail with ErrUnsupportedQuery.
	Retrieve(q Query) ([]uuid.UUID, error)
	Len() int
}

// Capability is one kind of index a backend can build.
type Capability struct {
	Name     string
	Features FeatureSet
	New      func(attrs []*Attribute) (Index, error)
}

// Journal replays stored entities of a type.
type Journal interface {
	Replay(ctx context.Context, entityType layout.Type, fn func(e *Entity) error) error
}

// Repository lists the entity types known to the application.
type Repository interface {
	EntityTypes() []layout.Type
}

// Recorder observes engine activity. Resolution outcomes are "created",
// "cached", "unsupported" or "error"; query paths are "index" or "scan".
type Recorder interface {
	IndexResolved(engine, capability, outcome string)
	QueryServed(entityType, path string)
}

type nopRecorder struct{}

func (nopRecorder) IndexResolved(string, string, string) {}
func (nopRecorder) QueryServed(string, string)           {}
