package engine

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations issued after Close
var ErrClosed = errors.New("engine is closed")

// Document is the unit of storage exchanged with an engine
type Document struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// SortField is a single (field, direction) pair of a sort order
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// QueryRequest describes a single query execution against an engine.
// Rows < 0 means no upper bound on the number of returned documents.
type QueryRequest struct {
	Query map[string]interface{}
	Start int
	Rows  int
	Sort  []SortField
}

// QueryResult holds the matched page plus the total match count
// independent of pagination
type QueryResult struct {
	Total int
	Docs  []Document
}

// Engine is the contract required from a concrete index backend.
// Implementations must be safe for concurrent use; ordering of
// concurrent mutations is the engine's responsibility.
type Engine interface {
	// Put upserts documents in a single all-or-nothing batch and
	// returns the document ids in input order. Documents without an
	// id are assigned one.
	Put(ctx context.Context, docs ...Document) ([]string, error)

	// GetByID returns the document with the given id, or nil when
	// no such document exists.
	GetByID(ctx context.Context, id string) (*Document, error)

	// Delete removes documents by id in a single batch. Absent ids
	// are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Query executes a structured query and returns the requested
	// page of matching documents.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// AllIDs returns every document id currently in the index.
	AllIDs(ctx context.Context) ([]string, error)

	// Count returns the number of committed documents.
	Count(ctx context.Context) (int, error)

	// Commit flushes pending writes. Engines that persist per batch
	// may implement this as a no-op.
	Commit(ctx context.Context) error

	// Close releases the engine's resources.
	Close() error
}
