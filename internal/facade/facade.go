// Package facade provides a uniform CRUD and search contract over a
// document index. A simple index facade delegates to a single engine;
// join facades compose two facades under a join relation while
// exposing the same contract.
package facade

import (
	"context"

	"github.com/mdevries/open-index-search/config"
	"github.com/mdevries/open-index-search/internal/engine"
)

// AllRows is the sentinel rows value meaning "no upper bound on the
// number of returned records"
const AllRows = -1

// Query is a structured predicate over indexed fields. The supported
// shapes are documented on engine.BuildQuery.
type Query = map[string]interface{}

// Record is a document managed by a facade. A record has no id before
// its first persistence; the engine assigns one on insert and it is
// immutable afterwards.
type Record interface {
	// UniqueID returns the record's id, or "" before persistence.
	UniqueID() string

	// SetUniqueID stores the engine-assigned id on the record.
	SetUniqueID(id string)

	// MarshalFields renders the record's indexed fields.
	MarshalFields() (map[string]interface{}, error)

	// UnmarshalFields populates the record from stored fields.
	UnmarshalFields(fields map[string]interface{}) error
}

// JoinTarget is implemented by records that can carry attached
// records from the joined side of a join facade
type JoinTarget interface {
	AttachJoined(name string, records []Record)
}

// Hits is a single page of search results. Total reports the full
// match count independent of pagination.
type Hits struct {
	Total   int      `json:"total"`
	Records []Record `json:"records"`
}

// Schema is the immutable per-facade configuration: field definitions
// and the default result ordering
type Schema struct {
	Name        string
	Fields      []config.FieldConfig
	DefaultSort []engine.SortField
}

// SchemaFromConfig builds a Schema from its configuration form
func SchemaFromConfig(name string, cfg config.SchemaConfig) *Schema {
	sort := make([]engine.SortField, len(cfg.DefaultSort))
	for i, s := range cfg.DefaultSort {
		sort[i] = engine.SortField{Field: s.Field, Desc: s.Desc}
	}
	return &Schema{
		Name:        name,
		Fields:      cfg.Fields,
		DefaultSort: sort,
	}
}

// Facade is the uniform contract over an index of records.
//
// Batch granularity is all-or-nothing: a failed Update or Remove
// commits none of its records.
type Facade interface {
	// Schema returns the facade's immutable schema.
	Schema() *Schema

	// All returns the full record set without filtering criteria,
	// paginated identically to Search.
	All(ctx context.Context, start, rows int) (*Hits, error)

	// Size returns the current committed record count.
	Size(ctx context.Context) (int, error)

	// ByID returns the record with the given id, or nil when no such
	// record exists.
	ByID(ctx context.Context, id string) (Record, error)

	// Search executes the query, applies the sort (schema default
	// when empty), skips start matches and returns up to rows
	// records, or all remaining when rows is AllRows.
	Search(ctx context.Context, q Query, start, rows int, sort ...engine.SortField) (*Hits, error)

	// Exists reports whether the record is present in the index.
	// Always false for records without an id.
	Exists(ctx context.Context, rec Record) (bool, error)

	// Add validates that none of the records exist, then commits the
	// whole batch via Update. Any id collision fails the entire call
	// with *AlreadyExistsError before any mutation.
	Add(ctx context.Context, recs ...Record) error

	// Update upserts records without existence validation. Records
	// lacking an id are assigned one as a side effect.
	Update(ctx context.Context, recs ...Record) error

	// Remove deletes records by id. Absent ids are silently ignored.
	Remove(ctx context.Context, ids ...string) error

	// Clear removes every record. Facades that do not opt in return
	// ErrClearUnsupported.
	Clear(ctx context.Context) error

	// SupportsClear reports whether Clear is available.
	SupportsClear() bool
}
