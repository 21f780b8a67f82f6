package facade

import (
	"context"
	"fmt"
	"sync"

	"github.com/mdevries/open-index-search/internal/engine"
)

// IndexOptions configures a simple index facade
type IndexOptions struct {
	Schema        *Schema
	Engine        engine.Engine
	NewRecord     func() Record
	SupportsClear bool
}

// Index is the simple index facade: it validates and shapes requests
// and delegates storage and query execution to its engine. The facade
// holds no mutable cross-call state beyond the immutable schema, so
// concurrent calls are safe whenever the engine is.
type Index struct {
	schema        *Schema
	engine        engine.Engine
	newRecord     func() Record
	supportsClear bool

	// addMu serializes Add's validate-then-commit so two concurrent
	// Adds cannot both pass validation for the same id. Update stays
	// lock-free: it performs no validation.
	addMu sync.Mutex
}

// NewIndex creates an index facade over the given engine
func NewIndex(opts IndexOptions) (*Index, error) {
	if opts.Schema == nil {
		return nil, fmt.Errorf("index facade requires a schema")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("index facade requires an engine")
	}
	if opts.NewRecord == nil {
		opts.NewRecord = NewMapRecordFactory()
	}
	return &Index{
		schema:        opts.Schema,
		engine:        opts.Engine,
		newRecord:     opts.NewRecord,
		supportsClear: opts.SupportsClear,
	}, nil
}

// Schema returns the facade's immutable schema
func (ix *Index) Schema() *Schema {
	return ix.schema
}

// All returns the full record set, paginated identically to Search
func (ix *Index) All(ctx context.Context, start, rows int) (*Hits, error) {
	return ix.Search(ctx, nil, start, rows)
}

// Size returns the committed record count
func (ix *Index) Size(ctx context.Context) (int, error) {
	return ix.engine.Count(ctx)
}

// ByID returns the record with the given id, or nil when absent
func (ix *Index) ByID(ctx context.Context, id string) (Record, error) {
	doc, err := ix.engine.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return ix.rehydrate(doc)
}

// Search executes the query against the engine and wraps the result
// page into Hits
func (ix *Index) Search(ctx context.Context, q Query, start, rows int, sort ...engine.SortField) (*Hits, error) {
	if err := validatePage(start, rows); err != nil {
		return nil, err
	}

	order := sort
	if len(order) == 0 {
		order = ix.schema.DefaultSort
	}

	result, err := ix.engine.Query(ctx, engine.QueryRequest{
		Query: q,
		Start: start,
		Rows:  rows,
		Sort:  order,
	})
	if err != nil {
		return nil, err
	}

	hits := &Hits{Total: result.Total, Records: make([]Record, 0, len(result.Docs))}
	for i := range result.Docs {
		rec, err := ix.rehydrate(&result.Docs[i])
		if err != nil {
			return nil, err
		}
		hits.Records = append(hits.Records, rec)
	}

	return hits, nil
}

// Exists reports whether the record is present. Records without an id
// have never been persisted and always report false.
func (ix *Index) Exists(ctx context.Context, rec Record) (bool, error) {
	id := rec.UniqueID()
	if id == "" {
		return false, nil
	}
	doc, err := ix.engine.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Add validates the whole batch against the pre-call state, then
// delegates to Update. Any id already present fails the entire call
// with *AlreadyExistsError before any mutation. Two records in the
// same batch without ids can never collide: each gets a fresh
// engine-assigned id at commit time.
func (ix *Index) Add(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}

	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	var conflicts []string
	for _, rec := range recs {
		exists, err := ix.Exists(ctx, rec)
		if err != nil {
			return err
		}
		if exists {
			conflicts = append(conflicts, rec.UniqueID())
		}
	}
	if len(conflicts) > 0 {
		return &AlreadyExistsError{IDs: conflicts}
	}

	return ix.Update(ctx, recs...)
}

// Update upserts the batch in one engine commit, then writes the
// engine-assigned ids back onto the records
func (ix *Index) Update(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}

	docs := make([]engine.Document, len(recs))
	for i, rec := range recs {
		fields, err := rec.MarshalFields()
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		docs[i] = engine.Document{ID: rec.UniqueID(), Fields: fields}
	}

	ids, err := ix.engine.Put(ctx, docs...)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		if rec.UniqueID() == "" {
			rec.SetUniqueID(ids[i])
		}
	}

	return ix.engine.Commit(ctx)
}

// Remove deletes records by id; absent ids are silently ignored
func (ix *Index) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ix.engine.Delete(ctx, ids...); err != nil {
		return err
	}
	return ix.engine.Commit(ctx)
}

// Clear removes every record when the facade has opted in
func (ix *Index) Clear(ctx context.Context) error {
	if !ix.supportsClear {
		return ErrClearUnsupported
	}

	ids, err := ix.engine.AllIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ix.engine.Delete(ctx, ids...); err != nil {
		return err
	}
	return ix.engine.Commit(ctx)
}

// SupportsClear reports whether Clear is available
func (ix *Index) SupportsClear() bool {
	return ix.supportsClear
}

func (ix *Index) rehydrate(doc *engine.Document) (Record, error) {
	rec := ix.newRecord()
	if err := rec.UnmarshalFields(doc.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", doc.ID, err)
	}
	rec.SetUniqueID(doc.ID)
	return rec, nil
}

func validatePage(start, rows int) error {
	if start < 0 {
		return fmt.Errorf("%w: start must be >= 0, got %d", ErrInvalidPagination, start)
	}
	if rows < 0 && rows != AllRows {
		return fmt.Errorf("%w: rows must be >= 0 or AllRows, got %d", ErrInvalidPagination, rows)
	}
	return nil
}

var _ Facade = (*Index)(nil)
