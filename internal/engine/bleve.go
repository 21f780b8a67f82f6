package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/mdevries/open-index-search/config"
)

// BleveEngine implements Engine on top of a single Bleve index
type BleveEngine struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// NewBleveEngine opens the index at path, creating it from the schema
// mapping when it does not exist. An empty path creates an in-memory
// index, which is what the tests use.
func NewBleveEngine(path string, schema config.SchemaConfig) (*BleveEngine, error) {
	indexMapping := buildMapping(schema)

	var index bleve.Index
	var err error

	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &BleveEngine{index: index}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	// Try to open existing index first
	index, err = bleve.Open(path)
	if err != nil {
		index, err = bleve.New(path, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", path, err)
		}
	}

	return &BleveEngine{index: index}, nil
}

// buildMapping creates a Bleve mapping from schema configuration
func buildMapping(schema config.SchemaConfig) mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	if schema.Dynamic {
		indexMapping.DefaultMapping.Dynamic = true
		// Store dynamic fields so documents can be rehydrated from hits
		indexMapping.StoreDynamic = true
	}

	for _, fieldCfg := range schema.Fields {
		fieldMapping := buildFieldMapping(fieldCfg)
		indexMapping.DefaultMapping.AddFieldMappingsAt(fieldCfg.Name, fieldMapping)
	}

	return indexMapping
}

// buildFieldMapping creates a field mapping from configuration
func buildFieldMapping(cfg config.FieldConfig) *mapping.FieldMapping {
	var fieldMapping *mapping.FieldMapping

	switch cfg.Type {
	case "keyword":
		fieldMapping = bleve.NewKeywordFieldMapping()
	case "numeric":
		fieldMapping = bleve.NewNumericFieldMapping()
	case "date":
		fieldMapping = bleve.NewDateTimeFieldMapping()
	case "boolean":
		fieldMapping = bleve.NewBooleanFieldMapping()
	default:
		fieldMapping = bleve.NewTextFieldMapping()
	}

	if cfg.Analyzer != "" {
		fieldMapping.Analyzer = cfg.Analyzer
	}

	// Always store field values so they can be returned in results
	fieldMapping.Store = true

	return fieldMapping
}

// Put upserts documents in a single batch and returns their ids in
// input order. Documents without an id get a fresh UUID.
func (e *BleveEngine) Put(ctx context.Context, docs ...Document) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(docs))
	batch := e.index.NewBatch()
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		if err := batch.Index(id, doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to index document %s: %w", id, err)
		}
	}

	if err := e.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return ids, nil
}

// GetByID returns the stored document with the given id, or nil when
// it does not exist
func (e *BleveEngine) GetByID(ctx context.Context, id string) (*Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}
	if id == "" {
		return nil, nil
	}

	searchReq := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	searchReq.Size = 1
	searchReq.Fields = []string{"*"}

	result, err := e.index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("lookup failed for %s: %w", id, err)
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}

	hit := result.Hits[0]
	return &Document{ID: hit.ID, Fields: hit.Fields}, nil
}

// Delete removes documents by id in a single batch. Ids not present in
// the index are ignored by Bleve.
func (e *BleveEngine) Delete(ctx context.Context, ids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if len(ids) == 0 {
		return nil
	}

	batch := e.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// Query executes a structured query with pagination and sorting.
// A negative Rows value returns every remaining match.
func (e *BleveEngine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}

	bleveQuery, err := BuildQuery(req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to convert query: %w", err)
	}

	rows := req.Rows
	if rows < 0 {
		// Unbounded page: run a count-only pass first so the real
		// request can size its collector exactly.
		countReq := bleve.NewSearchRequest(bleveQuery)
		countReq.Size = 0
		countResult, err := e.index.SearchInContext(ctx, countReq)
		if err != nil {
			return nil, fmt.Errorf("count pass failed: %w", err)
		}
		rows = int(countResult.Total)
	}

	searchReq := bleve.NewSearchRequest(bleveQuery)
	searchReq.Size = rows
	searchReq.From = req.Start
	searchReq.Fields = []string{"*"}
	searchReq.SortBy(buildSortOrder(req.Sort))

	result, err := e.index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs := make([]Document, len(result.Hits))
	for i, hit := range result.Hits {
		docs[i] = Document{ID: hit.ID, Fields: hit.Fields}
	}

	return &QueryResult{Total: int(result.Total), Docs: docs}, nil
}

// AllIDs returns every document id in the index
func (e *BleveEngine) AllIDs(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrClosed
	}

	docCount, err := e.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	searchReq := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	searchReq.Size = int(docCount)

	result, err := e.index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}

	return ids, nil
}

// Count returns the number of committed documents
func (e *BleveEngine) Count(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return 0, ErrClosed
	}

	count, err := e.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

// Commit is a no-op: Bleve persists every batch when it executes
func (e *BleveEngine) Commit(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the underlying index
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}

// CleanupIndexes removes index directories under indexPath that no
// longer belong to any configured facade. A missing indexPath means
// there is nothing to clean up.
func CleanupIndexes(indexPath string, configured map[string]bool) error {
	entries, err := os.ReadDir(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index directory %s: %w", indexPath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || configured[entry.Name()] {
			continue
		}
		stale := filepath.Join(indexPath, entry.Name())
		log.Printf("Removing index: %s", entry.Name())
		if err := os.RemoveAll(stale); err != nil {
			return fmt.Errorf("failed to remove index directory %s: %w", stale, err)
		}
	}

	return nil
}

// Verify interface implementation
var _ Engine = (*BleveEngine)(nil)
