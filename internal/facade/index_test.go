package facade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/mdevries/open-index-search/internal/engine"
)

// memEngine is an in-memory engine used to exercise facade semantics
// without a real index
type memEngine struct {
	mu       sync.Mutex
	docs     map[string]map[string]interface{}
	nextID   int
	commits  int
	lastSort []engine.SortField
	putErr   error
}

func newMemEngine() *memEngine {
	return &memEngine{docs: make(map[string]map[string]interface{})}
}

func (m *memEngine) Put(ctx context.Context, docs ...engine.Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return nil, m.putErr
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			m.nextID++
			id = fmt.Sprintf("gen-%04d", m.nextID)
		}
		ids[i] = id
		m.docs[id] = doc.Fields
	}
	return ids, nil
}

func (m *memEngine) GetByID(ctx context.Context, id string) (*engine.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return &engine.Document{ID: id, Fields: fields}, nil
}

func (m *memEngine) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *memEngine) Query(ctx context.Context, req engine.QueryRequest) (*engine.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSort = req.Sort

	var ids []string
	for id, fields := range m.docs {
		if matches(req.Query, fields) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	total := len(ids)
	start := req.Start
	if start > total {
		start = total
	}
	end := total
	if req.Rows >= 0 && start+req.Rows < total {
		end = start + req.Rows
	}

	docs := make([]engine.Document, 0, end-start)
	for _, id := range ids[start:end] {
		docs = append(docs, engine.Document{ID: id, Fields: m.docs[id]})
	}

	return &engine.QueryResult{Total: total, Docs: docs}, nil
}

func matches(q map[string]interface{}, fields map[string]interface{}) bool {
	if len(q) == 0 {
		return true
	}
	if term, ok := q["term"].(map[string]interface{}); ok {
		path, _ := term["path"].(string)
		value, _ := term["value"].(string)
		return fields[path] == value
	}
	if _, ok := q["match_all"]; ok {
		return true
	}
	return false
}

func (m *memEngine) AllIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memEngine) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *memEngine) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	return nil
}

func (m *memEngine) Close() error { return nil }

var _ engine.Engine = (*memEngine)(nil)

func newTestIndex(t *testing.T, opts ...func(*IndexOptions)) (*Index, *memEngine) {
	t.Helper()

	eng := newMemEngine()
	indexOpts := IndexOptions{
		Schema: &Schema{Name: "test"},
		Engine: eng,
	}
	for _, opt := range opts {
		opt(&indexOpts)
	}

	ix, err := NewIndex(indexOpts)
	if err != nil {
		t.Fatalf("Failed to create index facade: %v", err)
	}
	return ix, eng
}

func record(fields map[string]interface{}) *MapRecord {
	return &MapRecord{Fields: fields}
}

func TestIndex_AddAssignsIDs(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	rec := record(map[string]interface{}{"name": "a"})
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if rec.UniqueID() == "" {
		t.Fatal("Expected engine-assigned id after Add")
	}

	size, err := ix.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}

	got, err := ix.ByID(ctx, rec.UniqueID())
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected record to be retrievable by id")
	}
	if got.(*MapRecord).Fields["name"] != "a" {
		t.Errorf("Expected name 'a', got '%v'", got.(*MapRecord).Fields["name"])
	}
}

func TestIndex_AddBatchDistinctIDs(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	// Two records with identical content and no id must both be
	// inserted under fresh, distinct ids.
	first := record(map[string]interface{}{"name": "same"})
	second := record(map[string]interface{}{"name": "same"})

	if err := ix.Add(ctx, first, second); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Add(ctx, record(map[string]interface{}{"name": "same"})); err != nil {
		t.Fatalf("Second Add failed: %v", err)
	}

	if first.UniqueID() == second.UniqueID() {
		t.Errorf("Expected distinct ids, both got '%s'", first.UniqueID())
	}

	for _, rec := range []*MapRecord{first, second} {
		got, err := ix.ByID(ctx, rec.UniqueID())
		if err != nil {
			t.Fatalf("ByID failed: %v", err)
		}
		if got == nil {
			t.Errorf("Expected record %s to be retrievable", rec.UniqueID())
		}
	}
}

func TestIndex_AddExistingFails(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	rec := record(map[string]interface{}{"name": "a"})
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	sizeBefore, _ := ix.Size(ctx)

	err := ix.Add(ctx, rec)
	if err == nil {
		t.Fatal("Expected Add of existing record to fail")
	}

	var exists *AlreadyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("Expected *AlreadyExistsError, got %T: %v", err, err)
	}
	if len(exists.IDs) != 1 || exists.IDs[0] != rec.UniqueID() {
		t.Errorf("Expected offending id [%s], got %v", rec.UniqueID(), exists.IDs)
	}
	if !IsAlreadyExists(err) {
		t.Error("Expected IsAlreadyExists to report true")
	}

	sizeAfter, _ := ix.Size(ctx)
	if sizeAfter != sizeBefore {
		t.Errorf("Expected size unchanged (%d), got %d", sizeBefore, sizeAfter)
	}
}

func TestIndex_AddPartialConflictMutatesNothing(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	existing := record(map[string]interface{}{"name": "a"})
	if err := ix.Add(ctx, existing); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	fresh := record(map[string]interface{}{"name": "b"})
	err := ix.Add(ctx, fresh, existing)
	if !IsAlreadyExists(err) {
		t.Fatalf("Expected AlreadyExists error, got %v", err)
	}

	size, _ := ix.Size(ctx)
	if size != 1 {
		t.Errorf("Expected no mutation on failed batch, size %d", size)
	}
	if fresh.UniqueID() != "" {
		t.Errorf("Expected fresh record to stay unpersisted, got id '%s'", fresh.UniqueID())
	}
}

func TestIndex_UpdateIdempotent(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	rec := record(map[string]interface{}{"name": "a"})
	if err := ix.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := ix.Update(ctx, rec); err != nil {
		t.Fatalf("Second update failed: %v", err)
	}

	size, _ := ix.Size(ctx)
	if size != 1 {
		t.Errorf("Expected size 1 after repeated update, got %d", size)
	}
}

func TestIndex_UpdateOverwrites(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	rec := record(map[string]interface{}{"name": "a"})
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	rec.Fields["name"] = "b"
	if err := ix.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := ix.ByID(ctx, rec.UniqueID())
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if got.(*MapRecord).Fields["name"] != "b" {
		t.Errorf("Expected overwritten name 'b', got '%v'", got.(*MapRecord).Fields["name"])
	}
}

func TestIndex_RemoveAbsentIsNoop(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, record(map[string]interface{}{"name": "a"})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := ix.Remove(ctx, "no-such-id"); err != nil {
		t.Fatalf("Expected removing an absent id to succeed, got %v", err)
	}

	size, _ := ix.Size(ctx)
	if size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}
}

func TestIndex_Remove(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	rec := record(map[string]interface{}{"name": "a"})
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := ix.Remove(ctx, rec.UniqueID()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	got, err := ix.ByID(ctx, rec.UniqueID())
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if got != nil {
		t.Error("Expected record to be gone after Remove")
	}
}

func TestIndex_Exists(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	unpersisted := record(map[string]interface{}{"name": "a"})
	exists, err := ix.Exists(ctx, unpersisted)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected Exists false for record without id")
	}

	if err := ix.Add(ctx, unpersisted); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	exists, err = ix.Exists(ctx, unpersisted)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected Exists true after Add")
	}

	ghost := &MapRecord{ID: "no-such-id"}
	exists, err = ix.Exists(ctx, ghost)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected Exists false for unknown id")
	}
}

func seedRecords(t *testing.T, ix *Index, n int) {
	t.Helper()
	ctx := context.Background()
	recs := make([]Record, n)
	for i := 0; i < n; i++ {
		recs[i] = record(map[string]interface{}{"name": fmt.Sprintf("rec-%d", i)})
	}
	if err := ix.Add(ctx, recs...); err != nil {
		t.Fatalf("Failed to seed records: %v", err)
	}
}

func TestIndex_SearchPage(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	seedRecords(t, ix, 5)

	hits, err := ix.Search(ctx, nil, 2, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits.Total != 5 {
		t.Errorf("Expected total 5, got %d", hits.Total)
	}
	if len(hits.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(hits.Records))
	}

	all, err := ix.All(ctx, 0, AllRows)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	// Page must be exactly positions 2 and 3 of the default ordering
	if hits.Records[0].UniqueID() != all.Records[2].UniqueID() {
		t.Errorf("Expected page to start at position 2")
	}
	if hits.Records[1].UniqueID() != all.Records[3].UniqueID() {
		t.Errorf("Expected page to end at position 3")
	}
}

func TestIndex_PaginationLaw(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	seedRecords(t, ix, 5)

	full, err := ix.Search(ctx, nil, 0, AllRows)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if full.Total != 5 || len(full.Records) != 5 {
		t.Fatalf("Expected 5 records, got total=%d len=%d", full.Total, len(full.Records))
	}

	for k := 0; k <= full.Total; k++ {
		head, err := ix.Search(ctx, nil, 0, k)
		if err != nil {
			t.Fatalf("Search(0,%d) failed: %v", k, err)
		}
		tail, err := ix.Search(ctx, nil, k, AllRows)
		if err != nil {
			t.Fatalf("Search(%d,ALL) failed: %v", k, err)
		}

		if head.Total != full.Total || tail.Total != full.Total {
			t.Errorf("k=%d: totals differ: head=%d tail=%d full=%d", k, head.Total, tail.Total, full.Total)
		}

		combined := append(append([]Record{}, head.Records...), tail.Records...)
		if len(combined) != len(full.Records) {
			t.Fatalf("k=%d: expected %d combined records, got %d", k, len(full.Records), len(combined))
		}
		for i := range combined {
			if combined[i].UniqueID() != full.Records[i].UniqueID() {
				t.Errorf("k=%d: position %d differs: %s vs %s", k, i, combined[i].UniqueID(), full.Records[i].UniqueID())
			}
		}
	}
}

func TestIndex_SearchUsesDefaultSort(t *testing.T) {
	defaultSort := []engine.SortField{{Field: "name", Desc: true}}
	ix, eng := newTestIndex(t, func(o *IndexOptions) {
		o.Schema = &Schema{Name: "test", DefaultSort: defaultSort}
	})
	ctx := context.Background()
	seedRecords(t, ix, 2)

	if _, err := ix.Search(ctx, nil, 0, AllRows); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(eng.lastSort) != 1 || eng.lastSort[0].Field != "name" || !eng.lastSort[0].Desc {
		t.Errorf("Expected schema default sort to be applied, got %+v", eng.lastSort)
	}

	explicit := []engine.SortField{{Field: "price"}}
	if _, err := ix.Search(ctx, nil, 0, AllRows, explicit...); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(eng.lastSort) != 1 || eng.lastSort[0].Field != "price" {
		t.Errorf("Expected explicit sort to win, got %+v", eng.lastSort)
	}
}

func TestIndex_SearchValidatesPagination(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	if _, err := ix.Search(ctx, nil, -1, 10); !errors.Is(err, ErrInvalidPagination) {
		t.Errorf("Expected ErrInvalidPagination for negative start, got %v", err)
	}
	if _, err := ix.Search(ctx, nil, 0, -2); !errors.Is(err, ErrInvalidPagination) {
		t.Errorf("Expected ErrInvalidPagination for rows=-2, got %v", err)
	}
	if _, err := ix.Search(ctx, nil, 0, AllRows); err != nil {
		t.Errorf("Expected AllRows to be valid, got %v", err)
	}
}

func TestIndex_ClearCapability(t *testing.T) {
	ctx := context.Background()

	locked, _ := newTestIndex(t)
	seedRecords(t, locked, 2)
	if locked.SupportsClear() {
		t.Error("Expected clear to be unsupported by default")
	}
	if err := locked.Clear(ctx); !errors.Is(err, ErrClearUnsupported) {
		t.Errorf("Expected ErrClearUnsupported, got %v", err)
	}
	if size, _ := locked.Size(ctx); size != 2 {
		t.Errorf("Expected unsupported clear to leave index intact, size %d", size)
	}

	open, _ := newTestIndex(t, func(o *IndexOptions) { o.SupportsClear = true })
	seedRecords(t, open, 3)
	if !open.SupportsClear() {
		t.Error("Expected clear to be supported")
	}
	if err := open.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if size, _ := open.Size(ctx); size != 0 {
		t.Errorf("Expected empty index after clear, size %d", size)
	}
}

func TestIndex_ByIDAbsent(t *testing.T) {
	ix, _ := newTestIndex(t)

	got, err := ix.ByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Expected absent lookup to succeed, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil record, got %v", got)
	}
}

func TestIndex_EngineErrorPropagates(t *testing.T) {
	ix, eng := newTestIndex(t)
	ctx := context.Background()

	engineErr := errors.New("disk on fire")
	eng.putErr = engineErr

	err := ix.Update(ctx, record(map[string]interface{}{"name": "a"}))
	if !errors.Is(err, engineErr) {
		t.Errorf("Expected engine error to propagate unchanged, got %v", err)
	}
}

func TestNewIndex_Validation(t *testing.T) {
	if _, err := NewIndex(IndexOptions{Engine: newMemEngine()}); err == nil {
		t.Error("Expected error for missing schema")
	}
	if _, err := NewIndex(IndexOptions{Schema: &Schema{Name: "x"}}); err == nil {
		t.Error("Expected error for missing engine")
	}
}
