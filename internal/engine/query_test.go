package engine

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
)

func TestBuildQuery_MatchAll(t *testing.T) {
	for _, q := range []map[string]interface{}{
		nil,
		{},
		{"match_all": map[string]interface{}{}},
	} {
		built, err := BuildQuery(q)
		if err != nil {
			t.Fatalf("BuildQuery(%v) failed: %v", q, err)
		}
		if _, ok := built.(*query.MatchAllQuery); !ok {
			t.Errorf("Expected MatchAllQuery for %v, got %T", q, built)
		}
	}
}

func TestBuildQuery_Term(t *testing.T) {
	built, err := BuildQuery(map[string]interface{}{
		"term": map[string]interface{}{"path": "status", "value": "open"},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}

	termQuery, ok := built.(*query.TermQuery)
	if !ok {
		t.Fatalf("Expected TermQuery, got %T", built)
	}
	if termQuery.Term != "open" {
		t.Errorf("Expected term 'open', got '%s'", termQuery.Term)
	}
	if termQuery.FieldVal != "status" {
		t.Errorf("Expected field 'status', got '%s'", termQuery.FieldVal)
	}
}

func TestBuildQuery_Text(t *testing.T) {
	built, err := BuildQuery(map[string]interface{}{
		"text": map[string]interface{}{"query": "hello world", "path": "title"},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	if _, ok := built.(*query.MatchQuery); !ok {
		t.Errorf("Expected MatchQuery with path, got %T", built)
	}

	// Without a path the text query falls back to query string syntax
	built, err = BuildQuery(map[string]interface{}{
		"text": map[string]interface{}{"query": "hello"},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	if _, ok := built.(*query.QueryStringQuery); !ok {
		t.Errorf("Expected QueryStringQuery without path, got %T", built)
	}
}

func TestBuildQuery_Wildcard(t *testing.T) {
	built, err := BuildQuery(map[string]interface{}{
		"wildcard": map[string]interface{}{"path": "name", "value": "pro*"},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	if _, ok := built.(*query.WildcardQuery); !ok {
		t.Errorf("Expected WildcardQuery, got %T", built)
	}
}

func TestBuildQuery_Range(t *testing.T) {
	built, err := BuildQuery(map[string]interface{}{
		"range": map[string]interface{}{"path": "price", "gte": 10, "lt": 20.5},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	rangeQuery, ok := built.(*query.NumericRangeQuery)
	if !ok {
		t.Fatalf("Expected NumericRangeQuery, got %T", built)
	}
	if rangeQuery.Min == nil || *rangeQuery.Min != 10 {
		t.Errorf("Expected min 10, got %v", rangeQuery.Min)
	}
	if rangeQuery.Max == nil || *rangeQuery.Max != 20.5 {
		t.Errorf("Expected max 20.5, got %v", rangeQuery.Max)
	}

	if _, err := BuildQuery(map[string]interface{}{
		"range": map[string]interface{}{"path": "price"},
	}); err == nil {
		t.Error("Expected error for range query without bounds")
	}
}

func TestBuildQuery_Compound(t *testing.T) {
	built, err := BuildQuery(map[string]interface{}{
		"compound": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"path": "status", "value": "open"}},
			},
			"should": []interface{}{
				map[string]interface{}{"text": map[string]interface{}{"query": "urgent", "path": "title"}},
			},
			"mustNot": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"path": "status", "value": "closed"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("BuildQuery failed: %v", err)
	}
	if _, ok := built.(*query.BooleanQuery); !ok {
		t.Errorf("Expected BooleanQuery, got %T", built)
	}
}

func TestBuildQuery_Errors(t *testing.T) {
	cases := []map[string]interface{}{
		{"unknown": map[string]interface{}{}},
		{"term": "not an object"},
		{"term": map[string]interface{}{"path": "status"}},
		{"text": map[string]interface{}{"path": "title"}},
		{"wildcard": map[string]interface{}{"value": "x*"}},
		{"compound": map[string]interface{}{"must": "not an array"}},
	}

	for _, q := range cases {
		if _, err := BuildQuery(q); err == nil {
			t.Errorf("Expected error for %v", q)
		}
	}
}

func TestBuildSortOrder(t *testing.T) {
	if got := buildSortOrder(nil); len(got) != 1 || got[0] != "_id" {
		t.Errorf("Expected document id fallback, got %v", got)
	}

	got := buildSortOrder([]SortField{{Field: "price", Desc: true}, {Field: "name"}})
	if len(got) != 2 || got[0] != "-price" || got[1] != "name" {
		t.Errorf("Unexpected sort order: %v", got)
	}
}
