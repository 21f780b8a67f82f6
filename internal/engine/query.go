package engine

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BuildQuery converts a structured query map to a Bleve query.
// A nil or empty map matches all documents.
//
// Supported shapes: compound (must/should/mustNot), text, term,
// wildcard, range and match_all.
func BuildQuery(q map[string]interface{}) (query.Query, error) {
	if len(q) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	if compound, ok := q["compound"]; ok {
		m, ok := compound.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("compound query must be an object")
		}
		return buildCompoundQuery(m)
	}

	if text, ok := q["text"]; ok {
		m, ok := text.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("text query must be an object")
		}
		return buildTextQuery(m)
	}

	if term, ok := q["term"]; ok {
		m, ok := term.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("term query must be an object")
		}
		return buildTermQuery(m)
	}

	if wildcard, ok := q["wildcard"]; ok {
		m, ok := wildcard.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("wildcard query must be an object")
		}
		return buildWildcardQuery(m)
	}

	if rng, ok := q["range"]; ok {
		m, ok := rng.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("range query must be an object")
		}
		return buildRangeQuery(m)
	}

	if _, ok := q["match_all"]; ok {
		return bleve.NewMatchAllQuery(), nil
	}

	return nil, fmt.Errorf("unsupported query shape: %v", keysOf(q))
}

func buildCompoundQuery(compound map[string]interface{}) (query.Query, error) {
	boolQuery := bleve.NewBooleanQuery()

	add := func(key string, apply func(...query.Query)) error {
		raw, ok := compound[key]
		if !ok {
			return nil
		}
		clauses, ok := raw.([]interface{})
		if !ok {
			return fmt.Errorf("compound %s must be an array", key)
		}
		for _, clause := range clauses {
			m, ok := clause.(map[string]interface{})
			if !ok {
				return fmt.Errorf("compound %s clause must be an object", key)
			}
			sub, err := BuildQuery(m)
			if err != nil {
				return err
			}
			apply(sub)
		}
		return nil
	}

	if err := add("must", boolQuery.AddMust); err != nil {
		return nil, err
	}
	if err := add("should", boolQuery.AddShould); err != nil {
		return nil, err
	}
	if err := add("mustNot", boolQuery.AddMustNot); err != nil {
		return nil, err
	}

	return boolQuery, nil
}

func buildTextQuery(text map[string]interface{}) (query.Query, error) {
	queryText, ok := text["query"].(string)
	if !ok {
		return nil, fmt.Errorf("text query requires a string 'query'")
	}

	if path, ok := text["path"].(string); ok {
		matchQuery := bleve.NewMatchQuery(queryText)
		matchQuery.SetField(path)
		return matchQuery, nil
	}

	return bleve.NewQueryStringQuery(queryText), nil
}

func buildTermQuery(term map[string]interface{}) (query.Query, error) {
	value, ok := term["value"].(string)
	if !ok {
		return nil, fmt.Errorf("term query requires a string 'value'")
	}
	path, ok := term["path"].(string)
	if !ok {
		return nil, fmt.Errorf("term query requires a string 'path'")
	}

	termQuery := bleve.NewTermQuery(value)
	termQuery.SetField(path)
	return termQuery, nil
}

func buildWildcardQuery(wildcard map[string]interface{}) (query.Query, error) {
	value, ok := wildcard["value"].(string)
	if !ok {
		return nil, fmt.Errorf("wildcard query requires a string 'value'")
	}
	path, ok := wildcard["path"].(string)
	if !ok {
		return nil, fmt.Errorf("wildcard query requires a string 'path'")
	}

	wildcardQuery := bleve.NewWildcardQuery(value)
	wildcardQuery.SetField(path)
	return wildcardQuery, nil
}

func buildRangeQuery(rng map[string]interface{}) (query.Query, error) {
	path, ok := rng["path"].(string)
	if !ok {
		return nil, fmt.Errorf("range query requires a string 'path'")
	}

	min, minOk := toFloat(rng["gte"])
	max, maxOk := toFloat(rng["lt"])
	if !minOk && !maxOk {
		return nil, fmt.Errorf("range query requires a numeric 'gte' or 'lt'")
	}

	var minPtr, maxPtr *float64
	if minOk {
		minPtr = &min
	}
	if maxOk {
		maxPtr = &max
	}

	rangeQuery := bleve.NewNumericRangeQuery(minPtr, maxPtr)
	rangeQuery.SetField(path)
	return rangeQuery, nil
}

// buildSortOrder converts sort fields to Bleve sort identifiers.
// An empty sort falls back to document id order, which keeps
// pagination deterministic.
func buildSortOrder(sort []SortField) []string {
	if len(sort) == 0 {
		return []string{"_id"}
	}

	order := make([]string, len(sort))
	for i, s := range sort {
		if s.Desc {
			order[i] = "-" + s.Field
		} else {
			order[i] = s.Field
		}
	}
	return order
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
