package query

import (
	"sort"
	"strings"

	"github.com/artpar/warpmodel/core/apperr"
)

// Sort orders results by one column.
type Sort struct {
	Column string
	Desc   bool
}

// ParseSort accepts the forms clients send:
//
//	"name,-created_at"
//	["name", "-created_at"]
//	[{"name": 1}, {"created_at": -1}]
func ParseSort(raw any) ([]Sort, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out []Sort
		for _, part := range strings.Split(v, ",") {
			s, err := parseSortString(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return ParseSort(items)
	case []any:
		var out []Sort
		for _, item := range v {
			switch it := item.(type) {
			case string:
				s, err := parseSortString(it)
				if err != nil {
					return nil, err
				}
				out = append(out, s)
			case map[string]any:
				keys := make([]string, 0, len(it))
				for k := range it {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					if !ValidColumn(k) {
						return nil, apperr.New(apperr.InvalidQuery, "invalid sort column `%s`", k)
					}
					out = append(out, Sort{Column: k, Desc: isNegative(it[k])})
				}
			default:
				return nil, apperr.New(apperr.InvalidQuery, "invalid sort entry %v", item)
			}
		}
		return out, nil
	}
	return nil, apperr.New(apperr.InvalidQuery, "invalid sort specification")
}

func parseSortString(s string) (Sort, error) {
	desc := strings.HasPrefix(s, "-")
	col := strings.TrimPrefix(s, "-")
	if !ValidColumn(col) {
		return Sort{}, apperr.New(apperr.InvalidQuery, "invalid sort column `%s`", col)
	}
	return Sort{Column: col, Desc: desc}, nil
}

func isNegative(v any) bool {
	switch n := v.(type) {
	case int:
		return n < 0
	case int64:
		return n < 0
	case float64:
		return n < 0
	case string:
		return strings.EqualFold(n, "desc") || n == "-1"
	}
	return false
}
