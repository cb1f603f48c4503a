package http

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/runtime"
)

// ParseFindOptions reads find options from query parameters. where and sort
// are JSON; select and include are a JSON array or a comma separated list.
func ParseFindOptions(q url.Values) (runtime.FindOptions, error) {
	opts := runtime.FindOptions{Limit: DefaultLimit}
	var err error

	if raw := q.Get("where"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Where); err != nil {
			if apperr.HasCode(err, apperr.InvalidQuery) {
				return opts, err
			}
			return opts, apperr.New(apperr.InvalidQuery, "invalid `where`: %v", err)
		}
	}

	if opts.Select, err = parseKeys(q.Get("select")); err != nil {
		return opts, err
	}
	if opts.Include, err = parseKeys(q.Get("include")); err != nil {
		return opts, err
	}

	if raw := q.Get("sort"); raw != "" {
		var spec any
		if json.Unmarshal([]byte(raw), &spec) != nil {
			spec = raw
		}
		if opts.Sort, err = query.ParseSort(spec); err != nil {
			return opts, err
		}
	}

	if opts.Limit, err = parseCount(q, "limit", DefaultLimit); err != nil {
		return opts, err
	}
	if opts.Skip, err = parseCount(q, "skip", 0); err != nil {
		return opts, err
	}

	return opts, nil
}

func parseKeys(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var keys []string
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, apperr.New(apperr.InvalidQuery, "invalid key list: %v", err)
		}
		return keys, nil
	}

	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func parseCount(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.InvalidQuery, "`%s` must be a non-negative integer", name)
	}
	return n, nil
}
