// Package query describes reads and writes against a datastore without
// committing to a dialect: constraint trees, joins, projections, and the
// View/Action contract an executor implements.
package query

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/artpar/warpmodel/core/apperr"
)

// Op is a constraint operator.
type Op string

const (
	OpEq          Op = "eq"
	OpNeq         Op = "neq"
	OpGt          Op = "gt"
	OpGte         Op = "gte"
	OpLt          Op = "lt"
	OpLte         Op = "lte"
	OpExists      Op = "ex"
	OpIn          Op = "in"
	OpNotIn       Op = "nin"
	OpStartsWith  Op = "str"
	OpEndsWith    Op = "end"
	OpContains    Op = "has"
	OpFoundIn     Op = "fi"
	OpNotFoundIn  Op = "nfi"
	OpFoundInAll  Op = "fie"
	OpNotFoundAll Op = "nfe"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpExists: true, OpIn: true, OpNotIn: true, OpStartsWith: true, OpEndsWith: true,
	OpContains: true, OpFoundIn: true, OpNotFoundIn: true, OpFoundInAll: true, OpNotFoundAll: true,
}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	return knownOps[o]
}

// Single reports whether o takes one subquery.
func (o Op) Single() bool {
	return o == OpFoundIn || o == OpNotFoundIn
}

// Batch reports whether o takes a list of subqueries.
func (o Op) Batch() bool {
	return o == OpFoundInAll || o == OpNotFoundAll
}

// Subquery selects Field from ClassName's records matching Where.
type Subquery struct {
	ClassName string
	Field     string
	Where     Where
}

// Condition constrains one column. Sub is set for fi/nfi, Subs for fie/nfe.
type Condition struct {
	Column string
	Op     Op
	Value  any
	Sub    *Subquery
	Subs   []Subquery
}

// Where is a conjunction of conditions.
type Where []Condition

// And returns a new Where with conds appended.
func (w Where) And(conds ...Condition) Where {
	out := make(Where, 0, len(w)+len(conds))
	out = append(out, w...)
	return append(out, conds...)
}

// Validate checks identifiers and operator shapes recursively.
func (w Where) Validate() error {
	for _, c := range w {
		if !ValidColumn(c.Column) {
			return apperr.New(apperr.InvalidQuery, "invalid column `%s`", c.Column)
		}
		if !c.Op.Valid() {
			return apperr.New(apperr.InvalidQuery, "unknown operator `%s` on `%s`", c.Op, c.Column)
		}
		switch {
		case c.Op.Single():
			if c.Sub == nil {
				return apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires a subquery", c.Op, c.Column)
			}
			if err := c.Sub.validate(); err != nil {
				return err
			}
		case c.Op.Batch():
			if len(c.Subs) == 0 {
				return apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires at least one subquery", c.Op, c.Column)
			}
			for i := range c.Subs {
				if err := c.Subs[i].validate(); err != nil {
					return err
				}
			}
		case c.Op == OpIn || c.Op == OpNotIn:
			if _, ok := c.Value.([]any); !ok {
				return apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires a list", c.Op, c.Column)
			}
		}
	}
	return nil
}

func (s *Subquery) validate() error {
	if !ValidIdentifier(s.ClassName) {
		return apperr.New(apperr.InvalidQuery, "invalid subquery class `%s`", s.ClassName)
	}
	if s.Field != "" && !ValidIdentifier(s.Field) {
		return apperr.New(apperr.InvalidQuery, "invalid subquery field `%s`", s.Field)
	}
	return s.Where.Validate()
}

// SelectField returns Field or "id".
func (s Subquery) SelectField() string {
	if s.Field == "" {
		return "id"
	}
	return s.Field
}

// ParseWhere builds a Where from the decoded wire form
// {column: {op: value, ...}, ...}. Columns and operators are visited in
// sorted order so the result is deterministic.
func ParseWhere(raw map[string]any) (Where, error) {
	columns := make([]string, 0, len(raw))
	for k := range raw {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	var w Where
	for _, col := range columns {
		ops, ok := raw[col].(map[string]any)
		if !ok {
			return nil, apperr.New(apperr.InvalidQuery, "constraints for `%s` must be an object", col)
		}
		names := make([]string, 0, len(ops))
		for k := range ops {
			names = append(names, k)
		}
		sort.Strings(names)

		for _, name := range names {
			c := Condition{Column: col, Op: Op(name)}
			v := ops[name]
			switch {
			case c.Op.Single():
				sub, err := parseSubquery(v)
				if err != nil {
					return nil, err
				}
				c.Sub = &sub
			case c.Op.Batch():
				list, ok := v.([]any)
				if !ok {
					return nil, apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires a list of subqueries", name, col)
				}
				for _, item := range list {
					sub, err := parseSubquery(item)
					if err != nil {
						return nil, err
					}
					c.Subs = append(c.Subs, sub)
				}
			default:
				c.Value = v
			}
			w = append(w, c)
		}
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func parseSubquery(v any) (Subquery, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Subquery{}, apperr.New(apperr.InvalidQuery, "subquery must be an object")
	}
	className, _ := m["className"].(string)
	fieldName, _ := m["field"].(string)
	sub := Subquery{ClassName: className, Field: fieldName}
	if inner, ok := m["where"]; ok && inner != nil {
		innerMap, ok := inner.(map[string]any)
		if !ok {
			return Subquery{}, apperr.New(apperr.InvalidQuery, "subquery where must be an object")
		}
		w, err := ParseWhere(innerMap)
		if err != nil {
			return Subquery{}, err
		}
		sub.Where = w
	}
	return sub, nil
}

// UnmarshalJSON decodes the wire form.
func (w *Where) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.New(apperr.InvalidQuery, "decode where: %v", err)
	}
	parsed, err := ParseWhere(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// UnmarshalYAML decodes the wire form from a model file.
func (w *Where) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: decode where: %w", node.Line, err)
	}
	parsed, err := ParseWhere(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*w = parsed
	return nil
}
