package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
)

// selectStmt is the state of a View before it is rendered.
type selectStmt struct {
	source     string
	projection query.Projection
	where      query.Where
	joins      []query.Join
	sort       []query.Sort
	limit      int
	skip       int
}

// builder accumulates SQL text and its arguments.
type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) arg(v any) {
	b.sb.WriteByte('?')
	b.args = append(b.args, toArg(v))
}

func (b *builder) String() string {
	return b.sb.String()
}

// build renders the SELECT statement.
func (s selectStmt) build() (string, []any, error) {
	if len(s.projection) == 0 {
		return "", nil, apperr.New(apperr.InvalidQuery, "no columns selected from `%s`", s.source)
	}

	var b builder
	b.write("SELECT ")
	for i, sel := range s.projection {
		if i > 0 {
			b.write(", ")
		}
		table := sel.Table
		if table == "" {
			table = s.source
		}
		b.write(quote(table), ".", quote(sel.Column), " AS ", quote(sel.Alias))
	}

	b.write(" FROM ", quote(s.source))

	for _, j := range orderJoins(s.joins) {
		b.write(" LEFT JOIN ", quote(j.Table()), " AS ", quote(j.Alias),
			" ON ", qualify(j.Alias, j.TargetKey()), " = ", qualify(s.source, j.Column()))
		for _, c := range j.Where {
			b.write(" AND ")
			if err := writeCondition(&b, j.Alias, c); err != nil {
				return "", nil, err
			}
		}
	}

	if len(s.where) > 0 {
		b.write(" WHERE ")
		if err := writeWhere(&b, s.source, s.where); err != nil {
			return "", nil, err
		}
	}

	if len(s.sort) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.sort {
			if !query.ValidColumn(o.Column) {
				return "", nil, apperr.New(apperr.InvalidQuery, "invalid sort column `%s`", o.Column)
			}
			if i > 0 {
				b.write(", ")
			}
			b.write(sortColumn(s, o.Column))
			if o.Desc {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
		}
	}

	switch {
	case s.limit > 0:
		b.write(" LIMIT ")
		b.arg(s.limit)
	case s.skip > 0:
		b.write(" LIMIT -1")
	}
	if s.skip > 0 {
		b.write(" OFFSET ")
		b.arg(s.skip)
	}

	return b.String(), b.args, nil
}

// sortColumn sorts by an output alias when one matches, so formatted keys
// like pointer names order by the joined id.
func sortColumn(s selectStmt, column string) string {
	for _, sel := range s.projection {
		if sel.Alias == column {
			table := sel.Table
			if table == "" {
				table = s.source
			}
			return quote(table) + "." + quote(sel.Column)
		}
	}
	return qualify(s.source, column)
}

func writeWhere(b *builder, table string, w query.Where) error {
	for i, c := range w {
		if i > 0 {
			b.write(" AND ")
		}
		if err := writeCondition(b, table, c); err != nil {
			return err
		}
	}
	return nil
}

func writeCondition(b *builder, table string, c query.Condition) error {
	col := qualify(table, c.Column)

	switch c.Op {
	case query.OpEq:
		if c.Value == nil {
			b.write(col, " IS NULL")
			return nil
		}
		b.write(col, " = ")
		b.arg(c.Value)
	case query.OpNeq:
		if c.Value == nil {
			b.write(col, " IS NOT NULL")
			return nil
		}
		b.write(col, " <> ")
		b.arg(c.Value)
	case query.OpGt:
		b.write(col, " > ")
		b.arg(c.Value)
	case query.OpGte:
		b.write(col, " >= ")
		b.arg(c.Value)
	case query.OpLt:
		b.write(col, " < ")
		b.arg(c.Value)
	case query.OpLte:
		b.write(col, " <= ")
		b.arg(c.Value)
	case query.OpExists:
		if truthy(c.Value) {
			b.write(col, " IS NOT NULL")
		} else {
			b.write(col, " IS NULL")
		}
	case query.OpIn, query.OpNotIn:
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			if c.Op == query.OpIn {
				b.write("1 = 0")
			} else {
				b.write("1 = 1")
			}
			return nil
		}
		b.write(col)
		if c.Op == query.OpNotIn {
			b.write(" NOT")
		}
		b.write(" IN (")
		for i, v := range list {
			if i > 0 {
				b.write(", ")
			}
			b.arg(v)
		}
		b.write(")")
	case query.OpStartsWith:
		b.write(col, ` LIKE `)
		b.arg(escapeLike(fmt.Sprint(c.Value)) + "%")
		b.write(` ESCAPE '\'`)
	case query.OpEndsWith:
		b.write(col, ` LIKE `)
		b.arg("%" + escapeLike(fmt.Sprint(c.Value)))
		b.write(` ESCAPE '\'`)
	case query.OpContains:
		b.write(col, ` LIKE `)
		b.arg("%" + escapeLike(fmt.Sprint(c.Value)) + "%")
		b.write(` ESCAPE '\'`)
	case query.OpFoundIn, query.OpNotFoundIn:
		if c.Sub == nil {
			return apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires a subquery", c.Op, c.Column)
		}
		return writeSubquery(b, col, c.Op == query.OpNotFoundIn, *c.Sub)
	case query.OpFoundInAll, query.OpNotFoundAll:
		if len(c.Subs) == 0 {
			return apperr.New(apperr.InvalidQuery, "operator `%s` on `%s` requires at least one subquery", c.Op, c.Column)
		}
		b.write("(")
		for i, sub := range c.Subs {
			if i > 0 {
				b.write(" AND ")
			}
			if err := writeSubquery(b, col, c.Op == query.OpNotFoundAll, sub); err != nil {
				return err
			}
		}
		b.write(")")
	default:
		return apperr.New(apperr.InvalidQuery, "unknown operator `%s` on `%s`", c.Op, c.Column)
	}
	return nil
}

// writeSubquery renders "col [NOT] IN (SELECT field FROM class WHERE ...)".
// The subquery's class name must already be resolved to its source.
func writeSubquery(b *builder, col string, negate bool, sub query.Subquery) error {
	b.write(col)
	if negate {
		b.write(" NOT")
	}
	b.write(" IN (SELECT ", qualify(sub.ClassName, sub.SelectField()), " FROM ", quote(sub.ClassName))
	if len(sub.Where) > 0 {
		b.write(" WHERE ")
		if err := writeWhere(b, sub.ClassName, sub.Where); err != nil {
			return err
		}
	}
	b.write(")")
	return nil
}

// assignment renders the value expression written to col. existing is the
// expression holding the current value: the column itself for updates and
// NULL for inserts.
func assignment(b *builder, existing string, value any) {
	switch v := value.(type) {
	case field.IncrementOp:
		b.write("COALESCE(", existing, ", 0) + ")
		b.arg(v.Amount)
	case field.JSONOp:
		path := v.Path
		if path == "" {
			path = "$"
		}
		empty := "'{}'"
		if path == "$" && v.Op == field.JSONOpAppend {
			empty = "'[]'"
		}
		if v.Op == field.JSONOpAppend {
			b.write("json_insert(COALESCE(", existing, ", ", empty, "), ")
			b.arg(strings.TrimSuffix(path, "[#]") + "[#]")
		} else {
			b.write("json_set(COALESCE(", existing, ", ", empty, "), ")
			b.arg(path)
		}
		b.write(", json(")
		b.arg(v.Value)
		b.write("))")
	default:
		b.arg(value)
	}
}

// toArg converts mapper values into driver values.
func toArg(v any) any {
	switch val := v.(type) {
	case field.Reference:
		return val.ID
	case *field.Reference:
		return val.ID
	case field.Attachment:
		return val.Key
	case time.Time:
		return val.UTC().Format(field.StoredTimeLayout)
	default:
		return v
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
