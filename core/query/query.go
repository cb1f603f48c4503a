package query

import "context"

// Join attaches a referenced class to a read.
type Join struct {
	ClassName string
	// Source is the target table. Empty means ClassName.
	Source string
	Alias  string
	// Via is the join column on the left side. It may be qualified with
	// another join's alias ("author.company_id").
	Via   string
	To    string
	Where Where
}

// Column returns the left-hand join column.
func (j Join) Column() string {
	if j.Via != "" {
		return j.Via
	}
	return j.Alias + "_id"
}

// Table returns the target table.
func (j Join) Table() string {
	if j.Source != "" {
		return j.Source
	}
	return j.ClassName
}

// TargetKey returns To or "id".
func (j Join) TargetKey() string {
	if j.To == "" {
		return "id"
	}
	return j.To
}

// Selection maps one output key to a column. Table is empty for the base
// source and the join alias otherwise.
type Selection struct {
	Alias  string
	Table  string
	Column string
}

// Projection is the ordered list of selected columns.
type Projection []Selection

// Aliases returns the output keys in order.
func (p Projection) Aliases() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Alias
	}
	return out
}

// Row is one result record keyed by output alias.
type Row map[string]any

// RowMapper post-processes each row returned by an executor.
type RowMapper func(Row) Row

// View is a read against one source.
type View interface {
	Select(Projection) View
	Where(Where) View
	Joins([]Join) View
	Sort([]Sort) View
	Limit(n int) View
	Skip(n int) View

	Find(ctx context.Context, mapper RowMapper) ([]Row, error)
	// First returns nil when no row matches.
	First(ctx context.Context, mapper RowMapper) (Row, error)
}

// Action is a write against one source.
type Action interface {
	Fields(map[string]any) Action
	// Create inserts and returns the new id.
	Create(ctx context.Context) (any, error)
	// Update changes the live row with the action's id. It fails with
	// apperr.ObjectNotFound when none matched.
	Update(ctx context.Context) error
}

// Executor opens views and actions.
type Executor interface {
	View(source string) View
	Action(source string, id any) Action
}
