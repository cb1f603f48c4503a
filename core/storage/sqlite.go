package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/record"
)

// SQLiteStore implements query.Executor with SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ query.Executor = (*SQLiteStore)(nil)

// NewSQLiteStore opens the SQLite database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// each connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// NewSQLiteStoreFromDB creates a store from an existing connection.
func NewSQLiteStoreFromDB(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

// Migrate creates the table of every definition and adds columns that are
// missing from existing tables. Columns are never dropped.
func (s *SQLiteStore) Migrate(ctx context.Context, defs []*convention.Definition) error {
	for _, def := range defs {
		if _, err := s.db.ExecContext(ctx, BuildCreateTableSQL(def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.Source(), err)
		}

		existing, err := s.columns(ctx, def.Source())
		if err != nil {
			return err
		}

		for _, c := range def.Columns() {
			if existing[c.Name] {
				continue
			}
			if _, err := s.db.ExecContext(ctx, BuildAddColumnSQL(def.Source(), c)); err != nil {
				return fmt.Errorf("add column %s.%s: %w", def.Source(), c.Name, err)
			}
			s.logger.Info().Str("source", def.Source()).Str("column", c.Name).Msg("column added")
		}

		for _, indexSQL := range BuildIndexSQL(def) {
			if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) columns(ctx context.Context, source string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", source)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", source, err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

// View opens a read against source.
func (s *SQLiteStore) View(source string) query.View {
	return &view{store: s, stmt: selectStmt{source: source}}
}

// Action opens a write against source. id is ignored by Create.
func (s *SQLiteStore) Action(source string, id any) query.Action {
	return &action{store: s, source: source, id: id}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// view is an immutable read builder; every setter returns a copy.
type view struct {
	store *SQLiteStore
	stmt  selectStmt
}

func (v *view) with(fn func(*selectStmt)) query.View {
	c := *v
	fn(&c.stmt)
	return &c
}

func (v *view) Select(p query.Projection) query.View {
	return v.with(func(s *selectStmt) { s.projection = p })
}

func (v *view) Where(w query.Where) query.View {
	return v.with(func(s *selectStmt) { s.where = w })
}

func (v *view) Joins(j []query.Join) query.View {
	return v.with(func(s *selectStmt) { s.joins = j })
}

func (v *view) Sort(o []query.Sort) query.View {
	return v.with(func(s *selectStmt) { s.sort = o })
}

func (v *view) Limit(n int) query.View {
	return v.with(func(s *selectStmt) { s.limit = n })
}

func (v *view) Skip(n int) query.View {
	return v.with(func(s *selectStmt) { s.skip = n })
}

func (v *view) Find(ctx context.Context, mapper query.RowMapper) ([]query.Row, error) {
	stmt, args, err := v.stmt.build()
	if err != nil {
		return nil, err
	}
	v.store.logger.Debug().Str("sql", stmt).Interface("args", args).Msg("select")

	rows, err := v.store.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", v.stmt.source, err)
	}
	defer rows.Close()

	aliases := v.stmt.projection.Aliases()
	var out []query.Row
	for rows.Next() {
		values := make([]any, len(aliases))
		scanDest := make([]any, len(aliases))
		for i := range values {
			scanDest[i] = &values[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", v.stmt.source, err)
		}

		row := make(query.Row, len(aliases))
		for i, alias := range aliases {
			row[alias] = fromDB(values[i])
		}
		if mapper != nil {
			row = mapper(row)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", v.stmt.source, err)
	}
	return out, nil
}

func (v *view) First(ctx context.Context, mapper query.RowMapper) (query.Row, error) {
	rows, err := v.Limit(1).Find(ctx, mapper)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

type action struct {
	store  *SQLiteStore
	source string
	id     any
	fields map[string]any
}

func (a *action) Fields(fields map[string]any) query.Action {
	c := *a
	c.fields = fields
	return &c
}

func (a *action) Create(ctx context.Context) (any, error) {
	cols := sortedKeys(a.fields)

	var b builder
	b.write("INSERT INTO ", quote(a.source))
	if len(cols) == 0 {
		b.write(" DEFAULT VALUES")
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quote(c)
		}
		b.write(" (", strings.Join(quoted, ", "), ") VALUES (")
		for i, c := range cols {
			if i > 0 {
				b.write(", ")
			}
			assignment(&b, "NULL", a.fields[c])
		}
		b.write(")")
	}

	stmt := b.String()
	a.store.logger.Debug().Str("sql", stmt).Interface("args", b.args).Msg("insert")

	res, err := a.store.db.ExecContext(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", a.source, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", a.source, err)
	}
	return id, nil
}

func (a *action) Update(ctx context.Context) error {
	cols := sortedKeys(a.fields)
	if len(cols) == 0 {
		return apperr.New(apperr.InvalidObjectKey, "nothing to update")
	}

	var b builder
	b.write("UPDATE ", quote(a.source), " SET ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(quote(c), " = ")
		assignment(&b, quote(c), a.fields[c])
	}
	b.write(" WHERE ", quote(record.KeyID), " = ")
	b.arg(a.id)
	b.write(" AND ", quote(record.KeyDeletedAt), " IS NULL")

	stmt := b.String()
	a.store.logger.Debug().Str("sql", stmt).Interface("args", b.args).Msg("update")

	res, err := a.store.db.ExecContext(ctx, stmt, b.args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", a.source, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", a.source, err)
	}
	if affected == 0 {
		return apperr.New(apperr.ObjectNotFound, "Object `%v` of `%s` not found", a.id, a.source)
	}
	return nil
}

// fromDB converts driver values: text comes back as []byte for some
// column affinities.
func fromDB(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
