// Package storage provides the SQLite executor that compiled models read and
// write through. Tables are created from compiled definitions; every table
// carries id, created_at, updated_at and deleted_at next to the model's columns.
package storage

import (
	"fmt"
	"strings"

	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/record"
)

// systemColumns are created for every source, in order.
var systemColumns = []convention.Column{
	{Name: record.KeyID, Type: "INTEGER PRIMARY KEY AUTOINCREMENT"},
	{Name: record.KeyCreatedAt, Type: "TEXT"},
	{Name: record.KeyUpdatedAt, Type: "TEXT"},
	{Name: record.KeyDeletedAt, Type: "TEXT"},
}

// BuildCreateTableSQL generates CREATE TABLE SQL from a compiled definition.
func BuildCreateTableSQL(def *convention.Definition) string {
	var columns []string
	for _, c := range systemColumns {
		columns = append(columns, buildColumnDef(c))
	}
	for _, c := range def.Columns() {
		columns = append(columns, buildColumnDef(c))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quote(def.Source()),
		strings.Join(columns, ",\n  "),
	)
}

// BuildAddColumnSQL generates the ALTER TABLE statement adding c to source.
func BuildAddColumnSQL(source string, c convention.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(source), buildColumnDef(c))
}

// BuildIndexSQL generates the index that keeps live-row lookups cheap.
func BuildIndexSQL(def *convention.Definition) []string {
	return []string{
		fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			quote("idx_"+def.Source()+"_"+record.KeyDeletedAt),
			quote(def.Source()),
			quote(record.KeyDeletedAt),
		),
	}
}

func buildColumnDef(c convention.Column) string {
	if c.Type == "" {
		return quote(c.Name)
	}
	return quote(c.Name) + " " + c.Type
}

// quote quotes an identifier. Identifiers are validated before they reach
// the builders, so embedded quotes are only doubled for safety.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// qualify quotes a column, prefixing it with table unless it already
// names one ("author.name").
func qualify(table, column string) string {
	if t, c, ok := strings.Cut(column, "."); ok {
		return quote(t) + "." + quote(c)
	}
	return quote(table) + "." + quote(column)
}

// orderJoins returns joins so that a join whose column goes through another
// alias comes after it. Joins whose alias is never declared keep their place.
func orderJoins(joins []query.Join) []query.Join {
	out := make([]query.Join, 0, len(joins))
	placed := make(map[string]bool, len(joins))
	declared := make(map[string]bool, len(joins))
	for _, j := range joins {
		declared[j.Alias] = true
	}

	pending := joins
	for len(pending) > 0 {
		var next []query.Join
		for _, j := range pending {
			if dep, _, ok := strings.Cut(j.Column(), "."); ok && declared[dep] && !placed[dep] {
				next = append(next, j)
				continue
			}
			placed[j.Alias] = true
			out = append(out, j)
		}
		if len(next) == len(pending) {
			// cycle; emit as declared and let the datastore report it
			return append(out, next...)
		}
		pending = next
	}
	return out
}
