// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// the CREATE/DROP statements the warehouse bootstrap needs.
//
// The model stays deliberately tiny: tables are flat column lists with an
// optional composite primary key, optional unique constraints, and at most one
// auto-generated identity column. Dialect differences (identity rendering) are
// handled by the builder via the Dialect argument; everything else uses SQL
// types shared by Postgres and SQLite (BIGINT, DOUBLE PRECISION, TEXT).
package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect selects backend-specific rendering rules.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ColumnDef describes a single column.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool

	// PrimaryKey marks the column as part of the table's primary key.
	PrimaryKey bool

	// Identity marks an auto-generated surrogate key column. At most one per
	// table; implies PrimaryKey.
	Identity bool
}

// TableDef describes a table to be created.
type TableDef struct {
	Name    string
	Columns []ColumnDef

	// Uniques lists additional unique constraints, each a set of column names.
	Uniques [][]string
}

// PrimaryKey returns the names of the primary-key columns in declaration order.
func (t TableDef) PrimaryKey() []string {
	var pks []string
	for _, c := range t.Columns {
		if c.PrimaryKey || c.Identity {
			pks = append(pks, c.Name)
		}
	}
	return pks
}

// ColumnNames returns all column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// InsertColumns returns the column names in declaration order, excluding
// identity columns the database populates itself.
func (t TableDef) InsertColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Identity {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// BuildCreateTableSQL renders a deterministic CREATE TABLE IF NOT EXISTS
// statement for the given dialect.
//
// Rules:
//   - Primary-key columns are always rendered NOT NULL, even if Nullable=true.
//   - The composite PRIMARY KEY clause lists quoted column names sorted
//     alphabetically for determinism.
//   - Identity columns render as "BIGINT GENERATED BY DEFAULT AS IDENTITY"
//     on Postgres and "INTEGER PRIMARY KEY AUTOINCREMENT" on SQLite; in the
//     SQLite case the column is excluded from the separate PRIMARY KEY clause
//     (SQLite requires the rowid alias to be declared inline).
//   - Unique constraints render as UNIQUE (<cols>) in declaration order.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: table %s: at least one column is required", name)
	}

	cols := make([]string, 0, len(t.Columns)+1+len(t.Uniques))
	pks := make([]string, 0, len(t.Columns))
	identities := 0

	for _, c := range t.Columns {
		cn := strings.TrimSpace(c.Name)
		if cn == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}

		if c.Identity {
			identities++
			if identities > 1 {
				return "", fmt.Errorf("ddl: table %s: more than one identity column", name)
			}
			switch d {
			case SQLite:
				cols = append(cols, quoteIdent(cn)+" INTEGER PRIMARY KEY AUTOINCREMENT")
			default:
				cols = append(cols, quoteIdent(cn)+" BIGINT GENERATED BY DEFAULT AS IDENTITY")
				pks = append(pks, quoteIdent(cn))
			}
			continue
		}

		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType in table %s", cn, name)
		}

		var sb strings.Builder
		sb.WriteString(quoteIdent(cn))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quoteIdent(cn))
		}
	}

	if len(pks) > 0 {
		sort.Strings(pks)
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	for _, u := range t.Uniques {
		if len(u) == 0 {
			continue
		}
		q := make([]string, len(u))
		for i, c := range u {
			q[i] = quoteIdent(c)
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(q, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteIdent(name),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL renders a DROP TABLE IF EXISTS statement.
func BuildDropTableSQL(t TableDef) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(t.Name) + ";"
}

// quoteIdent quotes a single identifier; embedded double quotes are escaped.
// The same quoting works for Postgres and SQLite.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
