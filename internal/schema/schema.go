// Package schema introspects the target database and renders its structure
// as the DDL-like text embedded in generation prompts.
package schema

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/database"
)

type Schema struct {
	Dialect database.Dialect
	Version string
	Tables  []Table
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey is one column pair of a constraint. Composite keys appear as
// several entries sharing Name, in key column order.
type ForeignKey struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Format renders s as a version header followed by one commented CREATE
// TABLE statement per table, in table order.
func Format(s Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s Version: %s\n\n", s.Dialect.DisplayName(), s.Version)

	for _, table := range s.Tables {
		fmt.Fprintf(&b, "-- Table: %s\n", table.Name)
		fmt.Fprintf(&b, "CREATE TABLE %s (\n", table.Name)

		lines := make([]string, 0, len(table.Columns)+len(table.ForeignKeys)+1)
		for _, column := range table.Columns {
			line := "    " + column.Name + " " + column.Type
			if !column.Nullable {
				line += " NOT NULL"
			}
			lines = append(lines, line)
		}
		if len(table.PrimaryKey) > 0 {
			lines = append(lines, "    PRIMARY KEY ("+strings.Join(table.PrimaryKey, ", ")+")")
		}
		for _, group := range groupForeignKeys(table.ForeignKeys) {
			columns := make([]string, len(group))
			referenced := make([]string, len(group))
			for i, fk := range group {
				columns[i] = fk.Column
				referenced[i] = fk.ReferencedColumn
			}
			lines = append(lines, fmt.Sprintf("    CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
				group[0].Name, strings.Join(columns, ", "), group[0].ReferencedTable, strings.Join(referenced, ", ")))
		}
		b.WriteString(strings.Join(lines, ",\n"))
		b.WriteString("\n);\n\n")
	}
	return b.String()
}

// groupForeignKeys merges consecutive column pairs of the same constraint,
// so a composite key renders as one CONSTRAINT line.
func groupForeignKeys(fks []ForeignKey) [][]ForeignKey {
	var groups [][]ForeignKey
	for _, fk := range fks {
		if n := len(groups); n > 0 {
			last := groups[n-1][0]
			if last.Name == fk.Name && last.ReferencedTable == fk.ReferencedTable {
				groups[n-1] = append(groups[n-1], fk)
				continue
			}
		}
		groups = append(groups, []ForeignKey{fk})
	}
	return groups
}

func (s Schema) Table(name string) (Table, bool) {
	for _, table := range s.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}
