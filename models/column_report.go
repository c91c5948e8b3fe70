package models

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
)

/*
Column Mismatch Report Usage:

Reports database columns that aren't accounted for as fields in the corresponding Go model
structs, e.g. columns left behind by an older release.

To generate the report:

1. Set the environment variable: GENERATE_COLUMN_REPORT=true
2. Run the application: go run main.go

Example output:
=== COLUMN MISMATCH REPORT ===
--- Table: dataset ---
Found 1 columns not accounted for in model:
  - legacy_url

--- Table: news ---
All columns are accounted for in the model.

=== SUMMARY ===
Total mismatched columns across all tables: 1
*/

// All returns an empty row of every resource model.
func All() []Model {
	return []Model{
		&Organisation{},
		&Publication{},
		&Dataset{},
		&Project{},
		&EducationalResource{},
		&ComputationalResource{},
		&News{},
		&Event{},
		&CodeArtifact{},
	}
}

// TableMismatch lists the columns of one table missing from its model.
type TableMismatch struct {
	Table   string
	Columns []string
	Missing bool
}

// ColumnMismatchReport compares every resource table with its model.
func ColumnMismatchReport(db *gorm.DB) ([]TableMismatch, error) {
	var report []TableMismatch
	for _, model := range All() {
		table := model.TableName()
		if !db.Migrator().HasTable(table) {
			report = append(report, TableMismatch{Table: table, Missing: true})
			continue
		}

		dbColumns, err := getTableColumns(db, table)
		if err != nil {
			return nil, err
		}
		report = append(report, TableMismatch{
			Table:   table,
			Columns: findColumnMismatches(dbColumns, getModelFields(reflect.TypeOf(model))),
		})
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Table < report[j].Table })
	return report, nil
}

// PrintColumnMismatchReport writes the report in a human readable form.
func PrintColumnMismatchReport(w io.Writer, report []TableMismatch) {
	fmt.Fprintln(w, "=== COLUMN MISMATCH REPORT ===")

	total := 0
	for _, table := range report {
		fmt.Fprintf(w, "\n--- Table: %s ---\n", table.Table)
		switch {
		case table.Missing:
			fmt.Fprintln(w, "Table does not exist yet (will be created during migration)")
		case len(table.Columns) > 0:
			fmt.Fprintf(w, "Found %d columns not accounted for in model:\n", len(table.Columns))
			for _, col := range table.Columns {
				fmt.Fprintf(w, "  - %s\n", col)
			}
			total += len(table.Columns)
		default:
			fmt.Fprintln(w, "All columns are accounted for in the model.")
		}
	}

	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Total mismatched columns across all tables: %d\n", total)
}

func getTableColumns(db *gorm.DB, table string) ([]string, error) {
	types, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", table, err)
	}
	columns := make([]string, 0, len(types))
	for _, t := range types {
		columns = append(columns, t.Name())
	}
	return columns, nil
}

// getModelFields extracts column names from a model, following embedded structs
func getModelFields(t reflect.Type) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			fields = append(fields, getModelFields(field.Type)...)
			continue
		}
		if columnName := extractColumnNameFromGormTag(field.Tag.Get("gorm")); columnName != "" {
			fields = append(fields, columnName)
		}
	}
	return fields
}

func extractColumnNameFromGormTag(gormTag string) string {
	for _, part := range strings.Split(gormTag, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}
	return ""
}

// findColumnMismatches finds columns that exist in the database but not in the model
func findColumnMismatches(dbColumns, modelFields []string) []string {
	modelFieldSet := make(map[string]bool)
	for _, field := range modelFields {
		modelFieldSet[field] = true
	}

	var mismatches []string
	for _, col := range dbColumns {
		if !modelFieldSet[col] {
			mismatches = append(mismatches, col)
		}
	}
	return mismatches
}
