package checks

import (
	"fmt"
	"sync"

	"datakit/core/database"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// SchemaReport is the result of comparing model definitions with the live database.
type SchemaReport struct {
	Driver  string                 `json:"driver"`
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	KeyMismatches  []string `json:"key_mismatches"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// CheckSchema verifies that every column of the given models exists in the database
// and that primary key columns are keys there too.
func CheckSchema(db *gorm.DB, models ...any) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Driver:  db.Dialector.Name(),
		Matched: true,
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
	}

	cache := &sync.Map{}
	for _, model := range models {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}

		actual, err := database.GetTableColumns(db, s.Table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", s.Table, err))
			report.Matched = false
			continue
		}

		report.Tables[s.Table] = compareTable(s, actual)
		if report.Tables[s.Table].Status != "ok" {
			report.Matched = false
		}
	}

	return report, nil
}

func compareTable(s *schema.Schema, actual []database.ColumnInfo) TableReport {
	tbl := TableReport{
		MissingColumns: []string{},
		KeyMismatches:  []string{},
		Status:         "ok",
	}

	byName := make(map[string]database.ColumnInfo, len(actual))
	for _, col := range actual {
		byName[col.Field] = col
	}

	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}
		col, ok := byName[field.DBName]
		if !ok {
			tbl.MissingColumns = append(tbl.MissingColumns, field.DBName)
			continue
		}
		if field.PrimaryKey && col.Key != "PRI" {
			tbl.KeyMismatches = append(tbl.KeyMismatches, fmt.Sprintf("%s: expected primary key, got %q", field.DBName, col.Key))
		}
	}

	switch {
	case len(actual) == 0:
		tbl.Status = "missing"
	case len(tbl.MissingColumns) > 0 || len(tbl.KeyMismatches) > 0:
		tbl.Status = "error"
	}
	return tbl
}
