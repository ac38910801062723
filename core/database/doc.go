// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to configure
// SQLite (the default local mirror) or MySQL connections from the application's
// configuration.
//
// # Connect
//
// Connect opens the configured driver and pings it. SQLite files are opened with WAL
// journaling and a busy timeout; in-memory SQLite and every SQLite file use a single
// connection. ReadOnly opens SQLite with mode=ro.
//
// # Schema Inspection
//
// GetTableColumns returns the column definitions of a table, used by the schema
// command to show what the migrations produced.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "stories")
package database
