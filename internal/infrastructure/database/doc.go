// Package database provides SQLite connectivity and schema migrations.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Versioned migrations read from any fs.FS (usually an embed.FS)
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/nativehost.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations only move forward: new columns must be nullable or carry a
// default. Resetting the run history means deleting the database file.
package database
