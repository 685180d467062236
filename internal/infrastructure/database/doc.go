// Package database provides SQLite connectivity for tiond.
//
// This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations loaded from an fs.FS (embedded by the migrations package)
//   - Health checks for the ops endpoint
//
// The pool is pinned to one connection: SQLite has a single writer, and the
// device registry and rule store share the handle.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql has a matching .down.sql.
package database
