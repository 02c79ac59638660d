// Package storage provides storage backends for the cost ledger.
//
// # Storage Backends
//
// The package defines the Backend interface and two implementations:
//
//   - SQLite: embedded database for single-node deployments
//   - Memory: in-memory storage for testing and ephemeral runs
//
// # Merge Semantics
//
// Both backends upsert on the (subject, account, resource, date) key:
// merging the same record any number of times leaves exactly one row,
// holding the most recently supplied amount and usage fields. Creation
// metadata is preserved across merges.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteBackend(&storage.SQLiteConfig{
//	    Path: "data/callisto.db",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	result, err := store.MergeBatch(ctx, records)
package storage
