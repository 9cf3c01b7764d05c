// Package store persists the application document.
//
// Drivers:
//   - "memory": in-process only (previews, tests)
//   - "file":   <prefix>.json snapshot + <prefix>.audit.jsonl audit log
//   - "sqlite": single SQLite database file (document + audit tables)
//
// The document is always written wholesale; there is no partial update path.
package store
