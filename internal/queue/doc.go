// Package queue persists download jobs in SQLite and mirrors them in memory.
//
// A Store is one key→job table keyed by source URL; the daemon keeps three of
// them (active, pending and done) in a Set, one database file each under the
// state directory. Opening a table first copies it to "<file>.old", then runs a
// single best-effort repair pass (quick_check, row salvage, reset of files that
// are not databases at all, removal of empty keys). Repair never blocks
// startup.
//
// Items are returned in admission order, which is the job timestamp. Schema
// changes bump the version in schema.go; a table carrying another version is
// rebuilt from its readable rows when it is opened.
package queue
