// Package sqlite stores read-session diagnostics for scan files in SQLite.
//
// A session is one open scan file; every ReadData call on it is recorded
// as a row with the window bounds, how the reader reached the window
// (continue, skip or replay) and what it returned. The schema is managed
// with golang-migrate from the embedded migrations directory.
package sqlite
