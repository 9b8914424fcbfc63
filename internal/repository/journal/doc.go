// Package journal keeps a queryable log of raised alarms in SQLite.
//
// The journal only records alarm events; the brightness history itself is
// never persisted and starts empty on every run.
package journal
