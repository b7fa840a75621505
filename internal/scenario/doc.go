// Package scenario persists named viewshed requests so they can be
// re-run later. Scenarios live in a sqlite database whose schema is
// managed by embedded golang-migrate migrations.
package scenario
