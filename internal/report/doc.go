// Package report persists run results and renders them for humans.
//
// Results are stored as zstd-compressed JSON, one file per run, named by the
// run's ULID so a directory listing is already in creation order.
package report
