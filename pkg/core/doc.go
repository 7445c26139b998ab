// Package core defines the shared domain model of the Castle pipeline:
// spreadsheet metadata, the normalized Sheet/Column/Row/Value entities,
// search and relationship results, and the Store interface implemented by
// internal/state.
//
// The package has no dependencies beyond the standard library so that every
// layer (fetcher, normalizer, store, CLI, API) can import it freely.
package core
