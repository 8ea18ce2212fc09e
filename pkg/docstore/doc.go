// Package docstore provides the abstract document store the
// authorization engine runs on: whole-document reads, read-modify-write
// updates, and upserts of JSON documents addressed by (collection, id).
//
// Three backends are provided:
//
//   - memory: mutex-guarded in-process map, used by tests and dev mode
//   - postgres: a single JSONB documents table; updates run inside a
//     transaction with SELECT ... FOR UPDATE, so concurrent
//     read-modify-write cycles against the same document serialize
//   - redis: WATCH/MULTI optimistic concurrency with bounded retries
//
// Array-level semantics (pull element by predicate, add element if
// absent) are expressed by the caller inside the UpdateFunc over the
// decoded document.
package docstore
