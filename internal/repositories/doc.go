// Package repositories implements SQLite persistence for client-side state.
//
// The clients hold no domain data locally. The only persisted state is a small
// key/value table (local_storage) that keeps the bearer token between runs of
// the CLI and TUI, the same role browser local storage plays for a web client.
//
// Key Implementations:
//   - [StorageRepository] : string key/value access with upsert writes
package repositories
