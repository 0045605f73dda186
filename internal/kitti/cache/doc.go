// Package cache persists fully materialized tracklets under a key derived
// from the dataset configuration.
//
// Responsibilities:
//   - derive a deterministic key (Fingerprint) from the configuration
//   - materialize tracklets: frames, template merge, then optional crop
//   - encode materializations as zstd-compressed CBOR blobs
//   - read and write blobs through a Store (filesystem or in-memory here,
//     SQLite in storage/sqlite)
//
// A blob found under a key is returned as stored. Nothing checks it against
// the current annotations or code version; deleting stale blobs is the
// caller's job. Concurrent builders of one key race and the last Put wins.
package cache
