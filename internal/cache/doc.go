// Package cache provides the storage tiers used by the thumbnail pipeline.
//
// [Memory] holds decoded bitmaps in a bounded LRU
// (github.com/hashicorp/golang-lru/v2). Two persistent tiers hold encoded
// bytes and implement [Persistent]:
//
//   - [Disk]: one file per entry, named by the xxHash64 of the cache key and
//     sharded into 256 subdirectories. Writes are atomic renames.
//   - [SQLite]: one row per entry in a WAL-mode SQLite database.
//
// All tiers are safe for concurrent use and may drop entries at any time;
// callers treat every lookup as possibly missing.
package cache
