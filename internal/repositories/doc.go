// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Account persistence with email lookups and the atomic AI token ledger
//   - [MangaRepository] : Catalog titles with author and genre filters
//   - [ChapterRepository] : Chapter page lists stored as JSON arrays
//   - [ScriptRepository] : Narration playlists keyed by chapter and language
//   - [ProjectRepository] : Crowdfunding campaigns
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, manga #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
