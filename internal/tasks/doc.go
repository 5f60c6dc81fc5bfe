// Package tasks produces chapter narration playlists with real-time progress reporting.
//
// # Core Operations
//
// [ScriptEngine] exposes two operations:
//
//  1. [ScriptEngine.Generate] : Build the playlist of a chapter in one language
//     - Returns the saved script when one exists
//     - Otherwise narrates every page through the gateway, a bounded pool of workers at a time
//     - Skips pages with nothing to say and marks failed pages as unavailable
//     - Saves the new playlist for the next reader
//
//  2. [ScriptEngine.Export] : Write playlists for several languages to disk
//     - Generates each language in turn
//     - Writes one file per language in JSON, CSV, Markdown or plain text
//     - Records failures per language and writes a manifest
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, an overall percentage, messages, and optional data for
// advanced UI rendering. Updates use select with default to prevent blocking. During generation each page reports
// twice, when it starts and when it finishes, and the percentage never goes backwards.
//
// # Script Caching
//
// The optional [ScriptCache] interface persists playlists per chapter and language
// (repositories.ScriptCacheAdapter). Cache failures are logged and never fail a generation.
package tasks
