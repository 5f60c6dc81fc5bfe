// Package models defines domain entities and persistence interfaces for the aleerpe manga reader.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs exchanged with external collaborators
//   - [TranslationResult] : One detected text region translated by the AI gateway
//   - [AudioSegment] : One unit of narration bound to a page index
//   - [MangaStats] : Aggregated reader metrics for a title
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Reader and author accounts with an AI token balance
//   - [Manga] : Catalog titles with genres, status and author ownership
//   - [Chapter] : Ordered page image references for one chapter of a title
//   - [Project] : Crowdfunding campaigns shown on the funding page
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
