// Package models defines domain entities and persistence interfaces for the tunegrab download service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing catalog data
//   - [Track] : Song metadata from the catalog source, keyed by a stable catalog ID
//   - [Collection] : An album, playlist, or artist discography grouping tracks
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [QueueEntry] : Durable per-track download record with a [QueueStatus] lifecycle
//
// Persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
