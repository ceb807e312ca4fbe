// Package storage provides state store implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and optional TTL
//   - sqlite: local SQLite file through GORM, for single-host deployments
//   - memory: In-memory for testing and dry runs
package storage
