// Package recorder persists server-pushed message payloads to PostgreSQL in
// batches.
package recorder
