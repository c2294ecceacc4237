// Package database provides the PostgreSQL connection pool for the recorder
// daemon.
package database
