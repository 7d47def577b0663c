// Package database provides connection pool management for the PostgreSQL
// instance backing the connection directory.
package database
