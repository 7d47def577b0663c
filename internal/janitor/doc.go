// Package janitor periodically removes expired connection records from the
// directory store.
package janitor
