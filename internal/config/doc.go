// Package config loads and validates relay configuration from YAML files
// with ${VAR} environment variable expansion.
package config
