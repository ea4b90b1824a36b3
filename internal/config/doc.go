// Package config provides configuration loading and validation.
// It reads YAML configuration files with per-section validation and applies
// environment variable overrides (including values from a local .env file).
package config
