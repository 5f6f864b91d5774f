// Package config loads and validates daemon configuration from a TOML file
// with environment-variable overrides.
package config
