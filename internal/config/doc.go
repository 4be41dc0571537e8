// Package config provides configuration loading and validation for the
// voice assistant client and the development assistant server.
// It handles YAML-based configuration with struct validation and
// environment fallbacks for secrets.
package config
