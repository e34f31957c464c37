// Package config provides configuration loading for the fusionflow engine.
//
// Configuration is resolved in three layers: built-in defaults, an optional
// YAML file, then FUSIONFLOW_* environment variable overrides.
package config
