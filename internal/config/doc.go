// Package config loads, normalizes, and validates courier daemon settings.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURIER_SMTP_PASSWORD, optionally sourced from a .env file placed next to
// the config file. Warehouse rules are not part of this package; see
// internal/warehouse for the hot-reloaded warehouse file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
