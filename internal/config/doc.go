// Package config loads, normalizes, and validates memeflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks such as LLM_API_KEY and REDIS_URL. The Config type
// centralizes the directories, collaborator endpoints, cache backend, retry
// budget and generation defaults the CLI and flows need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
