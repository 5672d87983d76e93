// Package config loads, normalizes, and validates audiogen configuration.
//
// It supplies repository defaults (mirroring the generation server's own
// slider defaults), expands user paths including tilde shortcuts, reads TOML
// files, and honours the AUDIOGEN_SERVER_URL environment fallback. Obtain
// settings through Load so every command sees the same server endpoints,
// generation defaults and display timings.
package config
