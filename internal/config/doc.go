// Package config loads client settings for talking to KerbalX.
//
// # Overview
//
// Settings come from a TOML file. A missing file is not an error: every
// field has a default so the client works out of the box against the
// production site.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/kxapi/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. Empty fields use defaults
//
// # Profile Resolution
//
// The base URL is chosen from three profiles: production, stage and
// development. Resolution happens once in Load:
//
//   - an explicit profile field wins
//   - otherwise a .kerbalx-development marker file in root_dir selects development
//   - otherwise a .kerbalx-stage marker file selects stage
//   - otherwise production
//
// # TOML Format
//
//	profile = "production"
//	root_dir = "~/KSP"
//	token_file = "KerbalX.key"
//	game_version = "1.4.3"
//	log_level = "info"
//	log_file = "logs/kxapi.log" # optional, stderr when unset
//	theme = "Dracula"           # or "Slate"
//	request_timeout_seconds = 30
//	rate_limit = 0
//	rate_burst = 1
//
//	[urls]
//	development = "http://localhost:3000"
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files,
// invalid TOML, unknown profile names and negative rate limits.
package config
