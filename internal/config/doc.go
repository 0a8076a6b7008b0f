// Package config handles configuration loading for sketchbook-gateway and the
// sketchbook client.
//
// # Gateway Configuration
//
// The gateway reads a YAML file with environment variable expansion.
//
// Default locations (in order):
//
//  1. Path from SKETCHBOOK_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/sketchbook/gateway.yaml
//  3. ~/.config/sketchbook/gateway.yaml
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	auth:
//	  jwt_secret: "${SKETCHBOOK_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  max_upload_bytes: 10485760
//
//	database:
//	  path: "/var/lib/sketchbook/gateway.db"
//
//	auth:
//	  jwt_secret: "${SKETCHBOOK_JWT_SECRET}"  # at least 32 bytes
//	  token_ttl: "168h"
//
//	generator:
//	  backend: "openai"     # echo, openai
//	  model: "gpt-image-1"
//	  api_key: "${OPENAI_API_KEY}"
//	  timeout: "2m"
//
//	idempotency:
//	  ttl: "10m"
//	  max_entries: 1000
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Client Configuration
//
// LoadClient layers defaults, an optional TOML file (SKETCHBOOK_CONFIG or
// $XDG_CONFIG_HOME/sketchbook/client.toml), .env files, and finally the
// process environment:
//
//	[gateway]
//	url = "https://sketch.example.com"
//	token = "${SKETCHBOOK_TOKEN}"
//	timeout = "2m"
//
//	[export]
//	dir = "/home/me/Downloads"
//
// Environment overrides: SKETCHBOOK_SERVER, SKETCHBOOK_TOKEN,
// SKETCHBOOK_TIMEOUT, SKETCHBOOK_EXPORT_DIR, SKETCHBOOK_EXPORT_WIDTH,
// SKETCHBOOK_LOG_LEVEL, SKETCHBOOK_LOG_FORMAT.
package config
