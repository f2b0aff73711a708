// Package config handles configuration loading for notebox.
//
// # Configuration File
//
// The path comes from the NOTEBOX_CONFIG environment variable or the -config
// flag, defaulting to ./notebox.yaml. Files ending in .toml are parsed as
// TOML; anything else is parsed as YAML. When no file exists the server runs
// on defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${NOTEBOX_JWT_SECRET}"
//
// An empty auth.jwt_secret also falls back to NOTEBOX_JWT_SECRET.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//	  base_url: "http://localhost:8080"   # prefix for image URLs
//	  cors_allowed_origins: ["https://app.example.com"]  # empty disables CORS
//	  request_timeout: "30s"
//	  shutdown_timeout: "5s"
//
//	tailscale:
//	  enabled: false
//	  hostname: "notebox"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true                         # :443 with tailscale certs
//
//	database:
//	  driver: "sqlite"                    # sqlite, sqlite3 (cgo), postgres, pgx
//	  path: "./data/notebox.db"           # sqlite drivers only
//	  dsn: "postgres://..."               # postgres, pgx
//
//	auth:
//	  jwt_secret: "${NOTEBOX_JWT_SECRET}" # at least 32 bytes
//	  token_ttl: "24h"
//	  revocation:
//	    backend: "memory"                 # memory, redis
//	    redis_addr: "localhost:6379"
//	    sweep_interval: "1m"
//
//	storage:
//	  images_dir: "./data/images"
//	  max_upload_bytes: 10485760
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
