// Package config handles configuration loading for vibecode-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Unset fields keep the values from Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from VIBECODE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/vibecode/gateway.yaml
//  3. ~/.config/vibecode/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${VIBECODE_JWT_SECRET}"
//	oauth:
//	  github:
//	    client_id: "${GITHUB_CLIENT_ID}"
//	    client_secret: "${GITHUB_CLIENT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:5000"
//
//	database:
//	  path: "/var/lib/vibecode/gateway.db"
//
//	auth:
//	  jwt_secret: "${VIBECODE_JWT_SECRET}"  # at least 32 bytes
//	  token_ttl: "24h"
//	  dev_login: false
//	  local_users:
//	    alice: "$2a$10$..."                 # bcrypt, see `vibecode-gateway hash-password`
//
//	oauth:
//	  frontend_url: "/"
//	  github: {client_id, client_secret, redirect_uri}
//	  google: {client_id, client_secret, redirect_uri}
//
//	proxy:
//	  upstream_url: "http://fastapi:8000"
//	  timeout: "30s"
//
//	containers:
//	  port: 8000
//	  cpu_limit: "500m"
//	  memory_limit: "512Mi"
//	  storage_size: "1Gi"
//	  images:
//	    python: "python:3.9-slim"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
