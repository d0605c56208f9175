// Package config loads the SchoolPulse configuration.
//
// # Configuration Sources
//
// Values are resolved in this order, later sources overriding earlier ones:
//
//	1. Default()
//	2. A YAML file named by SCHOOLPULSE_CONFIG, or ./config.yaml, or ./configs/config.yaml
//	3. Environment variables prefixed with SCHOOLPULSE_
//
// # Environment Variables
//
// Nested sections are joined with underscores:
//
//	SCHOOLPULSE_SERVER_PORT=8080
//	SCHOOLPULSE_LOGGING_LEVEL=debug
//	SCHOOLPULSE_STORE_DRIVER=sqlite
//	SCHOOLPULSE_STORE_DATA_PATH=data/schoolpulse.db
//	SCHOOLPULSE_UPLOAD_MAX_BYTES=20971520
//	SCHOOLPULSE_SHEETS_ENABLED=true
//	SCHOOLPULSE_SHEETS_CREDENTIALS_FILE=/etc/schoolpulse/service-account.json
//
// # Example YAML
//
//	server:
//	  port: 8080
//	store:
//	  driver: sqlite
//	  path: data/schoolpulse.db
//	telemetry:
//	  trace_exporter: stdout
package config
