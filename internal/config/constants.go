package config

// Application constants
const (
	AppName = "SchoolPulse"

	// HTTP surface
	APIBasePath       = "/api"
	CatalogEndpoint   = "/api/catalog"
	HealthEndpoint    = "/health"
	VersionEndpoint   = "/version"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"

	// UploadFormField is the multipart field carrying the workbook
	UploadFormField = "file"
)
