package constants

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// HTTP Headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// HTTP Paths
const (
	PathPredict   = "/predict"
	PathHealth    = "/healthz"
	PathMetrics   = "/metrics"
	PathSchema    = "/schema"
	PathInfo      = "/info"
	PathDecisions = "/decisions"
	PathDecision  = "/decisions/{id}"
)

// CORS headers sent by the serverless entry
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	CORSAllowMethods   = "GET, POST, OPTIONS"
	CORSAllowHeaders   = "Content-Type, Authorization"
)
