package constants

// HTTP Response Messages
const (
	ResponseInternalError    = "Internal Server Error"
	ResponseMethodNotAllowed = "Method Not Allowed"
	ResponseNotFound         = "Not Found"
	ResponseBodyTooLarge     = "Request Entity Too Large"
	ResponseServiceUnready   = "Service Unavailable"
	ResponseDecisionNotFound = "Decision not found"
	ResponseAuditDisabled    = "Decision audit trail is disabled"
	HealthCheckResponse      = `{"status":"healthy"}`
)

// Validation error types, named like pydantic error types.
const (
	ValidationTypeMissing   = "missing"
	ValidationTypeFloat     = "float_parsing"
	ValidationTypeFloatType = "float_type"
	ValidationTypeFinite    = "finite_number"
	ValidationTypeInt       = "int_parsing"
	ValidationTypeIntType   = "int_type"
	ValidationTypeIntFrac   = "int_from_float"
	ValidationTypeJSON      = "json_invalid"
	ValidationTypeDict      = "model_attributes_type"
	ValidationTypeUUID      = "uuid_parsing"
	ValidationLocBody       = "body"
	ValidationLocQuery      = "query"
	ValidationLocPath       = "path"
)

// Validation messages
const (
	MsgFieldRequired = "Field required"
	MsgFloatParsing  = "Input should be a valid number, unable to parse string as a number"
	MsgFloatType     = "Input should be a valid number"
	MsgFinite        = "Input should be a finite number"
	MsgIntParsing    = "Input should be a valid integer, unable to parse string as an integer"
	MsgIntType       = "Input should be a valid integer"
	MsgIntFrac       = "Input should be a valid integer, got a number with a fractional part"
	MsgJSONInvalid   = "JSON decode error"
	MsgDictType      = "Input should be a valid dictionary or object to extract fields from"
	MsgUUIDParsing   = "Input should be a valid UUID"
)

// Error Messages for Logging
const (
	LogFailedWriteHealthCheck = "Failed to write health check response: %v"
	LogWriteFailed            = "w.Write failed: %v"
	LogJSONEncodeFailed       = "json.Encode failed: %v"
)
