package constants

// ============================================================================
// CONFIGURATION
// ============================================================================

// Configuration Files
const (
	ConfigFileName      = "loanscore.config.json"
	DefaultArtifactPath = "artifacts/stacked_ensemble_pipeline.json"
	PipelineFormat      = "loanscore.pipeline/v1"
)

// Environment Variables
const (
	EnvDebug        = "LOANSCORE_DEBUG"
	EnvConfigPath   = "LOANSCORE_CONFIG"
	EnvArtifact     = "LOANSCORE_ARTIFACT"
	EnvAddr         = "LOANSCORE_ADDR"
	EnvLogLevel     = "LOANSCORE_LOG_LEVEL"
	EnvLogFile      = "LOANSCORE_LOG_FILE"
	EnvTracing      = "LOANSCORE_TRACING"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvAWSRegion    = "AWS_REGION"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvStorage      = "LOANSCORE_STORAGE_DRIVER"
	EnvEventDriver  = "LOANSCORE_EVENT_DRIVER"
	EnvEventURL     = "LOANSCORE_EVENT_URL"
)

// Artifact URL schemes
const (
	SchemeFile = "file://"
	SchemeS3   = "s3://"
)

// Storage drivers for the decision audit trail. An empty driver disables it.
const (
	StorageDriverNone     = ""
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Event bus drivers. An empty driver disables publishing.
const (
	EventDriverNone   = ""
	EventDriverMemory = "memory"
	EventDriverNATS   = "nats"
)

// Tracing exporters
const (
	TracingNone   = ""
	TracingStdout = "stdout"
	TracingOTLP   = "otlp"
)

// ============================================================================
// FEATURE SCHEMA
// ============================================================================

// Request field names, as sent by clients.
const (
	FieldBankTransactionAverage = "bank_transaction_average"
	FieldSocialMediaScreentime  = "social_media_screentime"
	FieldEcommerceScreenTime    = "ecommerce_screen_time"
	FieldCIBILScore             = "cibil_score"
	FieldGeographicalMovement   = "geographical_movement"
	FieldSocialMediaReach       = "social_media_reach"
)

// Training-time column names. These must match the fitted pipeline byte for byte.
const (
	ColumnBankTransactionAverage = "Bank transaction average(per month)"
	ColumnSocialMediaScreentime  = "social media screentime"
	ColumnEcommerceScreenTime    = "e-commerce screen time"
	ColumnCIBILScore             = "CIBIL score"
	ColumnGeographicalMovement   = "geographical movement"
	ColumnSocialMediaReach       = "social media reach"
)

// Class labels. Probability column PositiveClassIndex is read as approval.
const (
	ClassRejected      = 0
	ClassApproved      = 1
	PositiveClassIndex = 1
)

// ============================================================================
// CLI COMMANDS & DESCRIPTIONS
// ============================================================================

// Command names
const (
	CmdServe     = "serve"
	CmdPredict   = "predict"
	CmdSchema    = "schema"
	CmdArtifact  = "artifact"
	CmdValidate  = "validate"
	CmdInspect   = "inspect"
	CmdMCP       = "mcp"
	CmdDecisions = "decisions"
	CmdList      = "list"
	CmdGet       = "get"
	CmdDelete    = "delete"
)

// Output formats
const (
	OutputJSON = "json"
	OutputText = "text"
)

// Command descriptions
const (
	DescServe    = "Serve the prediction endpoint over HTTP"
	DescPredict  = "Run a single prediction against the artifact"
	DescSchema   = "Print the request field to training column mapping"
	DescArtifact = "Work with pipeline artifacts"
	DescValidate = "Load and validate a pipeline artifact"
	DescInspect  = "Print a summary of a pipeline artifact"
	DescMCP      = "Model Context Protocol server"
	DescMCPServe = "Serve the prediction tool over MCP (HTTP or stdio)"
	DescDecision = "Inspect the decision audit trail"
	DescList     = "List recent decisions, newest first"
	DescGet      = "Show one decision by id"
	DescDelete   = "Remove one decision from the audit trail"
)

// ============================================================================
// SERVER DEFAULTS
// ============================================================================

const (
	DefaultAddr         = ":8000"
	DefaultMCPAddr      = "localhost:3001"
	DefaultServiceName  = "loanscore"
	DefaultShutdownSecs = 5
	DefaultReadTimeout  = 10
	DefaultMaxBodyBytes = 1 << 20
	JSONIndent          = "  "

	DefaultNATSClusterID  = "loanscore"
	DefaultNATSClientID   = "loanscore-client"
	DefaultDecisionLimit  = 50
	MaxDecisionLimit      = 1000
	MemoryStorageCapacity = 1000
	DefaultSQLiteDSN      = ".loanscore/decisions.db"
	TopicDecisions        = "loanscore.decisions"
)

// Channels a decision can arrive through, recorded on audit entries.
const (
	ChannelHTTP     = "http"
	ChannelFunction = "function"
	ChannelMCP      = "mcp"
	ChannelCLI      = "cli"
)

// ============================================================================
// OPERATIONS
// ============================================================================

// Operation IDs
const (
	OpPredict   = "predict"
	OpSchema    = "schema"
	OpInfo      = "info"
	OpDecisions = "decisions"
	OpDecision  = "decision"
)

// MCP tool names
const (
	MCPToolPredict   = "predict_loan_approval"
	MCPToolSchema    = "feature_schema"
	MCPToolInfo      = "pipeline_info"
	MCPToolDecisions = "list_decisions"
	MCPToolDecision  = "get_decision"
)
