package globals

// LogEnvVar is the environment variable that overrides the configured log level
const LogEnvVar = "REGFRONT_LOG"

// DefaultLogLevel is used when neither the command line nor the environment sets a level
const DefaultLogLevel = "error"

// ApiVersionHeader is stamped on every response of the registry API
const ApiVersionHeader = "Docker-Distribution-API-Version"

// ApiVersion is the only registry API version served
const ApiVersion = "registry/2.0"
