package context

import "errors"

// CTXKey - a type for context keys
type CTXKey string

const (
	// EnvironmentCTXKey - the key used for the running environment (local, sandbox, production)
	EnvironmentCTXKey CTXKey = "environment"
	// DebugLoggingCTXKey - context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - context key for the log level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - context key for overriding the log writer
	LogWriterCTXKey CTXKey = "log_writer"

	// VersionCTXKey - context key for version of code
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - context key for the commit of the code
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - context key for the build time of code
	BuildTimeCTXKey CTXKey = "build_time"

	// DatastoreCTXKey - the context key for getting the datastore
	DatastoreCTXKey CTXKey = "datastore"
	// RateLimitPerMinuteCTXKey - context key for the rate limit per minute
	RateLimitPerMinuteCTXKey CTXKey = "rate_limit_per_min"

	// GatewayServerCTXKey - the context key for the payment gateway base url
	GatewayServerCTXKey CTXKey = "gateway_server"
	// GatewayServerKeyCTXKey - the context key for the payment gateway server key
	GatewayServerKeyCTXKey CTXKey = "gateway_server_key"
	// GatewayClientCTXKey - the context key for a constructed gateway client
	GatewayClientCTXKey CTXKey = "gateway_client"

	// MessengerServerCTXKey - the context key for the messaging provider base url
	MessengerServerCTXKey CTXKey = "messenger_server"
	// MessengerTokenCTXKey - the context key for the messaging provider access token
	MessengerTokenCTXKey CTXKey = "messenger_token"
)

var (
	// ErrNotInContext - error you get when you ask for something not in the context.
	ErrNotInContext = errors.New("failed to get value from context")
	// ErrValueWrongType - error you get when you ask for something, and it is not the type you expected
	ErrValueWrongType = errors.New("context value of wrong type")
)
