package envvar

const (
	// PredictdEnv is the environment variable used to determine the environment
	PredictdEnv = "PREDICTD_ENV"

	// PredictdConfig is the environment variable used to determine the config file path
	PredictdConfig = "PREDICTD_CONFIG"

	// PredictdServerHTTPHost is the environment variable used to determine the HTTP bind host
	PredictdServerHTTPHost = "PREDICTD_SERVER_HTTP_HOST"

	// PredictdServerHTTPPort is the environment variable used to determine the HTTP port
	PredictdServerHTTPPort = "PREDICTD_SERVER_HTTP_PORT"

	// PredictdServerGRPCPort is the environment variable used to determine the gRPC port
	PredictdServerGRPCPort = "PREDICTD_SERVER_GRPC_PORT"

	// PredictdModelPath is the environment variable used to determine the model artifact path
	PredictdModelPath = "PREDICTD_MODEL_PATH"

	// PredictdLogLevel is the environment variable used to determine the log level
	PredictdLogLevel = "PREDICTD_LOG_LEVEL"
)
