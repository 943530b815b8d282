package core

// Environment variable names the config layer recognizes: the core
// dispatch knobs plus the ambient provider/telemetry/cache settings.
const (
	EnvLLMProvider         = "LLM_PROVIDER"
	EnvLLMModel            = "LLM_MODEL"
	EnvLLMTemperature      = "LLM_TEMPERATURE"
	EnvQueueSoftTimeout    = "QUEUE_SOFT_TIMEOUT"
	EnvQueueHardTimeout    = "QUEUE_HARD_TIMEOUT"
	EnvWorkerTimeout       = "AGENT_TIMEOUT_SECONDS"
	EnvMaxConcurrent       = "MAX_CONCURRENT_THREADS"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFile             = "LOG_FILE"
	EnvBulkheadCapacity    = "DISPATCH_BULKHEAD_CAPACITY"
	EnvBulkheadQueue       = "DISPATCH_BULKHEAD_QUEUE"
	EnvRateLimiterAlgo     = "DISPATCH_RATE_LIMITER_ALGORITHM"
	EnvRateLimiterMaxCalls = "DISPATCH_RATE_LIMITER_MAX_CALLS"
	EnvRateLimiterPeriod   = "DISPATCH_RATE_LIMITER_PERIOD"
	EnvWorkerManifestDir   = "DISPATCH_WORKER_MANIFEST_DIR"
	EnvAnthropicAPIKey     = "ANTHROPIC_API_KEY"
	EnvYoutubeAPIKey       = "YOUTUBE_API_KEY"
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
)
