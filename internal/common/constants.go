package common

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvListenPort        = "LISTEN_PORT"
	EnvMetricsPort       = "METRICS_PORT"
	EnvDataPath          = "DATA_PATH"
	EnvRemoteModelURL    = "REMOTE_MODEL_URL"
	EnvRemoteTimeout     = "REMOTE_TIMEOUT"
	EnvNormalizerPath    = "NORMALIZER_PATH"
	EnvCloudGridSize     = "CLOUD_GRID_SIZE"
	EnvCloudNumStd       = "CLOUD_NUM_STD"
	EnvBaseUncertaintyNM = "BASE_UNCERTAINTY_NM"
	EnvUncertaintyGrowth = "UNCERTAINTY_GROWTH"
	EnvAISWsURL          = "AIS_WS_URL"
	EnvAISAPIKey         = "AIS_API_KEY"
	EnvAISBoundingBox    = "AIS_BOUNDING_BOX"
	EnvTrackWindow       = "TRACK_WINDOW"
	EnvPingInterval      = "PING_INTERVAL"
)

// Configuration defaults
const (
	DefaultListenPort     = 8090
	DefaultMetricsPort    = 9090
	DefaultNormalizerPath = "models/normalizer_v3.json"
	DefaultAISWsURL       = "wss://stream.aisstream.io/v0/stream"
	DefaultTrackWindow    = 64
)

// Validation constants
const (
	MinPort = 1024
	MaxPort = 65535
)
