// Package cfg loads service configuration from a YAML file with
// environment variable overrides, or from the environment alone.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"darkwatch/internal/common"
	"darkwatch/internal/predict"
)

type Settings struct {
	ListenPort  int
	MetricsPort int
	DataPath    string

	RemoteURL         string
	RemoteTimeout     time.Duration
	NormalizerPath    string
	BaseUncertaintyNM float64
	UncertaintyGrowth float64

	CloudGridSize int
	CloudNumStd   float64

	AISURL         string
	AISAPIKey      string
	AISBoundingBox [][2]float64
	TrackWindow    int
	Ping           time.Duration
}

type ConfigFile struct {
	Server struct {
		ListenPort  int    `yaml:"listenPort"`
		MetricsPort int    `yaml:"metricsPort"`
		DataPath    string `yaml:"dataPath"`
	} `yaml:"server"`

	Prediction struct {
		RemoteURL         string  `yaml:"remoteURL"`
		RemoteTimeout     string  `yaml:"remoteTimeout"`
		NormalizerPath    string  `yaml:"normalizerPath"`
		BaseUncertaintyNM float64 `yaml:"baseUncertaintyNM"`
		UncertaintyGrowth float64 `yaml:"uncertaintyGrowth"`
	} `yaml:"prediction"`

	Cloud struct {
		GridSize int     `yaml:"gridSize"`
		NumStd   float64 `yaml:"numStd"`
	} `yaml:"cloud"`

	AIS struct {
		WsURL        string       `yaml:"wsURL"`
		APIKey       string       `yaml:"apiKey"`
		BoundingBox  [][2]float64 `yaml:"boundingBox"`
		TrackWindow  int          `yaml:"trackWindow"`
		PingInterval string       `yaml:"pingInterval"`
	} `yaml:"ais"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	remoteTimeout, err := time.ParseDuration(config.Prediction.RemoteTimeout)
	if err != nil {
		remoteTimeout = predict.DefaultRemoteTimeout
	}

	ping, err := time.ParseDuration(config.AIS.PingInterval)
	if err != nil {
		ping = 15 * time.Second
	}

	boundingBox := config.AIS.BoundingBox
	if env := os.Getenv(common.EnvAISBoundingBox); env != "" {
		if parsed, err := parseBoundingBox(env); err == nil {
			boundingBox = parsed
		}
	}
	if len(boundingBox) == 0 {
		boundingBox = defaultBoundingBox()
	}

	settings := Settings{
		ListenPort:        getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		MetricsPort:       getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		DataPath:          getEnvOrDefault(common.EnvDataPath, config.Server.DataPath),
		RemoteURL:         getEnvOrDefault(common.EnvRemoteModelURL, config.Prediction.RemoteURL),
		RemoteTimeout:     remoteTimeout,
		NormalizerPath:    getEnvOrDefault(common.EnvNormalizerPath, config.Prediction.NormalizerPath),
		BaseUncertaintyNM: getFloatFromEnvOrConfig(common.EnvBaseUncertaintyNM, config.Prediction.BaseUncertaintyNM, predict.DefaultBaseUncertaintyNM),
		UncertaintyGrowth: getFloatFromEnvOrConfig(common.EnvUncertaintyGrowth, config.Prediction.UncertaintyGrowth, predict.DefaultUncertaintyGrowth),
		CloudGridSize:     getIntFromEnvOrConfig(common.EnvCloudGridSize, config.Cloud.GridSize, predict.DefaultCloudGridSize),
		CloudNumStd:       getFloatFromEnvOrConfig(common.EnvCloudNumStd, config.Cloud.NumStd, predict.DefaultCloudNumStd),
		AISURL:            getEnvOrDefault(common.EnvAISWsURL, config.AIS.WsURL),
		AISAPIKey:         getEnvOrDefault(common.EnvAISAPIKey, config.AIS.APIKey),
		AISBoundingBox:    boundingBox,
		TrackWindow:       getIntFromEnvOrConfig(common.EnvTrackWindow, config.AIS.TrackWindow, common.DefaultTrackWindow),
		Ping:              ping,
	}
	if settings.NormalizerPath == "" {
		settings.NormalizerPath = common.DefaultNormalizerPath
	}
	if settings.AISURL == "" {
		settings.AISURL = common.DefaultAISWsURL
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	boundingBox := defaultBoundingBox()
	if env := os.Getenv(common.EnvAISBoundingBox); env != "" {
		parsed, err := parseBoundingBox(env)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", common.EnvAISBoundingBox, err)
		}
		boundingBox = parsed
	}

	settings := Settings{
		ListenPort:        getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsPort:       getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DataPath:          os.Getenv(common.EnvDataPath), // optional
		RemoteURL:         os.Getenv(common.EnvRemoteModelURL),
		RemoteTimeout:     getDurationOrDefault(common.EnvRemoteTimeout, predict.DefaultRemoteTimeout),
		NormalizerPath:    getEnvOrDefault(common.EnvNormalizerPath, common.DefaultNormalizerPath),
		BaseUncertaintyNM: getFloatOrDefault(common.EnvBaseUncertaintyNM, predict.DefaultBaseUncertaintyNM),
		UncertaintyGrowth: getFloatOrDefault(common.EnvUncertaintyGrowth, predict.DefaultUncertaintyGrowth),
		CloudGridSize:     getIntOrDefault(common.EnvCloudGridSize, predict.DefaultCloudGridSize),
		CloudNumStd:       getFloatOrDefault(common.EnvCloudNumStd, predict.DefaultCloudNumStd),
		AISURL:            getEnvOrDefault(common.EnvAISWsURL, common.DefaultAISWsURL),
		AISAPIKey:         os.Getenv(common.EnvAISAPIKey), // optional, ingest disabled without it
		AISBoundingBox:    boundingBox,
		TrackWindow:       getIntOrDefault(common.EnvTrackWindow, common.DefaultTrackWindow),
		Ping:              getDurationOrDefault(common.EnvPingInterval, 15*time.Second),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// parseBoundingBox parses "lat1,lon1,lat2,lon2" into corner pairs.
func parseBoundingBox(s string) ([][2]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected lat1,lon1,lat2,lon2, got %q", s)
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		vals[i] = f
	}

	return [][2]float64{{vals[0], vals[1]}, {vals[2], vals[3]}}, nil
}

func defaultBoundingBox() [][2]float64 {
	return [][2]float64{{-90, -180}, {90, 180}}
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ListenPort < common.MinPort || settings.ListenPort > common.MaxPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ListenPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen and metrics ports must differ, both are %d", settings.ListenPort)
	}

	if settings.RemoteTimeout < time.Second || settings.RemoteTimeout > 2*time.Minute {
		return fmt.Errorf("remote timeout must be between 1s and 2m, got %v", settings.RemoteTimeout)
	}
	if settings.Ping < time.Second || settings.Ping > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", settings.Ping)
	}

	if settings.CloudGridSize <= 0 || settings.CloudGridSize > 200 {
		return fmt.Errorf("cloud grid size must be between 1 and 200, got %d", settings.CloudGridSize)
	}
	if settings.CloudNumStd <= 0 || settings.CloudNumStd > 10 {
		return fmt.Errorf("cloud sigma span must be between 0 and 10, got %f", settings.CloudNumStd)
	}

	if settings.BaseUncertaintyNM < 0 {
		return fmt.Errorf("base uncertainty must be non-negative, got %f", settings.BaseUncertaintyNM)
	}
	if settings.UncertaintyGrowth < 0 {
		return fmt.Errorf("uncertainty growth rate must be non-negative, got %f", settings.UncertaintyGrowth)
	}

	if settings.TrackWindow < predict.SequenceLength {
		return fmt.Errorf("track window must hold at least %d points, got %d", predict.SequenceLength, settings.TrackWindow)
	}

	for _, corner := range settings.AISBoundingBox {
		if corner[0] < -90 || corner[0] > 90 || corner[1] < -180 || corner[1] > 180 {
			return fmt.Errorf("bounding box corner out of range: %v", corner)
		}
	}

	return nil
}
