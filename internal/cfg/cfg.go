package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"forecast-combiner/internal/common"
	"forecast-combiner/internal/xcsf"
)

type Settings struct {
	Strategy       string
	NumForecasts   int
	Series         string
	EngineURL      string
	PollInterval   time.Duration
	RESTTimeout    time.Duration
	DataPath       string
	PopulationName string
	WarmStart      bool
	SaveOnExit     bool
	MetricsPort    int
	StreamEvery    int
	Experiments    int
	LogLevel       string
	XCSF           xcsf.Params
}

type ConfigFile struct {
	Combiner struct {
		Strategy     string `yaml:"strategy"`
		NumForecasts int    `yaml:"numForecasts"`
		Series       string `yaml:"series"`
		Experiments  int    `yaml:"experiments"`
	} `yaml:"combiner"`

	Engine struct {
		URL          string `yaml:"url"`
		PollInterval string `yaml:"pollInterval"`
		RESTTimeout  string `yaml:"restTimeout"`
	} `yaml:"engine"`

	Storage struct {
		DataPath       string `yaml:"dataPath"`
		PopulationName string `yaml:"populationName"`
		WarmStart      bool   `yaml:"warmStart"`
		SaveOnExit     bool   `yaml:"saveOnExit"`
	} `yaml:"storage"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		StreamEvery int    `yaml:"streamEvery"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`

	// XCSF starts from the reference parameters; keys present in the file
	// override them.
	XCSF xcsf.Params `yaml:"xcsf"`
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE
// if set, falling back to environment variables.
func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv populates the environment from path without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := ConfigFile{XCSF: xcsf.DefaultParams()}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	pollInterval, err := parseOptionalDuration(config.Engine.PollInterval, 0)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid engine.pollInterval: %w", err)
	}
	restTimeout, err := parseOptionalDuration(config.Engine.RESTTimeout, 5*time.Second)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid engine.restTimeout: %w", err)
	}

	settings := Settings{
		Strategy:       getEnvOrDefault(common.EnvStrategy, orDefault(config.Combiner.Strategy, common.DefaultStrategy)),
		NumForecasts:   getIntFromEnvOrConfig(common.EnvNumForecasts, config.Combiner.NumForecasts, common.DefaultNumForecasts),
		Series:         getEnvOrDefault(common.EnvSeries, orDefault(config.Combiner.Series, common.DefaultSeries)),
		EngineURL:      getEnvOrDefault(common.EnvEngineURL, config.Engine.URL),
		PollInterval:   getDurationOrDefault(common.EnvPollInterval, pollInterval),
		RESTTimeout:    getDurationOrDefault(common.EnvRESTTimeout, restTimeout),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		PopulationName: getEnvOrDefault(common.EnvPopulationName, orDefault(config.Storage.PopulationName, common.DefaultPopulationName)),
		WarmStart:      getBoolOrDefault(common.EnvWarmStart, config.Storage.WarmStart),
		SaveOnExit:     getBoolOrDefault(common.EnvSaveOnExit, config.Storage.SaveOnExit),
		MetricsPort:    getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		StreamEvery:    getIntFromEnvOrConfig(common.EnvStreamEvery, config.System.StreamEvery, common.DefaultStreamEvery),
		Experiments:    orDefaultInt(config.Combiner.Experiments, common.DefaultExperiments),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		XCSF:           applyParamsEnv(config.XCSF),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Strategy:       getEnvOrDefault(common.EnvStrategy, common.DefaultStrategy),
		NumForecasts:   getIntOrDefault(common.EnvNumForecasts, common.DefaultNumForecasts),
		Series:         getEnvOrDefault(common.EnvSeries, common.DefaultSeries),
		EngineURL:      os.Getenv(common.EnvEngineURL), // optional
		PollInterval:   getDurationOrDefault(common.EnvPollInterval, 0),
		RESTTimeout:    getDurationOrDefault(common.EnvRESTTimeout, 5*time.Second),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		PopulationName: getEnvOrDefault(common.EnvPopulationName, common.DefaultPopulationName),
		WarmStart:      getBoolOrDefault(common.EnvWarmStart, false),
		SaveOnExit:     getBoolOrDefault(common.EnvSaveOnExit, false),
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		StreamEvery:    getIntOrDefault(common.EnvStreamEvery, common.DefaultStreamEvery),
		Experiments:    common.DefaultExperiments,
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		XCSF:           applyParamsEnv(xcsf.DefaultParams()),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// applyParamsEnv overrides the handful of learning parameters that are
// commonly tuned per deployment.
func applyParamsEnv(p xcsf.Params) xcsf.Params {
	p.MaxPopSize = getIntOrDefault(common.EnvMaxPopSize, p.MaxPopSize)
	p.ThetaGA = getFloatOrDefault(common.EnvThetaGA, p.ThetaGA)
	p.Seed = int64(getIntOrDefault(common.EnvSeed, int(p.Seed)))
	p.InputLow = getFloatOrDefault(common.EnvInputLow, p.InputLow)
	p.InputHigh = getFloatOrDefault(common.EnvInputHigh, p.InputHigh)
	return p
}

func parseOptionalDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
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

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return orDefaultInt(configValue, defaultValue)
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	settings.Strategy = strings.ToLower(strings.TrimSpace(settings.Strategy))
	switch settings.Strategy {
	case common.StrategyXCSF, common.StrategyAverage, common.StrategyMedian:
	default:
		return fmt.Errorf("unknown strategy %q", settings.Strategy)
	}

	if settings.NumForecasts < 1 || settings.NumForecasts > common.MaxNumForecasts {
		return fmt.Errorf("number of forecasts must be between 1 and %d, got %d", common.MaxNumForecasts, settings.NumForecasts)
	}
	if settings.Series == "" {
		return fmt.Errorf("series name cannot be empty")
	}

	// Remote engine
	if settings.PollInterval < 0 || settings.PollInterval > time.Hour {
		return fmt.Errorf("poll interval must be between 0 and 1h, got %v", settings.PollInterval)
	}
	if settings.PollInterval > 0 && settings.EngineURL == "" {
		return fmt.Errorf("polling requires an engine URL")
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	// Persistence
	if (settings.WarmStart || settings.SaveOnExit) && settings.DataPath == "" {
		return fmt.Errorf("warm start and save on exit require a data path")
	}
	if settings.PopulationName == "" {
		return fmt.Errorf("population name cannot be empty")
	}

	if settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}
	if settings.StreamEvery < 1 || settings.StreamEvery > common.MaxStreamEvery {
		return fmt.Errorf("stream interval must be between 1 and %d, got %d", common.MaxStreamEvery, settings.StreamEvery)
	}
	if settings.Experiments < 1 || settings.Experiments > common.MaxExperiments {
		return fmt.Errorf("experiments must be between 1 and %d, got %d", common.MaxExperiments, settings.Experiments)
	}

	if settings.Strategy == common.StrategyXCSF {
		if err := settings.XCSF.Validate(); err != nil {
			return fmt.Errorf("xcsf: %w", err)
		}
	}

	return nil
}
