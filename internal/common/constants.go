package common

// Combination strategies
const (
	StrategyXCSF    = "xcsf"
	StrategyAverage = "average"
	StrategyMedian  = "median"
)

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvStrategy       = "STRATEGY"
	EnvNumForecasts   = "NUM_FORECASTS"
	EnvSeries         = "SERIES"
	EnvEngineURL      = "ENGINE_URL"
	EnvPollInterval   = "POLL_INTERVAL"
	EnvRESTTimeout    = "REST_TIMEOUT"
	EnvDataPath       = "DATA_PATH"
	EnvPopulationName = "POPULATION_NAME"
	EnvWarmStart      = "WARM_START"
	EnvSaveOnExit     = "SAVE_ON_EXIT"
	EnvMetricsPort    = "METRICS_PORT"
	EnvStreamEvery    = "STREAM_EVERY"
	EnvLogLevel       = "LOG_LEVEL"
	EnvMaxPopSize     = "XCSF_MAX_POP_SIZE"
	EnvThetaGA        = "XCSF_THETA_GA"
	EnvSeed           = "XCSF_SEED"
	EnvInputLow       = "XCSF_INPUT_LOW"
	EnvInputHigh      = "XCSF_INPUT_HIGH"
)

// Configuration defaults
const (
	DefaultStrategy       = StrategyXCSF
	DefaultNumForecasts   = 2
	DefaultSeries         = "default"
	DefaultPopulationName = "default"
	DefaultMetricsPort    = 8080
	DefaultStreamEvery    = 1
	DefaultLogLevel       = "info"
)

// Validation constants
const (
	MinMetricsPort     = 1024
	MaxMetricsPort     = 65535
	MaxNumForecasts    = 64
	MaxStreamEvery     = 10000
	MaxExperiments     = 1000
	DefaultExperiments = 1
)
