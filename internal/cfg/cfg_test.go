package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"forecast-combiner/internal/common"
	"forecast-combiner/internal/xcsf"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Strategy != common.StrategyXCSF {
					t.Errorf("expected default strategy xcsf, got %s", settings.Strategy)
				}
				if settings.NumForecasts != 2 {
					t.Errorf("expected default NumForecasts 2, got %d", settings.NumForecasts)
				}
				if settings.RESTTimeout != 5*time.Second {
					t.Errorf("expected default RESTTimeout 5s, got %v", settings.RESTTimeout)
				}
				if settings.MetricsPort != 8080 {
					t.Errorf("expected default MetricsPort 8080, got %d", settings.MetricsPort)
				}
				if settings.XCSF != xcsf.DefaultParams() {
					t.Errorf("expected reference parameters, got %+v", settings.XCSF)
				}
				if settings.Persistent() || settings.Polling() {
					t.Error("expected no persistence and no polling by default")
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"STRATEGY":          "Median",
				"NUM_FORECASTS":     "4",
				"SERIES":            "load",
				"ENGINE_URL":        "http://engine:9000",
				"POLL_INTERVAL":     "30s",
				"DATA_PATH":         "/tmp/combiner.db",
				"WARM_START":        "true",
				"METRICS_PORT":      "9090",
				"XCSF_MAX_POP_SIZE": "400",
				"XCSF_SEED":         "7",
				"XCSF_INPUT_HIGH":   "2.5",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Strategy != common.StrategyMedian {
					t.Errorf("expected strategy to be normalized to median, got %s", settings.Strategy)
				}
				if settings.NumForecasts != 4 {
					t.Errorf("expected NumForecasts 4, got %d", settings.NumForecasts)
				}
				if settings.PollInterval != 30*time.Second {
					t.Errorf("expected PollInterval 30s, got %v", settings.PollInterval)
				}
				if !settings.Polling() || !settings.Persistent() || !settings.WarmStart {
					t.Error("expected polling, persistence and warm start to be enabled")
				}
				if settings.XCSF.MaxPopSize != 400 || settings.XCSF.Seed != 7 || settings.XCSF.InputHigh != 2.5 {
					t.Errorf("expected xcsf overrides, got %+v", settings.XCSF)
				}
			},
		},
		{
			name:    "unknown strategy",
			envVars: map[string]string{"STRATEGY": "boosting"},
			wantErr: true,
		},
		{
			name:    "polling without engine",
			envVars: map[string]string{"POLL_INTERVAL": "10s"},
			wantErr: true,
		},
		{
			name:    "warm start without data path",
			envVars: map[string]string{"WARM_START": "true"},
			wantErr: true,
		},
		{
			name:    "invalid learning parameters",
			envVars: map[string]string{"XCSF_MAX_POP_SIZE": "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
combiner:
  strategy: "xcsf"
  numForecasts: 3
  series: "demand"
  experiments: 5

engine:
  url: "http://localhost:9000"
  pollInterval: "1m"
  restTimeout: "10s"

storage:
  dataPath: "/custom/data.db"
  populationName: "demand-v1"
  warmStart: true
  saveOnExit: true

system:
  metricsPort: 9090
  streamEvery: 10
  logLevel: "debug"

xcsf:
  maxPopSize: 500
  thetaGA: 25
  doNumClosestMatch: true
  inputLow: 0
  inputHigh: 100
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.NumForecasts != 3 {
					t.Errorf("expected NumForecasts 3, got %d", settings.NumForecasts)
				}
				if settings.Series != "demand" {
					t.Errorf("expected Series 'demand', got %s", settings.Series)
				}
				if settings.Experiments != 5 {
					t.Errorf("expected Experiments 5, got %d", settings.Experiments)
				}
				if settings.PollInterval != time.Minute {
					t.Errorf("expected PollInterval 1m, got %v", settings.PollInterval)
				}
				if settings.RESTTimeout != 10*time.Second {
					t.Errorf("expected RESTTimeout 10s, got %v", settings.RESTTimeout)
				}
				if settings.PopulationName != "demand-v1" || !settings.WarmStart || !settings.SaveOnExit {
					t.Errorf("unexpected storage settings: %+v", settings)
				}
				if settings.StreamEvery != 10 {
					t.Errorf("expected StreamEvery 10, got %d", settings.StreamEvery)
				}
				if settings.Level() != zerolog.DebugLevel {
					t.Errorf("expected debug level, got %v", settings.Level())
				}
				if settings.XCSF.MaxPopSize != 500 || settings.XCSF.ThetaGA != 25 {
					t.Errorf("expected xcsf overrides, got %+v", settings.XCSF)
				}
				if !settings.XCSF.DoNumClosestMatch || settings.XCSF.InputHigh != 100 {
					t.Errorf("expected num-closest matching and input range, got %+v", settings.XCSF)
				}
				// keys absent from the file keep reference values
				if settings.XCSF.Beta != 0.1 || settings.XCSF.NumClosestMatch != 20 {
					t.Errorf("expected reference values for absent keys, got %+v", settings.XCSF)
				}
			},
		},
		{
			name: "environment overrides YAML",
			yamlContent: `
combiner:
  strategy: "average"
  numForecasts: 3
system:
  metricsPort: 9090
`,
			envOverrides: map[string]string{
				"STRATEGY":     "median",
				"METRICS_PORT": "9191",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Strategy != common.StrategyMedian {
					t.Errorf("expected env strategy median, got %s", settings.Strategy)
				}
				if settings.MetricsPort != 9191 {
					t.Errorf("expected env MetricsPort 9191, got %d", settings.MetricsPort)
				}
				if settings.NumForecasts != 3 {
					t.Errorf("expected YAML NumForecasts 3, got %d", settings.NumForecasts)
				}
			},
		},
		{
			name: "invalid duration",
			yamlContent: `
engine:
  restTimeout: "soon"
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: "combiner: [unterminated",
			wantErr:     true,
		},
		{
			name: "invalid xcsf parameters",
			yamlContent: `
xcsf:
  beta: 2
`,
			wantErr: true,
		},
		{
			name: "invalid xcsf parameters ignored for fallback strategy",
			yamlContent: `
combiner:
  strategy: "average"
xcsf:
  beta: 2
`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)

	_, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_UsesConfigFile(t *testing.T) {
	clearTestEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "combiner:\n  strategy: average\n  numForecasts: 5\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(common.EnvConfigFile, configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Strategy != common.StrategyAverage || settings.NumForecasts != 5 {
		t.Errorf("expected settings from config file, got %+v", settings)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearTestEnv(t)

	// Register restoration, then unset so the file can provide the value.
	t.Setenv(common.EnvSeries, "")
	os.Unsetenv(common.EnvSeries)
	t.Setenv(common.EnvNumForecasts, "6")

	path := filepath.Join(t.TempDir(), ".env")
	content := "SERIES=from-dotenv\nNUM_FORECASTS=3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv(common.EnvSeries); got != "from-dotenv" {
		t.Errorf("expected SERIES from env file, got %q", got)
	}
	if got := os.Getenv(common.EnvNumForecasts); got != "6" {
		t.Errorf("expected existing NUM_FORECASTS to be kept, got %q", got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should not be an error, got %v", err)
	}
}

func TestSettings_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			s := Settings{LogLevel: tt.level}
			if got := s.Level(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		common.EnvConfigFile, common.EnvStrategy, common.EnvNumForecasts, common.EnvSeries,
		common.EnvEngineURL, common.EnvPollInterval, common.EnvRESTTimeout, common.EnvDataPath,
		common.EnvPopulationName, common.EnvWarmStart, common.EnvSaveOnExit, common.EnvMetricsPort,
		common.EnvStreamEvery, common.EnvLogLevel, common.EnvMaxPopSize, common.EnvThetaGA,
		common.EnvSeed, common.EnvInputLow, common.EnvInputHigh,
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
