package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

type LoopConfig struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Relay     int    `json:"relay"`
	SensorBus string `json:"sensor_bus"`
}

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level
	LogFile    string
	SafeMode   bool

	NVRAMFile   string `json:"nvram_file"`
	HistoryFile string `json:"history_file"`

	Unit    string `json:"unit"` // "C" or "F"
	APIPort int    `json:"api_port"`

	// Relay ids 1-4 mapped to board BCM pins, keyed by id.
	Relays               map[string]int `json:"relays"`
	RelayBoardActiveHigh bool           `json:"relay_board_active_high"`

	Loops []LoopConfig `json:"loops"`

	AmbientBus  string `json:"ambient_bus"` // empty disables ambient sensing
	AmbientAddr uint16 `json:"ambient_addr"`

	MQTTBroker   string `json:"mqtt_broker"`
	MQTTClientID string `json:"mqtt_client_id"`

	DDAgentAddr string   `json:"dd_agent_addr"`
	DDNamespace string   `json:"dd_namespace"`
	DDTags      []string `json:"dd_tags"`
}

func Load() Config {
	// .env overrides are optional; absence is not an error.
	godotenv.Load()

	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", envOr("CONFIG_FILE", "config.json"), "Path to controller config file")
	flag.StringVar(&cfg.LogFile, "log-file", os.Getenv("LOG_FILE"), "Log file path (empty logs to stderr)")
	flag.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.SafeMode, "safe-mode", os.Getenv("SAFE_MODE") == "1", "Disable the relay board system-wide")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

// RelayPins returns the relay map keyed by numeric relay id.
func (cfg *Config) RelayPins() map[int]int {
	pins := make(map[int]int, len(cfg.Relays))
	for key, pin := range cfg.Relays {
		var id int
		fmt.Sscanf(key, "%d", &id)
		pins[id] = pin
	}
	return pins
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.NVRAMFile == "" {
		cfg.NVRAMFile = "data/nvram.db"
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = "data/history.db"
	}
	if cfg.Unit == "" {
		cfg.Unit = string(model.UnitFahrenheit)
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.AmbientAddr == 0 {
		cfg.AmbientAddr = 0x44
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "poolhouse-controller"
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.Unit != string(model.UnitCelsius) && cfg.Unit != string(model.UnitFahrenheit) {
		problems = append(problems, fmt.Sprintf("unit must be C or F, got %q", cfg.Unit))
	}

	usedPins := map[int]string{}
	for id := 1; id <= model.NumRelays; id++ {
		key := fmt.Sprintf("%d", id)
		pin, ok := cfg.Relays[key]
		if !ok {
			problems = append(problems, "missing relay pin for relay "+key)
			continue
		}
		if other, exists := usedPins[pin]; exists {
			problems = append(problems, fmt.Sprintf("relay %s and relay %s both use pin %d", key, other, pin))
		} else {
			usedPins[pin] = key
		}
	}

	if len(cfg.Loops) != 2 {
		problems = append(problems, fmt.Sprintf("exactly 2 loops required, got %d", len(cfg.Loops)))
	}
	for _, lc := range cfg.Loops {
		if lc.ID != string(model.LoopPool) && lc.ID != string(model.LoopSauna) {
			problems = append(problems, fmt.Sprintf("unknown loop id %q", lc.ID))
		}
		if lc.Relay < 1 || lc.Relay >= model.FirstAuxRelay {
			problems = append(problems, fmt.Sprintf("loop %s must own relay 1 or 2, got %d", lc.ID, lc.Relay))
		}
		if lc.SensorBus == "" {
			problems = append(problems, fmt.Sprintf("loop %s has no sensor bus", lc.ID))
		}
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}
