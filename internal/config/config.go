package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// Accelerometer hardware
	SPIDevice string // spireg name, empty for the first available port
	CSPin     string
	LEDPin    string // empty disables the indicator output

	// Timing
	SampleInterval      int // milliseconds
	DetectRetryInterval int // milliseconds
	LogInterval         int // cycles between roll/pitch log lines, 0 disables

	// Filter and classifier
	FilterLength int
	FullScale    float64 // raw Z counts at 1g
	SitThreshold float64 // degrees
	LieThreshold float64 // degrees

	// Text output
	OutputSerialPort string // empty writes to stdout
	OutputBaudRate   int

	// MQTT
	MQTTBroker          string // empty disables publishing
	MQTTClientIDMonitor string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicTilt    string
	TopicPosture string

	// Metrics and web
	MetricsAddr       string // empty disables the monitor metrics endpoint
	WebServerPort     int
	RegisterDebugPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Calibration
	CalibrationSamples int
	CalibrationDir     string
}

// DisplayI2CAddr is the only SSD1306 address ssd1306.NewI2C can reach.
const DisplayI2CAddr = 0x3C

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		CSPin:                 "GPIO8",
		SampleInterval:        100,
		DetectRetryInterval:   200,
		LogInterval:           0,
		FilterLength:          20,
		FullScale:             17694,
		SitThreshold:          45,
		LieThreshold:          30,
		OutputBaudRate:        115200,
		MQTTClientIDMonitor:   "posture-monitor",
		MQTTClientIDConsole:   "posture-console",
		MQTTClientIDWeb:       "posture-web",
		MQTTClientIDDisplay:   "posture-display",
		TopicTilt:             "posture/tilt",
		TopicPosture:          "posture/state",
		WebServerPort:         8080,
		RegisterDebugPort:     8081,
		DisplayI2CAddr:        DisplayI2CAddr,
		DisplayUpdateInterval: 200,
		CalibrationSamples:    100,
		CalibrationDir:        "./calibration",
	}
}

// Load reads a configuration file. Files ending in .yaml or .yml are parsed
// as a YAML mapping of the same keys; anything else as KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return loadYAML(configPath)
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(configPath string) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cfg := Default()
	for _, k := range keys {
		if err := cfg.setValue(k, strings.TrimSpace(values[k])); err != nil {
			return nil, fmt.Errorf("config key %s: %w", k, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Accelerometer hardware
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "CS_PIN":
		c.CSPin = value
	case "LED_PIN":
		c.LEDPin = value

	// Timing
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parseInt(key, value)
	case "DETECT_RETRY_INTERVAL":
		c.DetectRetryInterval, err = parseInt(key, value)
	case "LOG_INTERVAL":
		c.LogInterval, err = parseInt(key, value)

	// Filter and classifier
	case "FILTER_LENGTH":
		c.FilterLength, err = parseInt(key, value)
	case "FULL_SCALE":
		c.FullScale, err = parseFloat(key, value)
	case "SIT_THRESHOLD":
		c.SitThreshold, err = parseFloat(key, value)
	case "LIE_THRESHOLD":
		c.LieThreshold, err = parseFloat(key, value)

	// Text output
	case "OUTPUT_SERIAL_PORT":
		c.OutputSerialPort = value
	case "OUTPUT_BAUD_RATE":
		c.OutputBaudRate, err = parseInt(key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TILT":
		c.TopicTilt = value
	case "TOPIC_POSTURE":
		c.TopicPosture = value

	// Metrics and web
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	// Calibration
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)
	case "CALIBRATION_DIR":
		c.CalibrationDir = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.CSPin == "" {
		return fmt.Errorf("CS_PIN is required")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive, got %d", c.SampleInterval)
	}
	if c.DetectRetryInterval <= 0 {
		return fmt.Errorf("DETECT_RETRY_INTERVAL must be positive, got %d", c.DetectRetryInterval)
	}
	if c.LogInterval < 0 {
		return fmt.Errorf("LOG_INTERVAL must not be negative, got %d", c.LogInterval)
	}
	if c.FilterLength < 1 {
		return fmt.Errorf("FILTER_LENGTH must be at least 1, got %d", c.FilterLength)
	}
	if c.FullScale == 0 {
		return fmt.Errorf("FULL_SCALE must not be zero")
	}
	if c.LieThreshold > c.SitThreshold {
		return fmt.Errorf("LIE_THRESHOLD (%.2f) must not exceed SIT_THRESHOLD (%.2f)", c.LieThreshold, c.SitThreshold)
	}
	if c.OutputSerialPort != "" && c.OutputBaudRate <= 0 {
		return fmt.Errorf("OUTPUT_BAUD_RATE is required with OUTPUT_SERIAL_PORT")
	}
	if c.MQTTBroker != "" && (c.TopicTilt == "" || c.TopicPosture == "") {
		return fmt.Errorf("TOPIC_TILT and TOPIC_POSTURE are required with MQTT_BROKER")
	}
	if c.DisplayI2CAddr != DisplayI2CAddr {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be %#x, got %#x", DisplayI2CAddr, c.DisplayI2CAddr)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	if c.CalibrationSamples < 1 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be at least 1, got %d", c.CalibrationSamples)
	}
	return nil
}

// SampleEvery is the sampling period.
func (c *Config) SampleEvery() time.Duration {
	return time.Duration(c.SampleInterval) * time.Millisecond
}

// DetectRetryEvery is the pause between failed detection attempts.
func (c *Config) DetectRetryEvery() time.Duration {
	return time.Duration(c.DetectRetryInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// InitGlobalDefault initializes the global configuration with Default when
// no file is available.
func InitGlobalDefault() {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig = Default()
	})
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
