// Package config loads facegate's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/facegate/internal/types"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given. It may be absent.
const DefaultPath = "facegate.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Display     DisplayConfig     `yaml:"display"`
	Database    DatabaseConfig    `yaml:"database"`
	Status      StatusConfig      `yaml:"status"`
	Log         LogConfig         `yaml:"log"`
}

type CameraConfig struct {
	// Device is a numeric device index or a file path / stream URL.
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Size returns the frame normalization size.
func (c CameraConfig) Size() types.Size {
	return types.Size{Width: c.Width, Height: c.Height}
}

type RecognitionConfig struct {
	Threshold float64 `yaml:"threshold"`
	Workers   int     `yaml:"workers"`
	QueueSize int     `yaml:"queue_size"`
	Cascade   string  `yaml:"cascade"`
	Model     string  `yaml:"model"`
}

const (
	CorpusDir      = "dir"
	CorpusPostgres = "postgres"
)

type CorpusConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
}

const (
	ActuatorSerial  = "serial"
	ActuatorWebhook = "webhook"
	ActuatorNone    = "none"
)

type ActuatorConfig struct {
	Kind          string        `yaml:"kind"`
	Port          string        `yaml:"port"`
	Baud          int           `yaml:"baud"`
	URL           string        `yaml:"url"`
	Command       string        `yaml:"command"`
	Settle        time.Duration `yaml:"settle"`
	Timeout       time.Duration `yaml:"timeout"`
	EdgeTriggered bool          `yaml:"edge_triggered"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Window  string `yaml:"window"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	// RecordEvents writes every dispatched signal to access_events.
	RecordEvents bool   `yaml:"record_events"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Device: "0", Width: 640, Height: 480},
		Recognition: RecognitionConfig{
			Threshold: 0.4,
			Workers:   1,
			QueueSize: 32,
			Cascade:   "models/haarcascade_frontalface_default.xml",
			Model:     "models/nn4.small2.v1.t7",
		},
		Corpus: CorpusConfig{Source: CorpusDir, Path: "saved_faces"},
		Actuator: ActuatorConfig{
			Kind:    ActuatorSerial,
			Port:    "/dev/ttyUSB0",
			Baud:    9600,
			Command: "OPEN",
			Settle:  2 * time.Second,
			Timeout: 2 * time.Second,
		},
		Display: DisplayConfig{Enabled: true, Window: "Face Recognition"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values the pipeline cannot run without. It returns
// warnings for values it corrected in place.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	if c.Recognition.Threshold <= 0 || c.Recognition.Threshold > 2 {
		return nil, fmt.Errorf("%w: recognition.threshold must be in (0, 2], got %v", ErrInvalid, c.Recognition.Threshold)
	}
	if c.Recognition.Workers < 1 {
		warnings = append(warnings, fmt.Sprintf("recognition.workers=%d, using 1", c.Recognition.Workers))
		c.Recognition.Workers = 1
	}
	if c.Recognition.QueueSize < 1 {
		warnings = append(warnings, fmt.Sprintf("recognition.queue_size=%d, using 1", c.Recognition.QueueSize))
		c.Recognition.QueueSize = 1
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return nil, fmt.Errorf("%w: camera size must be positive, got %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}
	if strings.TrimSpace(c.Camera.Device) == "" {
		return nil, fmt.Errorf("%w: camera.device must be set", ErrInvalid)
	}

	switch c.Corpus.Source {
	case CorpusDir:
		if strings.TrimSpace(c.Corpus.Path) == "" {
			return nil, fmt.Errorf("%w: corpus.path must be set for the dir source", ErrInvalid)
		}
	case CorpusPostgres:
	default:
		return nil, fmt.Errorf("%w: corpus.source must be %q or %q, got %q", ErrInvalid, CorpusDir, CorpusPostgres, c.Corpus.Source)
	}

	switch c.Actuator.Kind {
	case ActuatorSerial:
		if c.Actuator.Baud <= 0 {
			return nil, fmt.Errorf("%w: actuator.baud must be positive", ErrInvalid)
		}
	case ActuatorWebhook:
		if strings.TrimSpace(c.Actuator.URL) == "" {
			return nil, fmt.Errorf("%w: actuator.url must be set for the webhook actuator", ErrInvalid)
		}
	case ActuatorNone:
	default:
		return nil, fmt.Errorf("%w: actuator.kind must be serial, webhook or none, got %q", ErrInvalid, c.Actuator.Kind)
	}
	if c.Actuator.Command == "" {
		return nil, fmt.Errorf("%w: actuator.command must not be empty", ErrInvalid)
	}
	if c.Actuator.Settle < 0 || c.Actuator.Timeout < 0 {
		return nil, fmt.Errorf("%w: actuator durations must not be negative", ErrInvalid)
	}

	return warnings, nil
}

// DatabaseURL returns database.url, or a connection string built from the
// POSTGRES_* environment variables, or the local default.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return "postgres://localhost:5432/facegate"
}
