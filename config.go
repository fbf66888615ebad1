package eventreg

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override read by LoadConfig.
const EnvPrefix = "EVENTREG_"

// Config describes a Loop, a Bus over it, and their logger.
type Config struct {
	Loop LoopConfig `yaml:"loop" envPrefix:"LOOP_"`
	Bus  BusConfig  `yaml:"bus" envPrefix:"BUS_"`
	Log  LogConfig  `yaml:"log" envPrefix:"LOG_"`
}

// LoopConfig configures the Loop built by Config.NewLoop.
type LoopConfig struct {
	Name      string `yaml:"name" env:"NAME"`
	QueueSize int    `yaml:"queue_size" env:"QUEUE_SIZE"`
	Manual    bool   `yaml:"manual" env:"MANUAL"`
}

// BusConfig configures the options returned by Config.BusOptions.
type BusConfig struct {
	// PostTimeout bounds a post waiting for queue space. Zero waits forever.
	PostTimeout time.Duration `yaml:"post_timeout" env:"POST_TIMEOUT"`
	// Codec is "json" or "yaml".
	Codec string `yaml:"codec" env:"CODEC"`
}

// LogConfig configures the logger built by Config.NewLogger.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Loop: LoopConfig{
			Name:      "event_loop",
			QueueSize: defaultQueueSize,
		},
		Bus: BusConfig{
			Codec: "json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig builds a Config from the defaults, then the YAML file at path
// (skipped when path is empty), then environment variables prefixed with
// EnvPrefix. Variables from the dotenv files fill in anything the process
// environment does not set; the process environment is never modified.
func LoadConfig(path string, dotenv ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("eventreg: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("eventreg: parse config %s: %w", path, err)
		}
	}

	environ := make(map[string]string)
	if len(dotenv) > 0 {
		vars, err := godotenv.Read(dotenv...)
		if err != nil {
			return nil, fmt.Errorf("eventreg: read dotenv: %w", err)
		}
		for k, v := range vars {
			environ[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("eventreg: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	const op = "config"
	if c.Loop.QueueSize <= 0 {
		return &ArgumentError{Op: op, Arg: "loop.queue_size", Reason: fmt.Sprintf("must be positive, got %d", c.Loop.QueueSize)}
	}
	if c.Bus.PostTimeout < 0 {
		return &ArgumentError{Op: op, Arg: "bus.post_timeout", Reason: "must not be negative"}
	}
	if _, err := c.codec(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return &ArgumentError{Op: op, Arg: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	return nil
}

func (c *Config) codec() (Codec, error) {
	switch strings.ToLower(c.Bus.Codec) {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	}
	return nil, &ArgumentError{Op: "config", Arg: "bus.codec", Reason: fmt.Sprintf("unknown codec %q", c.Bus.Codec)}
}

// NewLogger returns a JSON logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) (*Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return NewLogger(w, level), nil
}

// NewLoop creates the configured Loop.
func (c *Config) NewLoop(logger *Logger) (*Loop, error) {
	opts := []LoopOption{
		WithLoopName(c.Loop.Name),
		WithQueueSize(c.Loop.QueueSize),
		WithLoopLogger(logger),
	}
	if c.Loop.Manual {
		opts = append(opts, WithManualDispatch())
	}
	return NewLoop(opts...)
}

// BusOptions returns the options for a Bus matching c.
func (c *Config) BusOptions(logger *Logger) ([]Option, error) {
	codec, err := c.codec()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithCodec(codec),
		WithPostTimeout(c.Bus.PostTimeout),
		WithLogger(logger),
	}, nil
}
