package poolconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ifnotnil/wpool/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables read by Load,
// e.g. WPOOL_MAX_WORKERS.
const EnvPrefix = "WPOOL"

// Config holds the settings of one pool.
type Config struct {
	QueueCapacity   int           `mapstructure:"queue_capacity" yaml:"queue_capacity" validate:"required,gte=1"`
	MinWorkers      int           `mapstructure:"min_workers" yaml:"min_workers" validate:"gte=0,ltefield=MaxWorkers"`
	MaxWorkers      int           `mapstructure:"max_workers" yaml:"max_workers" validate:"required,gte=1"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
	RejectionPolicy string        `mapstructure:"rejection_policy" yaml:"rejection_policy" validate:"oneof=block fail_fast discard_oldest"`
	ShutdownMode    string        `mapstructure:"shutdown_mode" yaml:"shutdown_mode" validate:"oneof=drain immediate"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the settings used for every key that is not configured.
func Default() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		QueueCapacity:   n,
		MinWorkers:      n,
		MaxWorkers:      n,
		IdleTimeout:     time.Minute,
		RejectionPolicy: wpool.BlockCaller.String(),
		ShutdownMode:    wpool.ShutdownModeDrain.String(),
		LogLevel:        "info",
	}
}

// Load reads the configuration from path, when not empty, and from WPOOL_*
// environment variables. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("queue_capacity", d.QueueCapacity)
	v.SetDefault("min_workers", d.MinWorkers)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("idle_timeout", d.IdleTimeout)
	v.SetDefault("rejection_policy", d.RejectionPolicy)
	v.SetDefault("shutdown_mode", d.ShutdownMode)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", wpool.ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Decode parses a YAML document on top of the defaults. Unknown keys are an error.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", wpool.ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode writes c as YAML in the format read by Decode and Load.
func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Validate reports every invalid field, wrapped in wpool.ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", wpool.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", wpool.ErrInvalidConfig, err)
	}
	return nil
}

// Options converts c into pool options.
func (c Config) Options() ([]wpool.Option, error) {
	policy, err := wpool.ParseRejectionPolicy(c.RejectionPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := wpool.ParseShutdownMode(c.ShutdownMode)
	if err != nil {
		return nil, err
	}
	return []wpool.Option{
		wpool.WithQueueCapacity(c.QueueCapacity),
		wpool.WithWorkers(c.MinWorkers, c.MaxWorkers),
		wpool.WithIdleTimeout(c.IdleTimeout),
		wpool.WithRejectionPolicy(policy),
		wpool.WithShutdownMode(mode),
	}, nil
}

// NewPool validates c and creates a pool from it. Extra options are applied last.
func (c Config) NewPool(extra ...wpool.Option) (*wpool.Pool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return wpool.New(append(opts, extra...)...)
}

// NewLogger returns a JSON logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
