package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmorgan81/genserve/internal/accel"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const EnvPrefix = "GENSERVE"

type Server struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Debug       bool          `mapstructure:"debug"`
	CORS        []string      `mapstructure:"cors"`
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Capability struct {
	Backend     string `mapstructure:"backend"`
	Name        string `mapstructure:"name"`
	Endpoint    string `mapstructure:"endpoint"`
	APIKey      string `mapstructure:"api_key"`
	APIKeyParam string `mapstructure:"api_key_param"`
	Model       string `mapstructure:"model"`
	MaxPixels   int    `mapstructure:"max_pixels"`

	// Generation calls never time out; only health probes do.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	LoadTimeout   time.Duration `mapstructure:"load_timeout"`
}

type Admission struct {
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

type Accelerators struct {
	Source    string         `mapstructure:"source"`
	NvidiaSMI string         `mapstructure:"nvidia_smi"`
	Devices   []accel.Device `mapstructure:"devices"`
}

type Archive struct {
	Backend      string `mapstructure:"backend"`
	Dir          string `mapstructure:"dir"`
	Bucket       string `mapstructure:"bucket"`
	Distribution string `mapstructure:"distribution"`
	BaseURL      string `mapstructure:"base_url"`
	Title        string `mapstructure:"title"`
}

type Config struct {
	Server       Server       `mapstructure:"server"`
	Log          Log          `mapstructure:"log"`
	Capability   Capability   `mapstructure:"capability"`
	Admission    Admission    `mapstructure:"admission"`
	Accelerators Accelerators `mapstructure:"accelerators"`
	Archive      Archive      `mapstructure:"archive"`
}

var (
	capabilityBackends  = []string{"noise", "upstream", "dezgo"}
	acceleratorSources  = []string{"none", "static", "nvidia-smi", "upstream"}
	archiveBackends     = []string{"none", "file", "s3"}
	errUnknownSelection = errors.New("unknown value")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors", []string{})

	v.SetDefault("log.level", "info")

	v.SetDefault("capability.backend", "noise")
	v.SetDefault("capability.name", "Qwen/Qwen-Image")
	v.SetDefault("capability.endpoint", "")
	v.SetDefault("capability.api_key", "")
	v.SetDefault("capability.api_key_param", "")
	v.SetDefault("capability.model", "")
	v.SetDefault("capability.health_timeout", 10*time.Second)
	v.SetDefault("capability.load_timeout", 30*time.Minute)
	v.SetDefault("capability.max_pixels", 2048*2048)

	v.SetDefault("admission.max_concurrent", 0)

	v.SetDefault("accelerators.source", "none")
	v.SetDefault("accelerators.nvidia_smi", "nvidia-smi")
	v.SetDefault("accelerators.devices", []accel.Device{})

	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.dir", "archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.distribution", "")
	v.SetDefault("archive.base_url", "")
	v.SetDefault("archive.title", "genserve")
}

// Load reads an optional YAML file and GENSERVE_* environment variables, env
// winning, on top of the defaults. Nested keys map to env vars with
// underscores, e.g. GENSERVE_CAPABILITY_BACKEND.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	check := func(key, value string, allowed []string) error {
		if !lo.Contains(allowed, value) {
			return fmt.Errorf("%s %q: %w (want one of %s)", key, value, errUnknownSelection, strings.Join(allowed, ", "))
		}
		return nil
	}

	var errs []error
	errs = append(errs,
		check("capability.backend", c.Capability.Backend, capabilityBackends),
		check("accelerators.source", c.Accelerators.Source, acceleratorSources),
		check("archive.backend", c.Archive.Backend, archiveBackends),
	)

	if c.Capability.Backend == "upstream" && c.Capability.Endpoint == "" {
		errs = append(errs, errors.New("capability.endpoint is required for the upstream backend"))
	}
	if c.Accelerators.Source == "upstream" && c.Capability.Endpoint == "" {
		errs = append(errs, errors.New("capability.endpoint is required for upstream accelerators"))
	}
	if c.Capability.Backend == "dezgo" && c.Capability.APIKey == "" && c.Capability.APIKeyParam == "" {
		errs = append(errs, errors.New("capability.api_key or capability.api_key_param is required for the dezgo backend"))
	}
	if c.Archive.Backend == "s3" && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket is required for the s3 archive"))
	}
	if c.Admission.MaxConcurrent < 0 {
		errs = append(errs, errors.New("admission.max_concurrent must not be negative"))
	}
	return errors.Join(errs...)
}
