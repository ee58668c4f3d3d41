// Package config provides shared configuration functionality using Viper
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ShellConfig struct {
	Port     int    `mapstructure:"port"`
	Hostname string `mapstructure:"hostname"`
}

type WorkerConfig struct {
	// Path is resolved against the shell's install directory when relative.
	Path         string        `mapstructure:"path"`
	Args         []string      `mapstructure:"args"`
	Env          []string      `mapstructure:"env"`
	Dir          string        `mapstructure:"dir"`
	GrpcPort     int           `mapstructure:"grpc_port"`
	DialHost     string        `mapstructure:"dial_host"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

type BridgeConfig struct {
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
	// ExtractTimeout of zero leaves extraction calls without a deadline.
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
}

type WorkerServiceConfig struct {
	Port     int    `mapstructure:"port"`
	Hostname string `mapstructure:"hostname"`
}

// Config holds common configuration values shared across all services
type Config struct {
	// Basic configuration
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	Shell  ShellConfig         `mapstructure:"shell"`
	Worker WorkerConfig        `mapstructure:"worker"`
	Bridge BridgeConfig        `mapstructure:"bridge"`
	Serve  WorkerServiceConfig `mapstructure:"serve"`
}

func setShellDefaults(v *viper.Viper) {
	v.SetDefault("shell.port", 8090)
	v.SetDefault("shell.hostname", "127.0.0.1")
}

func setWorkerDefaults(v *viper.Viper) {
	v.SetDefault("worker.path", "structview-worker")
	v.SetDefault("worker.args", []string{})
	v.SetDefault("worker.env", []string{})
	v.SetDefault("worker.dir", "")
	v.SetDefault("worker.grpc_port", 0)
	v.SetDefault("worker.dial_host", "127.0.0.1")
	v.SetDefault("worker.ready_timeout", 10*time.Second)
	v.SetDefault("worker.stop_timeout", 5*time.Second)
}

func setBridgeDefaults(v *viper.Viper) {
	v.SetDefault("bridge.ping_timeout", 3*time.Second)
	v.SetDefault("bridge.extract_timeout", 30*time.Second)
}

func setServeDefaults(v *viper.Viper) {
	// Honour the variable the worker has always read its port from.
	v.SetDefault("serve.port", 0)
	v.SetDefault("serve.hostname", "")
	_ = v.BindEnv("serve.port", "GRPC_PORT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	setShellDefaults(v)
	setWorkerDefaults(v)
	setBridgeDefaults(v)
	setServeDefaults(v)
}

func ConfigureViper(v *viper.Viper) {
	// Config can also come from env variables with a `STRUCTVIEW_` prefix
	v.SetEnvPrefix("STRUCTVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigName("config")
	v.AddConfigPath(".")
}

func init() {
	ConfigureViper(viper.GetViper())
}

// Load loads shared configuration using the global Viper instance.
func Load(configPath string, overrideStr string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath, overrideStr)
}

// LoadWith loads configuration into v with defaults, an optional config file
// and an optional override string of comma-separated key:value pairs.
func LoadWith(v *viper.Viper, configPath string, overrideStr string) (*Config, error) {
	setDefaults(v)

	// If a custom config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	err := v.ReadInConfig()
	if err != nil {
		// Ignore file not found errors (config is optional)
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("read config file %q: %w", v.ConfigFileUsed(), err)
		}
		slog.Info("No config file found, using defaults")
	} else {
		slog.Info("Loaded config file", "path", v.ConfigFileUsed())
	}

	// Process override flag if provided (after loading config to ensure highest precedence)
	if overrideStr != "" {
		pairs := strings.Split(overrideStr, ",")
		for _, pair := range pairs {
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("invalid override %q: expected key:value", pair)
			}
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the shell cannot run with.
func (c *Config) Validate() error {
	if c.Worker.Path == "" {
		return errors.New("worker.path must not be empty")
	}
	if c.Worker.GrpcPort < 0 || c.Worker.GrpcPort > 65535 {
		return fmt.Errorf("worker.grpc_port %d out of range", c.Worker.GrpcPort)
	}
	if c.Bridge.PingTimeout <= 0 {
		return fmt.Errorf("bridge.ping_timeout must be positive, got %s", c.Bridge.PingTimeout)
	}
	if c.Bridge.ExtractTimeout < 0 {
		return fmt.Errorf("bridge.extract_timeout must not be negative, got %s", c.Bridge.ExtractTimeout)
	}
	return nil
}

// BindFlags binds pflags to viper keys. bindFlags is a map of pflag names to viper keys.
func BindFlags(bindFlags map[string]string) error {
	return BindFlagSet(viper.GetViper(), pflag.CommandLine, bindFlags)
}

func BindFlagSet(v *viper.Viper, fs *pflag.FlagSet, bindFlags map[string]string) error {
	for flagName, viperKey := range bindFlags {
		flag := fs.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", flagName)
		}
		if err := v.BindPFlag(viperKey, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", flagName, err)
		}
	}
	return nil
}
