package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"bcstcp/pkg/connection"
)

// ServerConf 目标命令服务器
type ServerConf struct {
	Host    string        `ini:"host"`
	Port    int           `ini:"port"`
	Timeout time.Duration `ini:"timeout"`
}

// ScanConf controls WaitForScan.
type ScanConf struct {
	PollInterval  time.Duration `ini:"poll_interval"`
	MaxIterations int           `ini:"max_iterations"`
}

type LogConf struct {
	Level string `ini:"level"`
}

type Config struct {
	ServerConf `ini:"server"`
	ScanConf   `ini:"scan"`
	LogConf    `ini:"log"`
}

func Default() *Config {
	return &Config{
		ServerConf: ServerConf{
			Host:    "127.0.0.1",
			Port:    8888,
			Timeout: 5 * time.Second,
		},
		ScanConf: ScanConf{
			PollInterval:  connection.DefaultPollInterval,
			MaxIterations: connection.DefaultMaxIterations,
		},
		LogConf: LogConf{
			Level: "info",
		},
	}
}

// Load returns the defaults overlaid with fileName (if non-empty) and the
// BCS_* environment variables.
func Load(fileName string) (*Config, error) {
	cfg := Default()
	if fileName == "" {
		overrideFromEnv(cfg)
		return cfg, nil
	}
	if err := LoadIni(cfg, fileName); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIni maps fileName onto cfg. Keys missing from the file keep their
// current values.
func LoadIni(cfg *Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return errors.Wrapf(err, "load config %s", fileName)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return errors.Wrapf(err, "map config %s", fileName)
	}
	overrideFromEnv(cfg)
	return nil
}

func (c ServerConf) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("BCS_HOST"); v != "" {
		cfg.Host = v
	}
	overrideFromEnvInt(&cfg.Port, "BCS_PORT")
	overrideFromEnvDuration(&cfg.Timeout, "BCS_TIMEOUT")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvDuration(target *time.Duration, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if d, err := time.ParseDuration(envValue); err == nil {
			*target = d
		}
	}
}
