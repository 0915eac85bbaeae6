// Package config loads the bridge's configuration from an optional YAML
// file and CLI flags, flags always taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the bridge's full runtime configuration.
type Config struct {
	Listener struct {
		Addr    string `yaml:"addr"`
		Port    int    `yaml:"port"`
		Backlog int    `yaml:"backlog"`
	} `yaml:"listener"`

	Collector struct {
		Addr string `yaml:"addr"`
		Port int    `yaml:"port"`
	} `yaml:"collector"`

	Repeaters []string `yaml:"repeaters"`

	Filter string `yaml:"filter"`

	SocketBufferSize int `yaml:"socket_buffer_size"`

	Archive struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"archive"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration's documented defaults: listener
// 0.0.0.0:10000/backlog 5, collector 127.0.0.1:9995, info logging.
func Default() Config {
	var c Config
	c.Listener.Addr = "0.0.0.0"
	c.Listener.Port = 10000
	c.Listener.Backlog = 5
	c.Collector.Addr = "127.0.0.1"
	c.Collector.Port = 9995
	c.Archive.PoolSize = 4
	c.LogLevel = "info"
	return c
}

// Load reads path as YAML on top of Default(). An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr renders the listener bind as a dial-ready "host:port" string.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Listener.Addr, c.Listener.Port)
}

// CollectorAddr renders the collector address as a dial-ready "host:port"
// string.
func (c Config) CollectorAddr() string {
	return fmt.Sprintf("%s:%d", c.Collector.Addr, c.Collector.Port)
}

// ParseRepeaterFlag parses one -R host/port flag value into a dial-ready
// "host:port" string, applying the documented defaults (127.0.0.1:10001)
// for whichever half is empty.
func ParseRepeaterFlag(spec string) string {
	host, port := "127.0.0.1", "10001"
	if spec != "" {
		parts := strings.SplitN(spec, "/", 2)
		if parts[0] != "" {
			host = parts[0]
		}
		if len(parts) == 2 && parts[1] != "" {
			port = parts[1]
		}
	}
	return host + ":" + port
}
