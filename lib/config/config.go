// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "PRIVBRIDGE_CONFIG"

// Config is the master configuration for privbridge.
type Config struct {
	// Elevation configures how the privileged server is launched.
	Elevation ElevationConfig `yaml:"elevation"`

	// Endpoint configures where the channel endpoint is created.
	Endpoint EndpointConfig `yaml:"endpoint"`

	// Startup configures the readiness wait.
	Startup StartupConfig `yaml:"startup"`
}

// ElevationConfig configures the elevation tool and the server program
// it runs.
type ElevationConfig struct {
	// Tool is the elevation tool, resolved on PATH.
	// Default: sudo
	Tool string `yaml:"tool"`

	// ToolOptions are passed to the tool before the server command,
	// for example ["-n"] to forbid password prompts.
	ToolOptions []string `yaml:"tool_options"`

	// Interpreter runs ServerProgram when set. Empty means
	// ServerProgram is executed directly.
	Interpreter string `yaml:"interpreter"`

	// LibraryPath is passed to the interpreter as -I<path>. Only used
	// with Interpreter.
	LibraryPath string `yaml:"library_path"`

	// InterpreterOptions follow the interpreter on the command line.
	InterpreterOptions []string `yaml:"interpreter_options"`

	// ServerProgram is the privileged server binary or script.
	// Default: privbridge-server (found in PATH)
	ServerProgram string `yaml:"server_program"`

	// ServerDigest, when set, pins the hex BLAKE3 digest the server
	// program must have (see privbridge digest).
	ServerDigest string `yaml:"server_digest"`

	// Env holds extra KEY=VALUE entries for the launched process.
	Env []string `yaml:"env"`
}

// EndpointConfig configures the channel endpoint.
type EndpointConfig struct {
	// Directory holds endpoint sockets.
	// Default: os.TempDir()
	Directory string `yaml:"directory"`

	// Prefix starts every endpoint name.
	// Default: privbridge
	Prefix string `yaml:"prefix"`
}

// StartupConfig configures how long to wait for the server to bind.
type StartupConfig struct {
	// Timeout bounds the wait for the endpoint to appear.
	// Default: 1s
	Timeout Duration `yaml:"timeout"`

	// PollInterval is the pause between endpoint checks.
	// Default: 10ms
	PollInterval Duration `yaml:"poll_interval"`
}

// Duration is a time.Duration written in YAML as a Go duration string
// ("1s", "250ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the default configuration. It is the base the
// config file is merged into.
func Default() *Config {
	return &Config{
		Elevation: ElevationConfig{
			Tool:          "sudo",
			ServerProgram: "privbridge-server",
		},
		Endpoint: EndpointConfig{
			Directory: os.TempDir(),
			Prefix:    "privbridge",
		},
		Startup: StartupConfig{
			Timeout:      Duration(time.Second),
			PollInterval: Duration(10 * time.Millisecond),
		},
	}
}

// Load loads configuration from the PRIVBRIDGE_CONFIG environment
// variable. If it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your privbridge.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// [Default], with path variables expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.ExpandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. LoadFile calls it; callers building a Config from Default
// call it themselves.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME":   os.Getenv("HOME"),
		"TMPDIR": os.Getenv("TMPDIR"),
	}
	c.Elevation.ServerProgram = expandVars(c.Elevation.ServerProgram, vars)
	c.Elevation.Interpreter = expandVars(c.Elevation.Interpreter, vars)
	c.Elevation.LibraryPath = expandVars(c.Elevation.LibraryPath, vars)
	c.Endpoint.Directory = expandVars(c.Endpoint.Directory, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Elevation.Tool == "" {
		errs = append(errs, fmt.Errorf("elevation.tool is required"))
	}
	if c.Elevation.ServerProgram == "" {
		errs = append(errs, fmt.Errorf("elevation.server_program is required"))
	}
	if c.Elevation.LibraryPath != "" && c.Elevation.Interpreter == "" {
		errs = append(errs, fmt.Errorf("elevation.library_path requires elevation.interpreter"))
	}
	if c.Elevation.ServerDigest != "" && !isHexDigest(c.Elevation.ServerDigest) {
		errs = append(errs, fmt.Errorf("elevation.server_digest must be 64 hex characters"))
	}
	for _, entry := range c.Elevation.Env {
		if !strings.Contains(entry, "=") {
			errs = append(errs, fmt.Errorf("elevation.env entry %q is not KEY=VALUE", entry))
		}
	}

	if c.Endpoint.Directory == "" {
		errs = append(errs, fmt.Errorf("endpoint.directory is required"))
	} else if !filepath.IsAbs(c.Endpoint.Directory) {
		errs = append(errs, fmt.Errorf("endpoint.directory %q must be absolute", c.Endpoint.Directory))
	}
	if c.Endpoint.Prefix == "" || strings.ContainsRune(c.Endpoint.Prefix, filepath.Separator) {
		errs = append(errs, fmt.Errorf("endpoint.prefix must be a non-empty name without %q", filepath.Separator))
	}

	if c.Startup.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("startup.timeout must be positive"))
	}
	if c.Startup.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("startup.poll_interval must be positive"))
	} else if c.Startup.PollInterval > c.Startup.Timeout {
		errs = append(errs, fmt.Errorf("startup.poll_interval must not exceed startup.timeout"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
