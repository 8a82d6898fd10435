/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srediag/sumipc/internal/logging"
	"github.com/srediag/sumipc/pkg/worker"
)

// ErrInvalidConfig wraps every VerifyConfig failure.
var ErrInvalidConfig = errors.New("controller: invalid config")

// Prompt modes.
const (
	PromptAuto = "auto"
	PromptOn   = "on"
	PromptOff  = "off"
)

// DefaultWorker is the worker executable looked up next to the controller,
// then in PATH.
const DefaultWorker = "sumipc-worker"

// Config is the controller configuration. It can be read from YAML; flags
// that were set explicitly override the file.
type Config struct {
	// Worker is the worker executable.
	Worker string `yaml:"worker"`
	// Transport is "shm" or "pipe".
	Transport string `yaml:"transport"`
	// LogFile is handed to the worker. Empty means ask on stdin.
	LogFile string `yaml:"log_file"`
	// HealthAddr enables the health server when not empty.
	HealthAddr string `yaml:"health_addr"`
	// LogLevel is a logging level, 0 (trace) to 5 (silent).
	LogLevel int `yaml:"log_level"`
	// Prompt is auto, on or off. Auto shows prompts when stdin is a terminal.
	Prompt string `yaml:"prompt"`
	// CreateRetries bounds retries after an IPC name collision.
	CreateRetries uint64 `yaml:"create_retries"`
	// RetryInterval is the pause between those retries.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// DefaultConfig returns the default controller config.
func DefaultConfig() Config {
	return Config{
		Worker:        defaultWorker(),
		Transport:     worker.TransportShm,
		LogLevel:      logging.LevelWarn,
		Prompt:        PromptAuto,
		CreateRetries: 3,
		RetryInterval: 10 * time.Millisecond,
	}
}

func defaultWorker() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), DefaultWorker)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return DefaultWorker
}

// VerifyConfig checks the values that do not depend on the environment.
func VerifyConfig(c Config) error {
	if c.Worker == "" {
		return fmt.Errorf("%w: worker is empty", ErrInvalidConfig)
	}
	if c.Transport != worker.TransportShm && c.Transport != worker.TransportPipe {
		return fmt.Errorf("%w: transport %q is neither %s nor %s", ErrInvalidConfig, c.Transport, worker.TransportShm, worker.TransportPipe)
	}
	if c.LogLevel < logging.LevelTrace || c.LogLevel > logging.LevelNoPrint {
		return fmt.Errorf("%w: log level %d out of range", ErrInvalidConfig, c.LogLevel)
	}
	switch c.Prompt {
	case PromptAuto, PromptOn, PromptOff:
	default:
		return fmt.Errorf("%w: prompt %q is not auto, on or off", ErrInvalidConfig, c.Prompt)
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("%w: negative retry interval", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("controller: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return c, nil
}
