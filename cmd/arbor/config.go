package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/arbor/dynamo"
	"github.com/jacentio/arbor/store"
)

const configFilename = "arbor.yaml"

// FileConfig is the arbor.yaml layout.
type FileConfig struct {
	// Table configures the target table and batch writes.
	Table store.Config `yaml:"table"`

	// DynamoDB selects the endpoint and credentials when no local store is used.
	DynamoDB dynamo.ClientConfig `yaml:"dynamodb"`

	// LocalPath stores data in a badger directory instead of DynamoDB.
	LocalPath string `yaml:"localPath"`

	// LogLevel is one of debug, info, warn, error.
	// Default: warn
	LogLevel string `yaml:"logLevel"`
}

func defaultFileConfig() FileConfig {
	return FileConfig{Table: store.DefaultConfig(), LogLevel: "warn"}
}

// loadFileConfig reads path, or arbor.yaml found by walking up from the
// working directory when path is empty. A missing arbor.yaml is not an error.
func loadFileConfig(path string) (FileConfig, error) {
	cfg := defaultFileConfig()

	if path == "" {
		path = findConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides file settings from ARBOR_* environment variables.
func (c *FileConfig) applyEnv(getenv func(string) string) {
	if v := getenv("ARBOR_TABLE"); v != "" {
		c.Table.TableName = v
	}
	if v := getenv("ARBOR_ENDPOINT"); v != "" {
		c.DynamoDB.Endpoint = v
	}
	if v := getenv("ARBOR_REGION"); v != "" {
		c.DynamoDB.Region = v
	}
	if v := getenv("ARBOR_LOCAL_PATH"); v != "" {
		c.LocalPath = v
	}
}

// findConfigFile searches for arbor.yaml walking up from the current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFilename)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
