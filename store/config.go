package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxBatchSize is the most items the store accepts in one batch write request.
const MaxBatchSize = 25

// Config holds configuration for a Table and its BatchWriter.
type Config struct {
	// TableName is the table every operation targets.
	// Default: "Movies"
	TableName string `yaml:"tableName"`

	// Schema is the table's key schema.
	// Default: partition key "year" (N), sort key "title" (S)
	Schema KeySchema `yaml:"schema"`

	// BatchSize is the number of items sent per batch write request.
	// Default: 25
	// Max: 25
	BatchSize int `yaml:"batchSize"`

	// MaxRetries is how many times unprocessed items are re-submitted.
	// Zero disables retries.
	// Default: 3
	// Max: 10
	MaxRetries int `yaml:"maxRetries"`

	// InitialBackoff is the wait before the first retry of unprocessed items.
	// Default: 50ms
	InitialBackoff time.Duration `yaml:"initialBackoff"`

	// MaxBackoff caps the wait between retries.
	// Default: 5s
	MaxBackoff time.Duration `yaml:"maxBackoff"`

	// Timeout bounds every individual store call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency is the number of batch chunks written in parallel.
	// Default: 1
	// Max: 16
	Concurrency int `yaml:"concurrency"`

	// ListLimit is the most table names ListTables returns.
	// Default: 100
	ListLimit int32 `yaml:"listLimit"`

	// ReadCapacity and WriteCapacity are the provisioned throughput used by CreateTable.
	// Zero for both selects on-demand billing.
	// Default: 10 each
	ReadCapacity  int64 `yaml:"readCapacity"`
	WriteCapacity int64 `yaml:"writeCapacity"`
}

// DefaultConfig returns defaults matching the movies sample table.
func DefaultConfig() Config {
	return Config{
		TableName: "Movies",
		Schema: KeySchema{
			PartitionKey: KeyDef{Name: "year", Type: KeyTypeNumber},
			SortKey:      KeyDef{Name: "title", Type: KeyTypeString},
		},
		BatchSize:      MaxBatchSize,
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Timeout:        10 * time.Second,
		Concurrency:    1,
		ListLimit:      100,
		ReadCapacity:   10,
		WriteCapacity:  10,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig. Unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.validate()
	if err := cfg.Schema.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "Movies"
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 50 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 16 {
		c.Concurrency = 16
	}
	if c.ListLimit < 1 {
		c.ListLimit = 100
	}
	if c.ReadCapacity < 0 {
		c.ReadCapacity = 10
	}
	if c.WriteCapacity < 0 {
		c.WriteCapacity = 10
	}
}
