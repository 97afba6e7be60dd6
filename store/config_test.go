package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TableName != "Movies" {
		t.Errorf("expected TableName 'Movies', got %q", cfg.TableName)
	}
	if cfg.Schema != movieSchema {
		t.Errorf("expected movie schema, got %+v", cfg.Schema)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected BatchSize 25, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("expected Concurrency 1, got %d", cfg.Concurrency)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(t *testing.T, c Config)
	}{
		{
			name:  "batch size above store limit",
			input: Config{BatchSize: 100},
			check: func(t *testing.T, c Config) {
				if c.BatchSize != MaxBatchSize {
					t.Errorf("expected BatchSize %d, got %d", MaxBatchSize, c.BatchSize)
				}
			},
		},
		{
			name:  "zero batch size",
			input: Config{BatchSize: 0},
			check: func(t *testing.T, c Config) {
				if c.BatchSize != MaxBatchSize {
					t.Errorf("expected BatchSize %d, got %d", MaxBatchSize, c.BatchSize)
				}
			},
		},
		{
			name:  "small batch size kept",
			input: Config{BatchSize: 5},
			check: func(t *testing.T, c Config) {
				if c.BatchSize != 5 {
					t.Errorf("expected BatchSize 5, got %d", c.BatchSize)
				}
			},
		},
		{
			name:  "negative retries",
			input: Config{MaxRetries: -1},
			check: func(t *testing.T, c Config) {
				if c.MaxRetries != 0 {
					t.Errorf("expected MaxRetries 0, got %d", c.MaxRetries)
				}
			},
		},
		{
			name:  "too many retries",
			input: Config{MaxRetries: 50},
			check: func(t *testing.T, c Config) {
				if c.MaxRetries != 10 {
					t.Errorf("expected MaxRetries 10, got %d", c.MaxRetries)
				}
			},
		},
		{
			name:  "durations default",
			input: Config{},
			check: func(t *testing.T, c Config) {
				if c.InitialBackoff != 50*time.Millisecond {
					t.Errorf("expected InitialBackoff 50ms, got %v", c.InitialBackoff)
				}
				if c.MaxBackoff != 50*time.Millisecond {
					t.Errorf("expected MaxBackoff raised to InitialBackoff, got %v", c.MaxBackoff)
				}
				if c.Timeout != 10*time.Second {
					t.Errorf("expected Timeout 10s, got %v", c.Timeout)
				}
			},
		},
		{
			name:  "concurrency clamped",
			input: Config{Concurrency: 64},
			check: func(t *testing.T, c Config) {
				if c.Concurrency != 16 {
					t.Errorf("expected Concurrency 16, got %d", c.Concurrency)
				}
			},
		},
		{
			name:  "on-demand capacity kept",
			input: Config{ReadCapacity: 0, WriteCapacity: 0},
			check: func(t *testing.T, c Config) {
				if c.ReadCapacity != 0 || c.WriteCapacity != 0 {
					t.Errorf("expected zero capacities, got %d/%d", c.ReadCapacity, c.WriteCapacity)
				}
			},
		},
		{
			name:  "negative capacity",
			input: Config{ReadCapacity: -5, WriteCapacity: 3},
			check: func(t *testing.T, c Config) {
				if c.ReadCapacity != 10 || c.WriteCapacity != 3 {
					t.Errorf("expected 10/3, got %d/%d", c.ReadCapacity, c.WriteCapacity)
				}
			},
		},
		{
			name:  "empty table name",
			input: Config{},
			check: func(t *testing.T, c Config) {
				if c.TableName != "Movies" {
					t.Errorf("expected TableName 'Movies', got %q", c.TableName)
				}
				if c.ListLimit != 100 {
					t.Errorf("expected ListLimit 100, got %d", c.ListLimit)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.input
			c.validate()
			tt.check(t, c)
		})
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
tableName: Users
schema:
  partitionKey:
    name: id
    type: S
  sortKey:
    name: ""
batchSize: 10
maxRetries: 0
initialBackoff: 100ms
maxBackoff: 2s
timeout: 30s
concurrency: 4
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TableName != "Users" {
		t.Errorf("expected TableName 'Users', got %q", cfg.TableName)
	}
	if cfg.Schema.PartitionKey != (KeyDef{Name: "id", Type: KeyTypeString}) {
		t.Errorf("unexpected partition key %+v", cfg.Schema.PartitionKey)
	}
	if cfg.Schema.HasSortKey() {
		t.Errorf("expected no sort key, got %+v", cfg.Schema.SortKey)
	}
	if cfg.BatchSize != 10 || cfg.MaxRetries != 0 || cfg.Concurrency != 4 {
		t.Errorf("unexpected sizes %d/%d/%d", cfg.BatchSize, cfg.MaxRetries, cfg.Concurrency)
	}
	if cfg.InitialBackoff != 100*time.Millisecond || cfg.MaxBackoff != 2*time.Second || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected durations %v/%v/%v", cfg.InitialBackoff, cfg.MaxBackoff, cfg.Timeout)
	}
	if cfg.ListLimit != 100 {
		t.Errorf("expected ListLimit default 100, got %d", cfg.ListLimit)
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	if _, err := ParseConfig([]byte("tableNmae: typo\n")); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := ParseConfig([]byte("timeout: soon\n")); err == nil {
		t.Error("expected error for bad duration")
	}

	_, err := ParseConfig([]byte("schema:\n  partitionKey:\n    name: id\n    type: B\n"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unsupported key type, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	if err := os.WriteFile(path, []byte("tableName: Films\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TableName != "Films" {
		t.Errorf("expected TableName 'Films', got %q", cfg.TableName)
	}
	if cfg.BatchSize != MaxBatchSize {
		t.Errorf("expected default BatchSize, got %d", cfg.BatchSize)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
