package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape accepted by --config: a thin, serializable
// projection of bulkfetch.Config covering the options meaningful from a
// file (transform/resolver/jar are wired in code, not YAML).
type fileConfig struct {
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Path         string            `yaml:"path"`
	Gzip         bool              `yaml:"gzip,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	SearchParams map[string]string `yaml:"search_params,omitempty"`

	BatchSize   int  `yaml:"batch_size,omitempty"`
	NoBatch     bool `yaml:"no_batch,omitempty"`
	Concurrency int  `yaml:"concurrency,omitempty"`
	MaxTasks    int  `yaml:"max_tasks,omitempty"`
	DelayMS     int  `yaml:"delay_ms,omitempty"`

	// Retries absent from the file resolves to bulkfetch's own default (3
	// retries); set it to -1 for fire-and-forget.
	Retries             *int `yaml:"retries,omitempty"`
	RetryDelayMS        int  `yaml:"retry_delay_ms,omitempty"`
	UseStaticRetryDelay bool `yaml:"use_static_retry_delay,omitempty"`
	TimeoutMS           int  `yaml:"timeout_ms,omitempty"`

	StoreResponses    *bool  `yaml:"store_responses,omitempty"`
	MaxResponseBuffer int    `yaml:"max_response_buffer,omitempty"`
	DryRun            string `yaml:"dry_run,omitempty"`

	LogFile       string `yaml:"log_file,omitempty"`
	LogFileFormat string `yaml:"log_file_format,omitempty"`
	HistoryDSN    string `yaml:"history_dsn,omitempty"`
}

// defaultFileConfig mirrors Config's own zero-value defaults; the file
// layer adds nothing beyond what Config.withDefaults already resolves.
func defaultFileConfig() *fileConfig {
	return &fileConfig{Method: "POST"}
}

// loadFromFile loads a fileConfig from a YAML file.
func loadFromFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := defaultFileConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *fileConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
