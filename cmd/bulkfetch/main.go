// Command bulkfetch runs a single delivery job from a YAML configuration
// file or flags, printing the resulting run summary.
//
// # Usage
//
//	bulkfetch --config job.yaml
//	bulkfetch --url https://api.example.com/ingest --path records.ndjson
//
// # Configuration
//
// Configuration can be provided via:
//   - A YAML config file (--config)
//   - Command-line flags, which override the file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	bulkfetch "github.com/pilot-net/bulkfetch"
)

const version = "0.1.0"

// unsetRetries is the --retries flag's default, distinct from -1 (the
// fire-and-forget marker itself) so "flag not passed" and "flag passed as
// -1" remain distinguishable.
const unsetRetries = -2

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file")
		url         = flag.String("url", "", "Target URL")
		path        = flag.String("path", "", "Path to a JSON array or NDJSON source file")
		method      = flag.String("method", "", "HTTP method")
		batchSize   = flag.Int("batch-size", 0, "Records per batch")
		concurrency = flag.Int("concurrency", 0, "Max batches in flight")
		retries     = flag.Int("retries", unsetRetries, "Max retry attempts (-1 = fire and forget; omit to default to 3)")
		dryRun      = flag.String("dry-run", "", "Dry run mode: \"\", \"curl\", or \"true\"")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bulkfetch %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var fc *fileConfig
	if *configFile != "" {
		loaded, err := loadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
		fc = loaded
	} else {
		fc = defaultFileConfig()
	}

	if *url != "" {
		fc.URL = *url
	}
	if *path != "" {
		fc.Path = *path
	}
	if *method != "" {
		fc.Method = *method
	}
	if *batchSize != 0 {
		fc.BatchSize = *batchSize
	}
	if *concurrency != 0 {
		fc.Concurrency = *concurrency
	}
	if *retries != unsetRetries {
		fc.Retries = bulkfetch.Retries(*retries)
	}
	if *dryRun != "" {
		fc.DryRun = *dryRun
	}

	if err := fc.validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	cfg := bulkfetch.Config{
		URL:             fc.URL,
		Method:          fc.Method,
		Path:            fc.Path,
		Gzip:            fc.Gzip,
		Headers:         fc.Headers,
		SearchParams:    fc.SearchParams,
		BatchSize:       fc.BatchSize,
		NoBatch:         fc.NoBatch,
		Concurrency:     fc.Concurrency,
		MaxTasks:        fc.MaxTasks,
		DelayBetweenMS:  fc.DelayMS,
		Retries:         fc.Retries,
		RetryDelayMS:    fc.RetryDelayMS,
		UseStaticRetryDelay: fc.UseStaticRetryDelay,
		TimeoutMS:       fc.TimeoutMS,
		StoreResponses:  fc.StoreResponses,
		MaxResponseBuffer: fc.MaxResponseBuffer,
		DryRun:          bulkfetch.DryRun(fc.DryRun),
		Logger:          logger,
		LogFile:         fc.LogFile,
		LogFileFormat:   fc.LogFileFormat,
		HistoryDSN:      fc.HistoryDSN,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting bulkfetch run", "url", cfg.URL, "path", cfg.Path)

	summary, err := bulkfetch.Run(ctx, cfg)
	if err != nil {
		logger.Error("run finished with error", "error", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if err != nil {
		os.Exit(1)
	}
}
