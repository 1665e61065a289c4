// Package sink implements the output sink collaborator: writing the
// retained responses to a file in JSON, NDJSON, or CSV format, plus an
// optional Redis-backed durable archive of the same responses.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Format selects the file sink's encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCSV    Format = "csv"
)

// WriteFile writes responses to path in the requested format. It is
// handed the retained responses at termination and serializes them.
func WriteFile(path string, format Format, responses []any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	switch format {
	case FormatNDJSON:
		enc := json.NewEncoder(f)
		for _, r := range responses {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encoding NDJSON response: %w", err)
			}
		}
		return nil
	case FormatCSV:
		return writeCSV(f, responses)
	default:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(responses)
	}
}

func writeCSV(f *os.File, responses []any) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"index", "status", "url", "method", "body"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, r := range responses {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling CSV row: %w", err)
		}
		status, url, method := extractFields(r)
		if err := w.Write([]string{strconv.Itoa(i), status, url, method, string(data)}); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	return nil
}

func extractFields(r any) (status, url, method string) {
	m, ok := r.(map[string]any)
	if !ok {
		return "", "", ""
	}
	if v, ok := m["status"]; ok {
		status = fmt.Sprint(v)
	}
	if v, ok := m["url"]; ok {
		url = fmt.Sprint(v)
	}
	if v, ok := m["method"]; ok {
		method = fmt.Sprint(v)
	}
	return
}

// RedisArchive durably archives responses to a Redis list with LPush. A
// run pushes the responses still retained at termination; entries evicted
// from the in-memory ring during the run are not archived.
type RedisArchive struct {
	client *redis.Client
	key    string
}

// NewRedisArchive connects to redisURL and returns an archive writing to
// key (default "bulkfetch:responses").
func NewRedisArchive(ctx context.Context, redisURL, key string) (*RedisArchive, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if key == "" {
		key = "bulkfetch:responses"
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisArchive{client: client, key: key}, nil
}

// Push archives one response. Errors are expected to be logged and
// swallowed by the caller: auxiliary sinks never abort the run or alter
// counters.
func (a *RedisArchive) Push(ctx context.Context, response any) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshaling response for archive: %w", err)
	}
	if err := a.client.LPush(ctx, a.key, data).Err(); err != nil {
		return fmt.Errorf("archiving response to redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (a *RedisArchive) Close() error { return a.client.Close() }
