package stix

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Source is a location the raw dataset can be read from.
type Source interface {
	// Open returns a reader over the raw (possibly compressed) dataset.
	Open(ctx context.Context) (io.ReadCloser, error)

	// String identifies the source in logs and errors.
	String() string
}

// FileSource reads the dataset from the local filesystem.
type FileSource struct {
	Path string
}

// Open opens the dataset file.
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Path == "" {
		return nil, errors.New("dataset path is empty")
	}
	return os.Open(s.Path)
}

func (s FileSource) String() string {
	return "file://" + s.Path
}

// DefaultRedisKey is the key datasets are published under when none is configured.
const DefaultRedisKey = "attackkb:dataset"

// RedisOptions configures a RedisSource.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL string

	// Key holds the raw dataset bytes. Default: DefaultRedisKey
	Key string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout bounds reads; datasets are tens of megabytes so the
	// default is generous.
	ReadTimeout time.Duration
}

// RedisSource reads the dataset from a single Redis string key. A sync job
// (or `attack-kb dataset push`) publishes the bundle there so that many
// replicas can start from the same snapshot without a shared filesystem.
type RedisSource struct {
	client *redis.Client
	url    string
	key    string
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(opts RedisOptions) (*RedisSource, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSource{client: client, url: opts.URL, key: opts.Key}, nil
}

// Open fetches the dataset bytes. A missing key is reported as os.ErrNotExist
// so it reads the same as a missing file.
func (s *RedisSource) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis key %s: %w", s.key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read redis key %s: %w", s.key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Publish stores raw dataset bytes under the source key, replacing any
// previous snapshot.
func (s *RedisSource) Publish(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write redis key %s: %w", s.key, err)
	}
	return nil
}

// Key returns the Redis key the dataset is stored under.
func (s *RedisSource) Key() string {
	return s.key
}

func (s *RedisSource) String() string {
	return fmt.Sprintf("%s#%s", s.url, s.key)
}

// Close closes the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
