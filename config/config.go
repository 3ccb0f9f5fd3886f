// Package config loads an outcall deployment from YAML and turns it into
// client options: providers, retry policy, cache store and codec, rate limits
// and logging.
//
//	providers:
//	  - name: alchemy
//	    url: https://eth-mainnet.example/v2/${ALCHEMY_KEY}
//	    timeout: 5s
//	  - name: public
//	    url: wss://rpc.example
//	    transport: ws
//	    rateLimit: {rps: 5}
//	retry: {maxAttempts: 4, maxElapsed: 8s}
//	multi: {perCallTimeout: 3s, threshold: 2}
//	cache: {store: ristretto, codec: cbor, ttl: 12s}
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Retry     RetryConfig      `yaml:"retry"`
	Multi     MultiConfig      `yaml:"multi"`
	Cache     CacheConfig      `yaml:"cache"`
	Log       LogConfig        `yaml:"log"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	// ResponseBytesLimit caps response budget doubling.
	ResponseBytesLimit int64 `yaml:"responseBytesLimit"`
}

type ProviderConfig struct {
	Name             string            `yaml:"name"`
	URL              string            `yaml:"url"`
	Transport        string            `yaml:"transport"` // http (default) | ws
	Headers          map[string]string `yaml:"headers"`
	Timeout          time.Duration     `yaml:"timeout"`
	MaxResponseBytes int64             `yaml:"maxResponseBytes"`
	RateLimit        RateLimitConfig   `yaml:"rateLimit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	MaxElapsed     time.Duration `yaml:"maxElapsed"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
	Multiplier     float64       `yaml:"multiplier"`
	Jitter         *float64      `yaml:"jitter"`
}

type MultiConfig struct {
	PerCallTimeout time.Duration `yaml:"perCallTimeout"`
	Deadline       time.Duration `yaml:"deadline"`
	Threshold      int           `yaml:"threshold"` // 0 = all providers must agree
}

type CacheConfig struct {
	Store     string        `yaml:"store"` // "" disables the cache | memory | ristretto | bigcache | redis
	Codec     string        `yaml:"codec"` // json (default) | cbor | msgpack
	TTL       time.Duration `yaml:"ttl"`
	Methods   []string      `yaml:"methods"`
	Prefix    string        `yaml:"prefix"`
	LogEvents bool          `yaml:"logEvents"`

	MaxEntries int    `yaml:"maxEntries"` // memory, bigcache
	MaxBytes   int64  `yaml:"maxBytes"`   // ristretto, bigcache
	RedisURL   string `yaml:"redisURL"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap (default) | logrus | slog
	Level   string `yaml:"level"`   // debug | info (default) | warn | error
	Format  string `yaml:"format"`  // json (default) | console
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Load reads, expands and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Transport == "" {
			p.Transport = TransportHTTP
			if strings.HasPrefix(p.URL, "ws://") || strings.HasPrefix(p.URL, "wss://") {
				p.Transport = TransportWS
			}
		}
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "outcall"
	}
	if c.Log.Backend == "" {
		c.Log.Backend = "zap"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider is required"))
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: url is required", i))
		}
		if p.Transport != TransportHTTP && p.Transport != TransportWS {
			errs = append(errs, fmt.Errorf("providers[%d]: unknown transport %q", i, p.Transport))
		}
	}
	if c.Multi.Threshold < 0 || c.Multi.Threshold > len(c.Providers) {
		errs = append(errs, fmt.Errorf("multi.threshold %d outside [0,%d]", c.Multi.Threshold, len(c.Providers)))
	}
	switch c.Cache.Store {
	case "", StoreMemory, StoreRistretto, StoreBigcache:
	case StoreRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redisURL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.store: unknown store %q", c.Cache.Store))
	}
	switch c.Log.Backend {
	case "zap", "logrus", "slog":
	default:
		errs = append(errs, fmt.Errorf("log.backend: unknown backend %q", c.Log.Backend))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (p ProviderConfig) header() http.Header {
	if len(p.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(p.Headers))
	for k, v := range p.Headers {
		h.Set(k, v)
	}
	return h
}
