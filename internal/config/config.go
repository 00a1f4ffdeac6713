// Package config provides configuration types, defaults, and persistence for aipq.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/query"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/sqlgen"
)

// DefaultKeyInfo is the HKDF info string used when deriving a page token key
// from a secret.
const DefaultKeyInfo = "aipq/pagetoken"

// Config holds all aipq configuration.
type Config struct {
	// SchemaFile is the YAML schema descriptor for the resource being queried.
	SchemaFile string            `mapstructure:"schema_file"`
	Dialect    string            `mapstructure:"dialect"`
	Rename     map[string]string `mapstructure:"rename"`
	Query      QueryConfig       `mapstructure:"query"`
	PageToken  PageTokenConfig   `mapstructure:"page_token"`
	Log        LogConfig         `mapstructure:"log"`
}

// QueryConfig bounds list and search requests.
type QueryConfig struct {
	MaxPageSize     int32 `mapstructure:"max_page_size"`
	DefaultPageSize int32 `mapstructure:"default_page_size"`
	// PrimaryOrderingTerm is a single "name [asc|desc]" term appended to every
	// ordering, e.g. "task.id asc".
	PrimaryOrderingTerm string        `mapstructure:"primary_ordering_term"`
	MaxFilterLength     int           `mapstructure:"max_filter_length"`
	MaxOrderingLength   int           `mapstructure:"max_ordering_length"`
	MaxQueryLength      int           `mapstructure:"max_query_length"`
	MaxDepth            int           `mapstructure:"max_depth"`
	PageTokenTTL        time.Duration `mapstructure:"page_token_ttl"`
	ParseCacheTTL       time.Duration `mapstructure:"parse_cache_ttl"`
	// ParseCacheSliding restarts an entry's TTL on every hit.
	ParseCacheSliding   bool     `mapstructure:"parse_cache_sliding"`
	SearchFields        []string `mapstructure:"search_fields"`
	CaseInsensitiveLike bool     `mapstructure:"case_insensitive_like"`
}

// PageTokenConfig selects the page token codec and its key material.
type PageTokenConfig struct {
	Strategy string `mapstructure:"strategy"`
	URLSafe  bool   `mapstructure:"url_safe"`
	// Key is a hex encoded 32-byte AES key. It takes precedence over Secret.
	Key string `mapstructure:"key"`
	// Secret is stretched into an AES key with HKDF-SHA256.
	Secret         string `mapstructure:"secret"`
	KeyInfo        string `mapstructure:"key_info"`
	PublicKeyFile  string `mapstructure:"public_key_file"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
}

// LogConfig controls CLI logging. An empty File logs to stderr.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Dialect: "postgres",
		Query: QueryConfig{
			MaxPageSize:       100,
			DefaultPageSize:   query.DefaultPageSize,
			MaxFilterLength:   2048,
			MaxOrderingLength: 512,
			MaxQueryLength:    256,
			MaxDepth:          32,
			ParseCacheTTL:     10 * time.Minute,
			ParseCacheSliding: true,
		},
		PageToken: PageTokenConfig{
			Strategy: string(pagetoken.StrategyBase64),
			URLSafe:  true,
			KeyInfo:  DefaultKeyInfo,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks every section and returns the first problem found.
func (c Config) Validate() error {
	if _, err := sqlgen.ParseDialect(c.Dialect); err != nil {
		return fmt.Errorf("dialect: %w", err)
	}
	if err := ValidateRename(c.Rename); err != nil {
		return err
	}
	if _, err := c.Query.Builder(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if _, err := pagetoken.ParseStrategy(c.PageToken.Strategy); err != nil {
		return fmt.Errorf("page_token: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// ValidateRename checks that every rename key is a dotted path and every
// target a single identifier.
func ValidateRename(rename map[string]string) error {
	for from, to := range rename {
		if from == "" || strings.HasPrefix(from, ".") || strings.HasSuffix(from, ".") || strings.Contains(from, "..") {
			return fmt.Errorf("rename: invalid path %q", from)
		}
		if to == "" || strings.Contains(to, ".") {
			return fmt.Errorf("rename %q: target %q must be a single non-empty name", from, to)
		}
	}
	return nil
}

// RenameMap returns the configured renames.
func (c Config) RenameMap() schema.RenameMap {
	return schema.RenameMap(c.Rename)
}

// LoadSchema reads the configured schema descriptor.
func (c Config) LoadSchema() (*schema.Schema, error) {
	if c.SchemaFile == "" {
		return nil, errors.New("schema_file is not set")
	}
	return schema.Load(c.SchemaFile)
}

// Builder converts the query section into builder limits.
func (q QueryConfig) Builder() (query.Config, error) {
	cfg := query.Config{
		MaxPageSize:       q.MaxPageSize,
		DefaultPageSize:   q.DefaultPageSize,
		MaxFilterLength:   q.MaxFilterLength,
		MaxOrderingLength: q.MaxOrderingLength,
		MaxQueryLength:    q.MaxQueryLength,
		MaxDepth:          q.MaxDepth,
		PageTokenTTL:      q.PageTokenTTL,
	}
	if q.PageTokenTTL < 0 {
		return cfg, fmt.Errorf("page_token_ttl %s is negative", q.PageTokenTTL)
	}
	if q.ParseCacheTTL < 0 {
		return cfg, fmt.Errorf("parse_cache_ttl %s is negative", q.ParseCacheTTL)
	}
	if strings.TrimSpace(q.PrimaryOrderingTerm) != "" {
		o, err := ordering.Parse(q.PrimaryOrderingTerm)
		if err != nil {
			return cfg, fmt.Errorf("primary_ordering_term: %w", err)
		}
		if len(o) != 1 {
			return cfg, fmt.Errorf("primary_ordering_term %q must be a single term", q.PrimaryOrderingTerm)
		}
		cfg.PrimaryOrderingTerm = &o[0]
	}
	return cfg, nil
}

// Codec builds the configured page token codec, reading key material from
// the config or from the referenced PEM files.
func (p PageTokenConfig) Codec() (pagetoken.Codec, error) {
	strategy, err := pagetoken.ParseStrategy(p.Strategy)
	if err != nil {
		return nil, err
	}
	opts := pagetoken.Options{Strategy: strategy, URLSafe: p.URLSafe}

	switch strategy {
	case pagetoken.StrategyAES256GCM:
		opts.Key, err = p.aesKey()
		if err != nil {
			return nil, err
		}
	case pagetoken.StrategyRSA:
		if p.PrivateKeyFile == "" && p.PublicKeyFile == "" {
			return nil, errors.New("rsa strategy needs private_key_file or public_key_file")
		}
		if p.PrivateKeyFile != "" {
			data, err := os.ReadFile(p.PrivateKeyFile) //nolint:gosec // G304: key path comes from config
			if err != nil {
				return nil, fmt.Errorf("reading private key: %w", err)
			}
			if opts.PrivateKey, err = pagetoken.ParseRSAPrivateKeyPEM(data); err != nil {
				return nil, err
			}
		}
		if p.PublicKeyFile != "" {
			data, err := os.ReadFile(p.PublicKeyFile) //nolint:gosec // G304: key path comes from config
			if err != nil {
				return nil, fmt.Errorf("reading public key: %w", err)
			}
			if opts.PublicKey, err = pagetoken.ParseRSAPublicKeyPEM(data); err != nil {
				return nil, err
			}
		}
	}

	codec, err := pagetoken.New(opts)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatConfig, "Page token codec ready", "strategy", strategy, "url_safe", p.URLSafe)
	return codec, nil
}

func (p PageTokenConfig) aesKey() ([]byte, error) {
	if p.Key != "" {
		key, err := hex.DecodeString(p.Key)
		if err != nil {
			return nil, fmt.Errorf("decoding page token key: %w", err)
		}
		if len(key) != pagetoken.KeySize {
			return nil, fmt.Errorf("page token key must be %d bytes, got %d", pagetoken.KeySize, len(key))
		}
		return key, nil
	}
	if p.Secret == "" {
		return nil, errors.New("aes256gcm strategy needs key or secret")
	}
	info := p.KeyInfo
	if info == "" {
		info = DefaultKeyInfo
	}
	return pagetoken.DeriveKey([]byte(p.Secret), info)
}

// DefaultConfigTemplate returns the default config as YAML with comments.
func DefaultConfigTemplate() string {
	return `# aipq configuration

# YAML schema descriptor listing the fields that may be filtered and ordered.
# schema_file: schema.yaml

# SQL dialect for the sql command: postgres, mysql or sqlite
dialect: postgres

# Physical names for schema path prefixes.
# rename:
#   user: u
#   task.userId: user_id

query:
  max_page_size: 100
  default_page_size: 20
  # Appended to every ordering so pages never overlap.
  # primary_ordering_term: id asc
  max_filter_length: 2048
  max_ordering_length: 512
  max_query_length: 256
  max_depth: 32
  # Reject page tokens older than this (0 disables).
  page_token_ttl: 0s
  parse_cache_ttl: 10m
  # Keep frequently used filters cached by restarting their TTL on each hit.
  parse_cache_sliding: true
  # Fields matched by free-text search queries.
  # search_fields: [title, description]
  case_insensitive_like: false

page_token:
  # plain, base64, aes256gcm or rsa
  strategy: base64
  url_safe: true
  # aes256gcm: a hex encoded 32-byte key, or a secret stretched with HKDF.
  # The secret is best supplied through AIPQ_PAGE_TOKEN_SECRET.
  # key: ""
  # secret: ""
  key_info: aipq/pagetoken
  # rsa: PEM files written by "aipq keygen --strategy rsa".
  # private_key_file: pagetoken.pem
  # public_key_file: pagetoken.pub.pem

log:
  enabled: false
  level: info
  # file: aipq.log
`
}

// WriteDefaultConfig creates a config file with default settings.
// Creates parent directories if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
