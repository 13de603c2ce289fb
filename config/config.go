package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"ragchain/internal/domain"
)

// Config holds all configuration for ragchain.
type Config struct {
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	HyDE      HyDEConfig      `yaml:"hyde"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Linker    LinkerConfig    `yaml:"linker"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int           `yaml:"top_k" validate:"gt=0"`
	Backend           string        `yaml:"backend" validate:"oneof=bm25 semantic hybrid"`
	RRFK              int           `yaml:"rrf_k"`
	BM25Weight        float64       `yaml:"bm25_weight" validate:"gte=0,lte=1"`
	MinScoreThreshold float64       `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
	CacheSize         int           `yaml:"cache_size"`          // 0 disables the query cache
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// HyDEConfig configures the hypothetical-passage query rewriter.
type HyDEConfig struct {
	Enabled      bool          `yaml:"enabled"`
	SystemPrompt string        `yaml:"system_prompt"` // empty = built-in prompt
	Model        string        `yaml:"model" validate:"required_if=Enabled true"`
	BaseURL      string        `yaml:"base_url"` // alternate OpenAI-compatible endpoint
	APIKeyEnv    string        `yaml:"api_key_env"`
	Temperature  *float64      `yaml:"temperature,omitempty"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Type      string `yaml:"type" validate:"required"` // embedding family, e.g. "openai", "kosimcse"
	Device    string `yaml:"device"`                   // cpu, mps, cuda; anything else means cuda
	Model     string `yaml:"model"`                    // overrides the family's model
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// LinkerConfig holds the passage linker store configuration.
type LinkerConfig struct {
	Backend     string        `yaml:"backend" validate:"oneof=redis bolt memory"`
	Host        string        `yaml:"host" validate:"required_if=Backend redis"`
	Port        int           `yaml:"port" validate:"required_if=Backend redis,gte=0,lte=65535"`
	DB          *int          `yaml:"db" validate:"required_if=Backend redis"`
	Password    string        `yaml:"password"`
	JSONModule  bool          `yaml:"json_module"` // use RedisJSON commands instead of plain strings
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	PoolSize    int           `yaml:"pool_size"`
	Path        string        `yaml:"path"` // bolt backend file, default .ragchain/linker.db
}

// Addr returns host:port for network backends.
func (l LinkerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// IngestConfig holds passage ingestion configuration.
type IngestConfig struct {
	Includes       []string `yaml:"includes"`
	Excludes       []string `yaml:"excludes"`
	PassageTokens  int      `yaml:"passage_tokens" validate:"gt=0"`
	PassageOverlap int      `yaml:"passage_overlap" validate:"gte=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Retrieve: RetrieveConfig{
			TopK:       5,
			Backend:    "bm25",
			RRFK:       60,
			BM25Weight: 0.5,
			CacheTTL:   5 * time.Minute,
		},
		HyDE: HyDEConfig{
			Enabled:   false, // requires an LLM endpoint
			Model:     "gpt-3.5-turbo",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Type:      "openai",
			Device:    "cuda",
			BatchSize: 100,
		},
		Linker: LinkerConfig{
			Backend:     "bolt",
			Port:        6379,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		Ingest: IngestConfig{
			Includes:       []string{"**/*.md", "**/*.txt"},
			Excludes:       []string{"**/.git/**", "**/node_modules/**", "**/.ragchain/**"},
			PassageTokens:  256,
			PassageOverlap: 32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragchain.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragchain.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragchain", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Environment variables recognized for the redis linker.
const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisDB       = "REDIS_DB_NAME"
	EnvRedisPassword = "REDIS_PW"
)

// LoadEnv reads .env files (missing files are ignored) and applies the
// environment overlay to the config.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return c.ApplyEnv()
}

// ApplyEnv overrides linker settings from the process environment.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvRedisHost); ok {
		c.Linker.Host = v
	}
	if v, ok := os.LookupEnv(EnvRedisPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return domain.Configurationf("%s must be a number, got %q", EnvRedisPort, v)
		}
		c.Linker.Port = port
	}
	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return domain.Configurationf("%s must be a number, got %q", EnvRedisDB, v)
		}
		c.Linker.DB = &db
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		c.Linker.Password = v
	}
	return nil
}

var validate = validator.New()

// Validate checks required settings. Failures are domain.ErrConfiguration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewError(domain.KindConfiguration, "validation failed", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			problems = append(problems, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	sort.Strings(problems)
	return domain.Configurationf("%s", strings.Join(problems, "; "))
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".ragchain", "index.db")
}

// LinkerDBPath returns the default path of the bolt linker database.
func LinkerDBPath(dir string) string {
	return filepath.Join(dir, ".ragchain", "linker.db")
}

// EnsureDataDir ensures the .ragchain directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".ragchain"), 0755)
}
