package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Orchestration roles. Each role gets its own model and temperature.
const (
	RoleManager   = "manager"
	RoleArchivist = "archivist"
	RoleAuthor    = "author"
	RoleAuditor   = "auditor"
)

// Deletion confirmation modes for the sync engine
const (
	ConfirmAuto        = "auto"
	ConfirmInteractive = "interactive"
	ConfirmNever       = "never"
)

// Fingerprint modes
const (
	FingerprintSHA256 = "sha256"
	FingerprintMtime  = "mtime"
)

var (
	// ErrUnknownRole is returned when a component asks for a role that is not configured
	ErrUnknownRole = errors.New("unknown orchestration role")
	// ErrInvalidProvider is returned when the provider switch names an unsupported backend
	ErrInvalidProvider = errors.New("invalid completion provider")
)

// Roles lists every role the orchestrator wires.
var Roles = []string{RoleManager, RoleArchivist, RoleAuthor, RoleAuditor}

// RoleConfig selects the model behind one orchestration role
type RoleConfig struct {
	Model       string  `mapstructure:"model" toml:"model"`
	Temperature float64 `mapstructure:"temperature" toml:"temperature"`
}

// Config is the full configuration surface, built once at startup and passed
// into each component at construction.
type Config struct {
	Provider   string                `mapstructure:"provider" toml:"provider"`
	Ollama     OllamaConfig          `mapstructure:"ollama" toml:"ollama"`
	Gemini     GeminiConfig          `mapstructure:"gemini" toml:"gemini"`
	Roles      map[string]RoleConfig `mapstructure:"roles" toml:"roles"`
	LLM        LLMConfig             `mapstructure:"llm" toml:"llm"`
	Embeddings EmbeddingsConfig      `mapstructure:"embeddings" toml:"embeddings"`
	Workflow   WorkflowConfig        `mapstructure:"workflow" toml:"workflow"`
	Retrieval  RetrievalConfig       `mapstructure:"retrieval" toml:"retrieval"`
	Duplicate  DuplicateConfig       `mapstructure:"duplicate" toml:"duplicate"`
	Chunking   ChunkingConfig        `mapstructure:"chunking" toml:"chunking"`
	Corpus     CorpusConfig          `mapstructure:"corpus" toml:"corpus"`
	Sync       SyncConfig            `mapstructure:"sync" toml:"sync"`
	Store      StoreConfig           `mapstructure:"store" toml:"store"`
	Output     OutputConfig          `mapstructure:"output" toml:"output"`
	Publish    PublishConfig         `mapstructure:"publish" toml:"publish"`
}

type OllamaConfig struct {
	URL string `mapstructure:"url" toml:"url"`
}

// GeminiConfig selects the Gemini backend. When Model is set it replaces the
// per-role model names, which default to Ollama tags.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key" toml:"api_key,omitempty"`
	Model  string `mapstructure:"model" toml:"model"`
}

// LLMConfig bounds every completion call
type LLMConfig struct {
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
	Retries int           `mapstructure:"retries" toml:"retries"`
}

type EmbeddingsConfig struct {
	Model string `mapstructure:"model" toml:"model"`
}

// WorkflowConfig controls the orchestrator's guardrail, routing and loop budget
type WorkflowConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts" toml:"max_attempts"`
	MinInputLength    int `mapstructure:"min_input_length" toml:"min_input_length"`
	MinInputWords     int `mapstructure:"min_input_words" toml:"min_input_words"`
	QuestionMaxLength int `mapstructure:"question_max_length" toml:"question_max_length"`
}

type RetrievalConfig struct {
	TopK      int `mapstructure:"top_k" toml:"top_k"`
	CacheSize int `mapstructure:"cache_size" toml:"cache_size"`
}

// DuplicateConfig holds the thresholds of the duplicate-identifier guard
type DuplicateConfig struct {
	MaxIDLength          int  `mapstructure:"max_id_length" toml:"max_id_length"`
	RejectNumericLeading bool `mapstructure:"reject_numeric_leading" toml:"reject_numeric_leading"`
	RequireInContext     bool `mapstructure:"require_in_context" toml:"require_in_context"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size" toml:"size"`
	Overlap int `mapstructure:"overlap" toml:"overlap"`
}

type CorpusConfig struct {
	Roots      []string `mapstructure:"roots" toml:"roots"`
	Extensions []string `mapstructure:"extensions" toml:"extensions"`
}

// SyncConfig controls the incremental sync engine
type SyncConfig struct {
	StateFile     string        `mapstructure:"state_file" toml:"state_file"`
	Fingerprint   string        `mapstructure:"fingerprint" toml:"fingerprint"`
	Confirm       string        `mapstructure:"confirm" toml:"confirm"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" toml:"lock_ttl"`
	LockWait      time.Duration `mapstructure:"lock_wait" toml:"lock_wait"`
	EmbedWorkers  int           `mapstructure:"embed_workers" toml:"embed_workers"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" toml:"watch_debounce"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type OutputConfig struct {
	Dir           string `mapstructure:"dir" toml:"dir"`
	Format        string `mapstructure:"format" toml:"format"`
	RetentionDays int    `mapstructure:"retention_days" toml:"retention_days"`
}

// PublishConfig enables upload of saved artifacts to an S3-compatible bucket.
// Publishing is off while Endpoint or Bucket is empty.
type PublishConfig struct {
	Endpoint  string `mapstructure:"endpoint" toml:"endpoint"`
	Bucket    string `mapstructure:"bucket" toml:"bucket"`
	AccessKey string `mapstructure:"access_key" toml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" toml:"secret_key,omitempty"`
	Secure    bool   `mapstructure:"secure" toml:"secure"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")

	v.SetDefault("roles.manager.model", "ministral-3:14b-cloud")
	v.SetDefault("roles.manager.temperature", 0.1)
	v.SetDefault("roles.archivist.model", "ministral-3:14b-cloud")
	v.SetDefault("roles.archivist.temperature", 0.0)
	v.SetDefault("roles.author.model", "ministral-3:14b-cloud")
	v.SetDefault("roles.author.temperature", 0.7)
	v.SetDefault("roles.auditor.model", "gemma3:27b-cloud")
	v.SetDefault("roles.auditor.temperature", 0.0)

	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.retries", 2)
	v.SetDefault("embeddings.model", "nomic-embed-text")

	v.SetDefault("workflow.max_attempts", 2)
	v.SetDefault("workflow.min_input_length", 10)
	v.SetDefault("workflow.min_input_words", 2)
	v.SetDefault("workflow.question_max_length", 150)

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.cache_size", 256)

	v.SetDefault("duplicate.max_id_length", 20)
	v.SetDefault("duplicate.reject_numeric_leading", true)
	v.SetDefault("duplicate.require_in_context", true)

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("corpus.roots", []string{
		filepath.Join("data", "inputs", "ApplicationDocuments"),
		filepath.Join("data", "inputs", "Existingtestcases"),
	})
	v.SetDefault("corpus.extensions", []string{".txt", ".md", ".csv"})

	v.SetDefault("sync.state_file", filepath.Join("data", "sync_state.json"))
	v.SetDefault("sync.fingerprint", FingerprintSHA256)
	v.SetDefault("sync.confirm", ConfirmInteractive)
	v.SetDefault("sync.lock_ttl", 10*time.Minute)
	v.SetDefault("sync.lock_wait", 30*time.Second)
	v.SetDefault("sync.embed_workers", 4)
	v.SetDefault("sync.watch_debounce", 2*time.Second)

	v.SetDefault("store.path", filepath.Join("data", "index.db"))

	v.SetDefault("output.dir", filepath.Join("data", "outputs"))
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.retention_days", 90)

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.secure", true)
}

// Load unmarshals v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by SetDefaults alone
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		// defaults are static; failing here is a programming error
		panic(err)
	}
	return cfg
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	exts := make([]string, 0, len(c.Corpus.Extensions))
	for _, ext := range c.Corpus.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Corpus.Extensions = exts
	c.Sync.Confirm = strings.ToLower(strings.TrimSpace(c.Sync.Confirm))
	c.Sync.Fingerprint = strings.ToLower(strings.TrimSpace(c.Sync.Fingerprint))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
}

// Validate checks configuration integrity. These are the only errors that are
// fatal at startup.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("%w: %q (must be %s or %s)", ErrInvalidProvider, c.Provider, ProviderOllama, ProviderGemini)
	}
	for _, role := range Roles {
		rc, ok := c.Roles[role]
		if !ok {
			return fmt.Errorf("%w: role %q missing in roles config", ErrUnknownRole, role)
		}
		if strings.TrimSpace(rc.Model) == "" {
			return fmt.Errorf("role %q has no model configured", role)
		}
		if rc.Temperature < 0 || rc.Temperature > 2 {
			return fmt.Errorf("role %q temperature %.2f out of range [0, 2]", role, rc.Temperature)
		}
	}
	if c.Workflow.MaxAttempts < 1 {
		return fmt.Errorf("workflow.max_attempts must be at least 1, got %d", c.Workflow.MaxAttempts)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.LLM.Retries < 1 {
		return fmt.Errorf("llm.retries must be at least 1, got %d", c.LLM.Retries)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.Chunking.Size < 1 {
		return fmt.Errorf("chunking.size must be at least 1, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if len(c.Corpus.Roots) == 0 {
		return fmt.Errorf("corpus.roots must name at least one folder")
	}
	if len(c.Corpus.Extensions) == 0 {
		return fmt.Errorf("corpus.extensions must name at least one extension")
	}
	switch c.Sync.Confirm {
	case ConfirmAuto, ConfirmInteractive, ConfirmNever:
	default:
		return fmt.Errorf("sync.confirm must be auto, interactive or never, got %q", c.Sync.Confirm)
	}
	switch c.Sync.Fingerprint {
	case FingerprintSHA256, FingerprintMtime:
	default:
		return fmt.Errorf("sync.fingerprint must be sha256 or mtime, got %q", c.Sync.Fingerprint)
	}
	switch c.Output.Format {
	case "csv", "json", "yaml":
	default:
		return fmt.Errorf("output.format must be csv, json or yaml, got %q", c.Output.Format)
	}
	return nil
}

// Role returns the model settings for an orchestration role
func (c *Config) Role(name string) (RoleConfig, error) {
	rc, ok := c.Roles[strings.ToLower(name)]
	if !ok {
		known := make([]string, 0, len(c.Roles))
		for k := range c.Roles {
			known = append(known, k)
		}
		sort.Strings(known)
		return RoleConfig{}, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownRole, name, strings.Join(known, ", "))
	}
	return rc, nil
}

// ModelFor resolves the model a role talks to on the active provider
func (c *Config) ModelFor(role string) (RoleConfig, error) {
	rc, err := c.Role(role)
	if err != nil {
		return RoleConfig{}, err
	}
	if c.Provider == ProviderGemini && c.Gemini.Model != "" {
		rc.Model = c.Gemini.Model
	}
	return rc, nil
}

// PublishEnabled reports whether saved artifacts are uploaded
func (c *Config) PublishEnabled() bool {
	return c.Publish.Endpoint != "" && c.Publish.Bucket != ""
}

// ShouldExpire checks if an output file of the given age falls outside retention
func (c *Config) ShouldExpire(age time.Duration) bool {
	if c.Output.RetentionDays <= 0 {
		return false
	}
	return age > time.Duration(c.Output.RetentionDays)*24*time.Hour
}
