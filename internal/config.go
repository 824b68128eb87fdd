package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "2s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Qdrant   QdrantConfig      `yaml:"qdrant"`
	Embedder EmbedderConfig    `yaml:"embedder"`
	Chunking ChunkingConfig    `yaml:"chunking"`
	Search   SearchConfig      `yaml:"search"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Qdrant.Validate(); err != nil {
		return err
	}
	if err := c.Embedder.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the watched vault directory and watcher tuning.
type VaultConfig struct {
	Path          string   `yaml:"path"`
	Extensions    []string `yaml:"extensions"`
	DebounceDelay Duration `yaml:"debounce_delay"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Required),
		validation.Field(&c.DebounceDelay, validation.Required, validation.Min(Duration(1))),
	)
}

// QdrantConfig holds the vector store connection and collection names.
type QdrantConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ChunkCollection string `yaml:"chunk_collection"`
	LinkCollection  string `yaml:"link_collection"`
}

// Validate validates the Qdrant configuration.
func (c *QdrantConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ChunkCollection, validation.Required),
		validation.Field(&c.LinkCollection, validation.Required),
	)
}

// EmbedderConfig holds the embedding provider endpoint.
type EmbedderConfig struct {
	Host       string   `yaml:"host"`
	Model      string   `yaml:"model"`
	Dimensions int      `yaml:"dimensions"`
	Timeout    Duration `yaml:"timeout"`
}

// Validate validates the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(Duration(1))),
	)
}

// ChunkingConfig holds chunk sizing parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Size, validation.Required, validation.Min(1)),
		validation.Field(&c.Overlap, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunking: overlap (%d) must be smaller than size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// SearchConfig holds retrieval defaults and bounds.
type SearchConfig struct {
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	TopKDefault         int     `yaml:"top_k_default"`
	TopKMax             int     `yaml:"top_k_max"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TopKDefault, validation.Required, validation.Min(1)),
		validation.Field(&c.TopKMax, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.TopKDefault > c.TopKMax {
		return fmt.Errorf("search: top_k_default (%d) exceeds top_k_max (%d)", c.TopKDefault, c.TopKMax)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("search: similarity_threshold must be in [0,1], got %v", c.SimilarityThreshold)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:          "./vault",
			Extensions:    []string{".md"},
			DebounceDelay: Duration(2 * time.Second),
		},
		Qdrant: QdrantConfig{
			Host:            "localhost",
			Port:            6334,
			ChunkCollection: "vault_chunks",
			LinkCollection:  "vault_links",
		},
		Embedder: EmbedderConfig{
			Host:       "http://localhost:11434",
			Model:      "all-minilm",
			Dimensions: 384,
			Timeout:    Duration(30 * time.Second),
		},
		Chunking: ChunkingConfig{
			Size:    512,
			Overlap: 128,
		},
		Search: SearchConfig{
			SimilarityThreshold: 0.3,
			TopKDefault:         5,
			TopKMax:             20,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
