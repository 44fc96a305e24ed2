// Package config assembles the orchestrator's RuntimeConfig from environment
// variables (spec.md §6.4) and validates it with struct tags, the way
// jordigilh-kubernaut validates its flat config structs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TransportType selects which stream driver the orchestrator dials.
type TransportType string

const (
	TransportRedis TransportType = "redis"
	TransportLocal TransportType = "local"
)

// GitConfig holds git credential and identity settings (spec.md §6.4).
type GitConfig struct {
	Username       string `validate:"-"`
	Password       string `validate:"-"`
	Token          string `validate:"-"`
	SSHKeyPath     string `validate:"-"`
	CredentialsPath string `validate:"-"`
	DefaultBranch  string `validate:"required"`
	UserName       string `validate:"required"`
	UserEmail      string `validate:"required,email"`
}

// PersonaConfig holds per-persona timeout/retry overrides plus the defaults
// applied when a persona has no explicit entry.
type PersonaConfig struct {
	Timeouts            map[string]int  `validate:"-"`
	MaxRetries          map[string]*int `validate:"-"` // nil value == unlimited
	DefaultTimeoutMS    int             `validate:"required,gt=0"`
	DefaultMaxRetries   int             `validate:"gte=0"`
	RetryBackoffIncrMS  int             `validate:"gte=0"`
	AllowedPersonas     []string        `validate:"-"`
}

// RuntimeConfig is the full set of process-wide, dependency-injected
// settings (spec.md §9: "replace [global state] with explicit dependency
// injection — a RuntimeConfig value, a Transport handle, and a Clock").
type RuntimeConfig struct {
	ProjectBase          string        `validate:"required"`
	DefaultRepoName       string        `validate:"-"`
	AllowWorkspaceGit     bool          `validate:"-"`

	Git GitConfig `validate:"required"`

	TransportType  TransportType `validate:"required,oneof=redis local"`
	BrokerURL      string        `validate:"-"`
	RequestStream  string        `validate:"required"`
	EventStream    string        `validate:"required"`
	GroupPrefix    string        `validate:"required"`
	ConsumerID     string        `validate:"required"`

	Persona PersonaConfig `validate:"required"`

	SkipPersonaOperations bool `validate:"-"`
	SkipGitOperations     bool `validate:"-"`

	DashboardBaseURL string `validate:"required,url"`
}

var validate = validator.New()

// Validate runs struct-tag validation over the whole config tree.
func (c *RuntimeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid runtime config: %w", err)
	}
	return nil
}

// Load builds a RuntimeConfig purely from environment variables, applying
// the same kind of defaulting every processor/*/config.go DefaultConfig()
// does in the teacher repo.
func Load() (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{
		ProjectBase:       getenv("PROJECT_BASE", "/var/lib/orchestrator/repos"),
		DefaultRepoName:   os.Getenv("DEFAULT_REPO_NAME"),
		AllowWorkspaceGit: getenvBool("ALLOW_WORKSPACE_GIT", false),

		Git: GitConfig{
			Username:        os.Getenv("GIT_USERNAME"),
			Password:        os.Getenv("GIT_PASSWORD"),
			Token:           os.Getenv("GIT_TOKEN"),
			SSHKeyPath:      os.Getenv("GIT_SSH_KEY_PATH"),
			CredentialsPath: getenv("GIT_CREDENTIALS_PATH", "/var/lib/orchestrator/.git-credentials"),
			DefaultBranch:   getenv("GIT_DEFAULT_BRANCH", "main"),
			UserName:        getenv("GIT_USER_NAME", "orchestrator-bot"),
			UserEmail:       getenv("GIT_USER_EMAIL", "orchestrator-bot@example.invalid"),
		},

		TransportType: TransportType(getenv("TRANSPORT_TYPE", "redis")),
		BrokerURL:     os.Getenv("BROKER_URL"),
		RequestStream: getenv("REQUEST_STREAM", "agent.requests"),
		EventStream:   getenv("EVENT_STREAM", "agent.events"),
		GroupPrefix:   getenv("GROUP_PREFIX", "orchestrator"),
		ConsumerID:    getenv("CONSUMER_ID", ""),

		Persona: PersonaConfig{
			Timeouts:           parseIntMap(os.Getenv("PERSONA_TIMEOUTS")),
			MaxRetries:         parseMaxRetriesMap(os.Getenv("PERSONA_MAX_RETRIES")),
			DefaultTimeoutMS:   getenvInt("PERSONA_DEFAULT_TIMEOUT_MS", 90_000),
			DefaultMaxRetries:  getenvInt("PERSONA_DEFAULT_MAX_RETRIES", 2),
			RetryBackoffIncrMS: getenvInt("PERSONA_RETRY_BACKOFF_INCREMENT_MS", 30_000),
			AllowedPersonas:    splitNonEmpty(os.Getenv("ALLOWED_PERSONAS"), ","),
		},

		SkipPersonaOperations: getenvBool("SKIP_PERSONA_OPERATIONS", false),
		SkipGitOperations:     getenvBool("SKIP_GIT_OPERATIONS", false),

		DashboardBaseURL: getenv("DASHBOARD_BASE_URL", "http://localhost:8080"),
	}

	if cfg.ConsumerID == "" {
		// A fresh id per process so two coordinators never compete under the
		// same consumer name (spec.md §5).
		cfg.ConsumerID = "orchestrator-" + randomSuffix()
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// parseIntMap parses "persona=ms,persona2=ms2" into a map.
func parseIntMap(raw string) map[string]int {
	out := map[string]int{}
	for _, pair := range splitNonEmpty(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		out[strings.TrimSpace(k)] = n
	}
	return out
}

// parseMaxRetriesMap parses "persona=3,persona2=unlimited" where "unlimited"
// maps to a nil *int (spec.md §6.4).
func parseMaxRetriesMap(raw string) map[string]*int {
	out := map[string]*int{}
	for _, pair := range splitNonEmpty(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if strings.EqualFold(val, "unlimited") {
			out[key] = nil
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		out[key] = &n
	}
	return out
}

func splitNonEmpty(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
