// Package config provides run settings for gridcheck.
// It resolves the target environment (base URL and reviewer credentials),
// reads browser, artifact, load and API tuning from environment variables,
// and validates everything up front so scenarios fail before a browser starts.
//
// Flags bound by cmd/gridcheck override the environment variable values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvName       = "dev"
	defaultAWSRegion     = "us-east-1"
	defaultLoadVUs       = 10
	defaultLoadIters     = 1
	defaultLoadThinkTime = 2 * time.Second
	defaultAPIRPS        = 5
	defaultAPIBurst      = 10
	defaultViewportW     = 1466
	defaultViewportH     = 768
)

// Credentials are the login pair for one reviewer portal.
type Credentials struct {
	Email    string
	Password string
}

// Environment is one deployment of the application under test.
type Environment struct {
	Name    string
	BaseURL string
	// APIBaseURL is the REST root; defaults to BaseURL + "/api".
	APIBaseURL string
	// Translation is the translation-review portal user (scored documents).
	Translation Credentials
	// English is the English-source-review portal user (unscored documents).
	English Credentials
}

// knownEnvironments holds the built-in targets. Hosts for qa and staging are
// supplied through QA_BASE_URL / STAGING_BASE_URL.
var knownEnvironments = map[string]Environment{
	"dev": {
		Name:        "dev",
		BaseURL:     "http://127.0.0.1:8080",
		Translation: Credentials{Email: "reviewer@example.com", Password: "reviewer-pass"},
		English:     Credentials{Email: "english@example.com", Password: "english-pass"},
	},
	"qa":      {Name: "qa"},
	"staging": {Name: "staging"},
}

// EnvironmentNames lists the built-in environment names.
func EnvironmentNames() []string {
	return []string{"dev", "qa", "staging"}
}

// ResolveEnvironment returns the named environment with overrides from the
// process environment applied. Unknown names fall back to dev.
func ResolveEnvironment(name string) Environment {
	key := strings.ToLower(strings.TrimSpace(name))
	env, ok := knownEnvironments[key]
	if !ok {
		key = defaultEnvName
		env = knownEnvironments[defaultEnvName]
	}

	prefix := strings.ToUpper(key) + "_"
	env.BaseURL = strings.TrimRight(getEnvOrDefault(prefix+"BASE_URL", env.BaseURL), "/")
	env.APIBaseURL = strings.TrimRight(getEnvOrDefault(prefix+"API_BASE_URL", env.APIBaseURL), "/")
	if env.APIBaseURL == "" && env.BaseURL != "" {
		env.APIBaseURL = env.BaseURL + "/api"
	}
	env.Translation.Email = getEnvOrDefault(prefix+"USERNAME", env.Translation.Email)
	env.Translation.Password = getEnvOrDefault(prefix+"PASSWORD", env.Translation.Password)
	env.English.Email = getEnvOrDefault(prefix+"ENGLISH_USERNAME", env.English.Email)
	env.English.Password = getEnvOrDefault(prefix+"ENGLISH_PASSWORD", env.English.Password)
	return env
}

// Settings holds all run configuration.
type Settings struct {
	Env Environment

	// Browser
	Headless       bool
	ViewportWidth  int
	ViewportHeight int

	// Test data document; empty means the embedded default.
	TestDataPath string

	// Failure artifacts (screenshots). Empty bucket disables uploads.
	ArtifactBucket string
	ArtifactPrefix string

	// Markdown export audit. AuditPrefix is the parent folder.
	AuditBucket string
	AuditPrefix string

	// S3 (AWS_ env vars)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSSessionToken    string // AWS_SESSION_TOKEN

	// Load replay
	LoadVUs        int
	LoadIterations int
	LoadThinkTime  time.Duration

	// REST client pacing
	APIRequestsPerSecond float64
	APIBurst             int
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads settings from environment variables. envName overrides ENV when non-empty.
func Load(envName string) (*Settings, error) {
	if strings.TrimSpace(envName) == "" {
		envName = getEnvOrDefault("ENV", defaultEnvName)
	}

	s := &Settings{
		Env:            ResolveEnvironment(envName),
		Headless:       parseBoolOrDefault("HEADLESS", true),
		ViewportWidth:  parseIntOrDefault("VIEWPORT_WIDTH", defaultViewportW),
		ViewportHeight: parseIntOrDefault("VIEWPORT_HEIGHT", defaultViewportH),
		TestDataPath:   strings.TrimSpace(os.Getenv("TESTDATA_PATH")),

		ArtifactBucket: strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET")),
		ArtifactPrefix: getEnvOrDefault("ARTIFACT_PREFIX", "gridcheck/"),

		AuditBucket: strings.TrimSpace(os.Getenv("AUDIT_BUCKET")),
		AuditPrefix: getEnvOrDefault("AUDIT_PREFIX", "markdown/"),

		AWSEndpointS3:      strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3")),
		AWSRegion:          getEnvOrDefault("AWS_REGION", defaultAWSRegion),
		AWSAccessKeyID:     strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		AWSSecretAccessKey: strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		AWSSessionToken:    strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN")),

		LoadVUs:        parseIntOrDefault("LOAD_VUS", defaultLoadVUs),
		LoadIterations: parseIntOrDefault("LOAD_ITERATIONS", defaultLoadIters),
		LoadThinkTime:  parseDurationOrDefault("LOAD_THINK_TIME", defaultLoadThinkTime),

		APIRequestsPerSecond: parseFloat64OrDefault("API_RPS", defaultAPIRPS),
		APIBurst:             parseIntOrDefault("API_BURST", defaultAPIBurst),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the settings can drive a run.
func (s *Settings) Validate() error {
	var errs []string

	if s.Env.BaseURL == "" {
		errs = append(errs, fmt.Sprintf("%s_BASE_URL is required for environment %q", strings.ToUpper(s.Env.Name), s.Env.Name))
	} else if !strings.HasPrefix(s.Env.BaseURL, "http://") && !strings.HasPrefix(s.Env.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("base URL %q must start with http:// or https://", s.Env.BaseURL))
	}
	if s.Env.Translation.Email == "" || s.Env.Translation.Password == "" {
		errs = append(errs, fmt.Sprintf("%s_USERNAME and %s_PASSWORD are required", strings.ToUpper(s.Env.Name), strings.ToUpper(s.Env.Name)))
	}

	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		errs = append(errs, "VIEWPORT_WIDTH and VIEWPORT_HEIGHT must be positive")
	}
	if s.ArtifactBucket != "" && s.AWSEndpointS3 == "" && s.AWSAccessKeyID == "" {
		errs = append(errs, "ARTIFACT_BUCKET requires AWS_ENDPOINT_URL_S3 or AWS credentials")
	}

	if s.LoadVUs <= 0 {
		errs = append(errs, "LOAD_VUS must be positive")
	}
	if s.LoadIterations <= 0 {
		errs = append(errs, "LOAD_ITERATIONS must be positive")
	}
	if s.LoadThinkTime < 0 {
		errs = append(errs, "LOAD_THINK_TIME must not be negative")
	}
	if s.APIRequestsPerSecond <= 0 {
		errs = append(errs, "API_RPS must be positive")
	}
	if s.APIBurst <= 0 {
		errs = append(errs, "API_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ArtifactsEnabled reports whether failure screenshots should be uploaded.
func (s *Settings) ArtifactsEnabled() bool {
	return s.ArtifactBucket != ""
}

// Summary returns a short, secret-free description of the run target.
func (s *Settings) Summary() string {
	artifacts := "disabled"
	if s.ArtifactsEnabled() {
		artifacts = "s3://" + s.ArtifactBucket + "/" + s.ArtifactPrefix
	}
	return fmt.Sprintf("env=%s base=%s api=%s headless=%t artifacts=%s", s.Env.Name, s.Env.BaseURL, s.Env.APIBaseURL, s.Headless, artifacts)
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoad loads settings and panics if validation fails.
func MustLoad(envName string) *Settings {
	s, err := Load(envName)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return s
}
