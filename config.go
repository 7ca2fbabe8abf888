package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/viant/afs"
	"github.com/viant/intake/model/rubric"
	"github.com/viant/intake/service/artifact/s3"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/sweeper"
	"github.com/viant/intake/service/token"
	"github.com/viant/intake/service/workflow"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreFS       = "fs"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Artifact drivers.
const (
	ArtifactAFS = "afs"
	ArtifactS3  = "s3"
)

// Notification drivers.
const (
	NotifySMTP   = "smtp"
	NotifyLog    = "log"
	NotifyMemory = "memory"
)

// Config is a serialisable representation of the intake service
// configuration. DefaultConfig mirrors the constructor defaults.
type Config struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Artifacts  ArtifactConfig   `json:"artifacts" yaml:"artifacts"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Token      TokenConfig      `json:"token" yaml:"token"`
	Workflow   WorkflowConfig   `json:"workflow" yaml:"workflow"`
	Rubric     RubricConfig     `json:"rubric" yaml:"rubric"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
	// RateLimit is webhook deliveries per second, 0 disables limiting.
	RateLimit   float64 `json:"rateLimit" yaml:"rateLimit" validate:"gte=0"`
	Burst       int     `json:"burst" yaml:"burst" validate:"gte=0"`
	MaxBodySize int64   `json:"maxBodySize" yaml:"maxBodySize" validate:"gte=0"`
}

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" validate:"oneof=memory fs sqlite postgres redis"`
	// URL is the afs base URL of the fs driver.
	URL string `json:"url,omitempty" yaml:"url,omitempty" validate:"required_if=Driver fs"`
	// DSN is the sqlite or postgres data source name.
	DSN   string       `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Redis *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" validate:"required,hostname_port"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db" validate:"gte=0"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

type ArtifactConfig struct {
	Driver string `json:"driver" yaml:"driver" validate:"oneof=afs s3"`
	// BaseURL is the afs location of the afs driver, e.g. file:///var/intake or mem://localhost/intake.
	BaseURL string     `json:"baseURL,omitempty" yaml:"baseURL,omitempty" validate:"required_if=Driver afs"`
	Prefix  string     `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	S3      *s3.Config `json:"s3,omitempty" yaml:"s3,omitempty"`
}

type NotifyConfig struct {
	Driver string `json:"driver" yaml:"driver" validate:"oneof=smtp log memory"`
	// BaseURL is the public URL decision links point at.
	BaseURL   string             `json:"baseURL" yaml:"baseURL" validate:"required,url"`
	Reviewers []string           `json:"reviewers" yaml:"reviewers" validate:"min=1,dive,email"`
	SMTP      *notify.SMTPConfig `json:"smtp,omitempty" yaml:"smtp,omitempty"`
}

type TokenConfig struct {
	// Secret is the inline signing secret, for development only.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// SecretURL is a scy resource holding the signing secret.
	SecretURL string `json:"secretURL,omitempty" yaml:"secretURL,omitempty"`
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
}

type WorkflowConfig struct {
	MaxPendingLifetime time.Duration `json:"maxPendingLifetime" yaml:"maxPendingLifetime" validate:"gt=0"`
	SweepInterval      time.Duration `json:"sweepInterval" yaml:"sweepInterval" validate:"gte=0"`
	StrictScoring      bool          `json:"strictScoring" yaml:"strictScoring"`
	// Recover re-drives instances left mid-step on startup.
	Recover bool `json:"recover" yaml:"recover"`
}

type RubricConfig struct {
	URL    string             `json:"url,omitempty" yaml:"url,omitempty"`
	Inline *rubric.Definition `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type NormalizerConfig struct {
	// FieldsURL is a YAML map of raw field id to canonical name.
	FieldsURL  string            `json:"fieldsURL,omitempty" yaml:"fieldsURL,omitempty"`
	Fields     map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Preference []string          `json:"preference,omitempty" yaml:"preference,omitempty"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName" validate:"required_if=Enabled true"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	// OutputFile receives spans; empty means stdout.
	OutputFile string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns a Config populated with the constructor defaults.
// Reviewers, the token secret and the rubric still need to be provided.
func DefaultConfig() *Config {
	return &Config{
		HTTP:      HTTPConfig{Addr: ":8080", MaxBodySize: 1 << 20},
		Store:     StoreConfig{Driver: StoreMemory},
		Artifacts: ArtifactConfig{Driver: ArtifactAFS, BaseURL: "mem://localhost/intake/artifacts"},
		Notify:    NotifyConfig{Driver: NotifyLog, BaseURL: "http://localhost:8080"},
		Workflow: WorkflowConfig{
			MaxPendingLifetime: workflow.DefaultMaxPendingLifetime,
			SweepInterval:      sweeper.DefaultConfig().PollingInterval,
			Recover:            true,
		},
		Tracing: TracingConfig{ServiceName: "intake"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

var validate = validator.New()

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	var errs []error
	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return err
		}
		for _, fieldErr := range fieldErrors {
			errs = append(errs, fmt.Errorf("%v: failed %q validation", fieldErr.Namespace(), fieldErr.Tag()))
		}
	}
	switch {
	case c.Token.Secret == "" && c.Token.SecretURL == "":
		errs = append(errs, fmt.Errorf("token: secret or secretURL is required"))
	case c.Token.Secret != "" && c.Token.SecretURL != "":
		errs = append(errs, fmt.Errorf("token: secret and secretURL are mutually exclusive"))
	case c.Token.Secret != "" && len(c.Token.Secret) < token.MinSecretSize:
		errs = append(errs, fmt.Errorf("token: secret must be at least %d bytes", token.MinSecretSize))
	}
	if c.Rubric.URL == "" && c.Rubric.Inline == nil {
		errs = append(errs, fmt.Errorf("rubric: url or inline definition is required"))
	}
	if (c.Store.Driver == StoreSQLite || c.Store.Driver == StorePostgres) && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store: dsn is required for %v", c.Store.Driver))
	}
	if c.Store.Driver == StoreRedis && c.Store.Redis == nil {
		errs = append(errs, fmt.Errorf("store: redis section is required for redis"))
	}
	if c.Artifacts.Driver == ArtifactS3 && (c.Artifacts.S3 == nil || c.Artifacts.S3.Bucket == "") {
		errs = append(errs, fmt.Errorf("artifacts: s3 bucket is required for s3"))
	}
	if c.Notify.Driver == NotifySMTP && c.Notify.SMTP == nil {
		errs = append(errs, fmt.Errorf("notify: smtp section is required for smtp"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration from any afs supported location on
// top of DefaultConfig, then applies INTAKE_* environment overrides.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if URL != "" {
		data, err := afs.New().DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
		}
		if err = yaml.Unmarshal(data, ret); err != nil {
			return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
		}
	}
	if err := ret.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return ret, nil
}

// ApplyEnv overrides common settings from INTAKE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	overrides := map[string]*string{
		"INTAKE_HTTP_ADDR":         &c.HTTP.Addr,
		"INTAKE_STORE_DRIVER":      &c.Store.Driver,
		"INTAKE_STORE_URL":         &c.Store.URL,
		"INTAKE_STORE_DSN":         &c.Store.DSN,
		"INTAKE_ARTIFACTS_DRIVER":  &c.Artifacts.Driver,
		"INTAKE_ARTIFACTS_URL":     &c.Artifacts.BaseURL,
		"INTAKE_NOTIFY_DRIVER":     &c.Notify.Driver,
		"INTAKE_NOTIFY_BASE_URL":   &c.Notify.BaseURL,
		"INTAKE_TOKEN_SECRET":      &c.Token.Secret,
		"INTAKE_TOKEN_SECRET_URL":  &c.Token.SecretURL,
		"INTAKE_RUBRIC_URL":        &c.Rubric.URL,
		"INTAKE_NORMALIZER_FIELDS": &c.Normalizer.FieldsURL,
		"INTAKE_LOG_LEVEL":         &c.Log.Level,
		"INTAKE_LOG_FORMAT":        &c.Log.Format,
	}
	for name, target := range overrides {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}
	if value, ok := lookup("INTAKE_NOTIFY_REVIEWERS"); ok {
		c.Notify.Reviewers = splitList(value)
	}
	if value, ok := lookup("INTAKE_REDIS_ADDR"); ok {
		if c.Store.Redis == nil {
			c.Store.Redis = &RedisConfig{}
		}
		c.Store.Redis.Addr = value
	}
	if value, ok := lookup("INTAKE_MAX_PENDING_LIFETIME"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("INTAKE_MAX_PENDING_LIFETIME: %w", err)
		}
		c.Workflow.MaxPendingLifetime = d
	}
	if value, ok := lookup("INTAKE_HTTP_RATE_LIMIT"); ok {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("INTAKE_HTTP_RATE_LIMIT: %w", err)
		}
		c.HTTP.RateLimit = rps
	}
	return nil
}

func splitList(value string) []string {
	var ret []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// LoadRubric returns the inline rubric or loads it from its URL.
func (c *Config) LoadRubric(ctx context.Context, fs afs.Service) (*rubric.Rubric, error) {
	switch {
	case c.Rubric.Inline != nil:
		return rubric.New(c.Rubric.Inline)
	case c.Rubric.URL != "":
		return rubric.Load(ctx, fs, c.Rubric.URL)
	}
	return nil, &rubric.ConfigurationError{Problems: []string{"rubric is not configured"}}
}

// LoadFields merges the field map loaded from FieldsURL with inline fields;
// inline entries win.
func (c *Config) LoadFields(ctx context.Context, fs afs.Service) (map[string]string, error) {
	cfg := c.Normalizer
	ret := make(map[string]string, len(cfg.Fields))
	if cfg.FieldsURL != "" {
		if fs == nil {
			fs = afs.New()
		}
		data, err := fs.DownloadWithURL(ctx, cfg.FieldsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load field map %v: %w", cfg.FieldsURL, err)
		}
		if err = yaml.Unmarshal(data, &ret); err != nil {
			return nil, fmt.Errorf("failed to decode field map %v: %w", cfg.FieldsURL, err)
		}
	}
	for raw, name := range cfg.Fields {
		ret[raw] = name
	}
	return ret, nil
}
