package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/intake/internal/metrics"
	"github.com/viant/intake/model/rubric"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/artifact/s3"
	"github.com/viant/intake/service/dao"
	daofs "github.com/viant/intake/service/dao/fs"
	"github.com/viant/intake/service/dao/memory"
	daoredis "github.com/viant/intake/service/dao/redis"
	daosql "github.com/viant/intake/service/dao/sql"
	"github.com/viant/intake/service/endpoint"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/normalizer"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/scoring"
	"github.com/viant/intake/service/secret"
	"github.com/viant/intake/service/sweeper"
	"github.com/viant/intake/service/token"
	"github.com/viant/intake/service/workflow"
	"github.com/viant/intake/tracing"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Service wires the intake components from configuration and options.
type Service struct {
	config        *Config
	runtime       *Runtime
	fs            afs.Service
	logger        *slog.Logger
	store         dao.Store
	artifacts     artifact.Store
	sender        notify.Sender
	rubric        *rubric.Rubric
	fields        map[string]string
	tokens        *token.Service
	secrets       *secret.Service
	meterProvider metric.MeterProvider
	listener      func(*event.Lifecycle)

	tracingName    string
	tracingVersion string
	exporter       sdktrace.SpanExporter
}

// New builds the service. An inconsistent rubric or configuration fails
// here, before any submission is accepted.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{}}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.runtime.close(ctx)
		return nil, err
	}
	return ret, nil
}

// Runtime returns the running components.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(ctx context.Context) error {
	s.ensureBaseSetup()
	if err := s.initTracing(); err != nil {
		return err
	}
	var err error
	if s.rubric == nil {
		if s.rubric, err = s.config.LoadRubric(ctx, s.fs); err != nil {
			return err
		}
	}
	if s.fields == nil {
		if s.fields, err = s.config.LoadFields(ctx, s.fs); err != nil {
			return err
		}
	}
	if s.tokens == nil {
		if s.tokens, err = s.newTokens(ctx); err != nil {
			return err
		}
	}
	if s.store == nil {
		if s.store, err = s.newStore(ctx); err != nil {
			return err
		}
	}
	s.runtime.store = s.store
	if s.artifacts == nil {
		if s.artifacts, err = s.newArtifacts(ctx); err != nil {
			return err
		}
	}
	if s.sender == nil {
		if s.sender, err = s.newSender(ctx); err != nil {
			return err
		}
	}
	recorder, err := metrics.New(s.meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	s.runtime.events = event.New(event.WithLogger(s.component("event")))
	listener := s.listener
	if listener == nil {
		logger := s.component("event")
		listener = func(e *event.Lifecycle) {
			logger.Debug("lifecycle", "type", e.Context.EventType, "id", e.Context.InstanceID, "from", e.Context.From, "to", e.Context.To)
		}
	}
	s.runtime.events.SetListener(listener)

	cfg := s.config
	var normalizerOptions = []normalizer.Option{normalizer.WithLogger(s.component("normalizer"))}
	if len(cfg.Normalizer.Preference) > 0 {
		normalizerOptions = append(normalizerOptions, normalizer.WithPreference(cfg.Normalizer.Preference...))
	}
	s.runtime.normalizer = normalizer.New(s.fields, normalizerOptions...)
	s.runtime.scorer = scoring.New(s.rubric, scoring.WithLogger(s.component("scoring")), scoring.WithStrictAnswers(cfg.Workflow.StrictScoring))
	s.runtime.engine, err = workflow.New(workflow.Components{
		Store:     s.store,
		Scorer:    s.runtime.scorer,
		Tokens:    s.tokens,
		Artifacts: s.artifacts,
		Sender:    s.sender,
		Composer:  notify.NewComposer(cfg.Notify.BaseURL, cfg.Notify.Reviewers),
	},
		workflow.WithLogger(s.component("workflow")),
		workflow.WithEvents(s.runtime.events),
		workflow.WithMetrics(recorder),
		workflow.WithMaxPendingLifetime(cfg.Workflow.MaxPendingLifetime),
		workflow.WithArtifactPrefix(cfg.Artifacts.Prefix),
	)
	if err != nil {
		return err
	}
	s.runtime.sweeper = sweeper.New(s.runtime.engine, sweeper.Config{PollingInterval: cfg.Workflow.SweepInterval})
	s.runtime.http, err = endpoint.New(s.runtime.engine, s.runtime.normalizer,
		endpoint.WithLogger(s.component("endpoint")),
		endpoint.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst),
		endpoint.WithMaxBodySize(cfg.HTTP.MaxBodySize),
	)
	if err != nil {
		return err
	}
	s.runtime.addr = cfg.HTTP.Addr
	s.runtime.recover = cfg.Workflow.Recover
	s.runtime.logger = s.component("runtime")
	return nil
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.secrets == nil {
		s.secrets = secret.New()
	}
}

func (s *Service) component(name string) *slog.Logger {
	return s.logger.With("component", name)
}

func (s *Service) initTracing() error {
	var err error
	switch {
	case s.exporter != nil:
		s.runtime.shutdownTracing, err = tracing.InitWithExporter(s.tracingName, s.tracingVersion, s.exporter)
	case s.config.Tracing.Enabled:
		cfg := s.config.Tracing
		s.runtime.shutdownTracing, err = tracing.Init(cfg.ServiceName, cfg.Version, cfg.OutputFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	return nil
}

func (s *Service) newTokens(ctx context.Context) (*token.Service, error) {
	cfg := s.config.Token
	if cfg.SecretURL != "" {
		return token.NewFromSecret(ctx, s.secrets, cfg.SecretURL, cfg.SecretKey)
	}
	return token.New([]byte(cfg.Secret))
}

func (s *Service) newStore(ctx context.Context) (dao.Store, error) {
	cfg := s.config.Store
	switch cfg.Driver {
	case "", StoreMemory:
		return memory.New(), nil
	case StoreFS:
		return daofs.New(ctx, cfg.URL, s.fs)
	case StoreSQLite, StorePostgres:
		return daosql.Open(ctx, cfg.Driver, cfg.DSN)
	case StoreRedis:
		if cfg.Redis == nil {
			return nil, errors.New("store: redis section is required")
		}
		return daoredis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	}
	return nil, fmt.Errorf("unsupported store driver: %v", cfg.Driver)
}

func (s *Service) newArtifacts(ctx context.Context) (artifact.Store, error) {
	cfg := s.config.Artifacts
	switch cfg.Driver {
	case "", ArtifactAFS:
		return artifact.NewFileStore(cfg.BaseURL, s.fs), nil
	case ArtifactS3:
		if cfg.S3 == nil {
			return nil, errors.New("artifacts: s3 section is required")
		}
		return s3.New(ctx, *cfg.S3)
	}
	return nil, fmt.Errorf("unsupported artifact driver: %v", cfg.Driver)
}

func (s *Service) newSender(ctx context.Context) (notify.Sender, error) {
	cfg := s.config.Notify
	switch cfg.Driver {
	case "", NotifyLog:
		return notify.NewLog(s.component("notify")), nil
	case NotifyMemory:
		return notify.NewMemory(), nil
	case NotifySMTP:
		if cfg.SMTP == nil {
			return nil, errors.New("notify: smtp section is required")
		}
		return notify.NewSMTP(ctx, cfg.SMTP, s.secrets)
	}
	return nil, fmt.Errorf("unsupported notify driver: %v", cfg.Driver)
}
