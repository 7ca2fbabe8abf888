package intake

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/intake/model/rubric"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/secret"
	"github.com/viant/intake/service/token"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the intake service.
type Option func(s *Service)

// WithConfig sets the configuration; DefaultConfig is used otherwise.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithStore sets the durable store, overriding store configuration.
func WithStore(store dao.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithArtifactStore sets the artifact store, overriding artifact configuration.
func WithArtifactStore(store artifact.Store) Option {
	return func(s *Service) { s.artifacts = store }
}

// WithSender sets the notification sender, overriding notify driver configuration.
func WithSender(sender notify.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithRubric sets a loaded rubric, overriding rubric configuration.
func WithRubric(r *rubric.Rubric) Option {
	return func(s *Service) { s.rubric = r }
}

// WithFields sets the raw field id to canonical name lookup.
func WithFields(fields map[string]string) Option {
	return func(s *Service) { s.fields = fields }
}

// WithTokenService sets the continuation token service, overriding token configuration.
func WithTokenService(tokens *token.Service) Option {
	return func(s *Service) { s.tokens = tokens }
}

// WithSecretService sets the scy backed secret service.
func WithSecretService(secrets *secret.Service) Option {
	return func(s *Service) { s.secrets = secrets }
}

// WithFs sets the afs service used for configuration, rubric and file storage.
func WithFs(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the base logger; components derive their own from it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMeterProvider records counters on provider instead of the global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = provider }
}

// WithEventListener receives every lifecycle event. Without it events are
// logged at debug level.
func WithEventListener(listener func(*event.Lifecycle)) Option {
	return func(s *Service) { s.listener = listener }
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, e.g. OTLP. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.tracingName = serviceName
		s.tracingVersion = serviceVersion
		s.exporter = exporter
	}
}
