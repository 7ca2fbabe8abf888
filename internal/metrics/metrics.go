// Package metrics registers the intake counters on the global OpenTelemetry
// meter provider. Counters are no-ops unless the host installs a provider.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/viant/intake"

// Recorder holds the intake counters.
type Recorder struct {
	submissions metric.Int64Counter
	duplicates  metric.Int64Counter
	decisions   metric.Int64Counter
	failures    metric.Int64Counter
}

// New creates counters on provider; nil uses the global provider.
func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	ret := &Recorder{}
	var err error
	if ret.submissions, err = meter.Int64Counter("intake.submissions", metric.WithDescription("Accepted unique submissions")); err != nil {
		return nil, err
	}
	if ret.duplicates, err = meter.Int64Counter("intake.duplicates", metric.WithDescription("Duplicate submissions")); err != nil {
		return nil, err
	}
	if ret.decisions, err = meter.Int64Counter("intake.decisions", metric.WithDescription("Redeemed reviewer decisions")); err != nil {
		return nil, err
	}
	if ret.failures, err = meter.Int64Counter("intake.failures", metric.WithDescription("Instances moved to failed")); err != nil {
		return nil, err
	}
	return ret, nil
}

// Submission counts an accepted submission.
func (r *Recorder) Submission(ctx context.Context) {
	if r != nil {
		r.submissions.Add(ctx, 1)
	}
}

// Duplicate counts a duplicate submission.
func (r *Recorder) Duplicate(ctx context.Context) {
	if r != nil {
		r.duplicates.Add(ctx, 1)
	}
}

// Decision counts a redeemed decision.
func (r *Recorder) Decision(ctx context.Context, decision string) {
	if r != nil {
		r.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
	}
}

// Failure counts a failed instance.
func (r *Recorder) Failure(ctx context.Context, reason string) {
	if r != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
