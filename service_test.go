package intake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/notify"
	"go.opentelemetry.io/otel/metric/noop"
)

const testPayload = `{"data":{"q1":"Acme Water","q2":{"value":"yes"},"q3":{"text":"ceo@acme.test"}}}`

func testServiceConfig() *Config {
	cfg := validConfig()
	cfg.Artifacts.BaseURL = "mem://localhost/intake/" + uuid.New().String()
	cfg.Normalizer.Fields = map[string]string{
		"q1": "project_name",
		"q2": "experience",
		"q3": "contact_email",
	}
	return cfg
}

var approveLink = regexp.MustCompile(`/approve\?token=(\S+)`)

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sender := notify.NewMemory()
	var mux sync.Mutex
	var events []*event.Lifecycle
	srv, err := New(ctx,
		WithConfig(testServiceConfig()),
		WithSender(sender),
		WithMeterProvider(noop.NewMeterProvider()),
		WithEventListener(func(e *event.Lifecycle) {
			mux.Lock()
			defer mux.Unlock()
			events = append(events, e)
		}),
	)
	require.NoError(t, err)
	runtime := srv.Runtime()
	defer func() { _ = runtime.Shutdown(ctx) }()

	_, result, err := runtime.Score([]byte(testPayload))
	require.NoError(t, err)
	assert.EqualValues(t, 100, result.Total)
	instances, err := runtime.Instances(ctx)
	require.NoError(t, err)
	assert.Empty(t, instances)

	instance, created, err := runtime.Submit(ctx, []byte(testPayload))
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, model.StateAwaitingDecision, instance.State)

	_, created, err = runtime.Submit(ctx, []byte(testPayload))
	require.NoError(t, err)
	assert.False(t, created)

	messages := sender.SentTo("reviewer@example.com")
	require.Len(t, messages, 1)
	match := approveLink.FindStringSubmatch(messages[0].Body)
	require.Len(t, match, 2)
	value, err := url.QueryUnescape(match[1])
	require.NoError(t, err)

	completed, err := runtime.Redeem(ctx, value, model.DecisionApprove)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateCompleted, completed.State)
	assert.Len(t, sender.SentTo("ceo@acme.test"), 1)

	loaded, err := runtime.Instance(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.DecisionApprove, loaded.Decision)

	count, err := runtime.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	recorder := httptest.NewRecorder()
	runtime.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.EqualValues(t, http.StatusOK, recorder.Code)

	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(events) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, WithConfig(testServiceConfig()), WithSender(notify.NewMemory()))
	require.NoError(t, err)
	runtime := srv.Runtime()
	defer func() { _ = runtime.Shutdown(ctx) }()

	instance, _, err := runtime.Submit(ctx, []byte(testPayload))
	require.NoError(t, err)
	cancelled, err := runtime.Cancel(ctx, instance.ID, "withdrawn")
	require.NoError(t, err)
	assert.EqualValues(t, "cancelled: withdrawn", cancelled.Reason)
}

func TestService_InvalidPayload(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, WithConfig(testServiceConfig()))
	require.NoError(t, err)
	runtime := srv.Runtime()
	defer func() { _ = runtime.Shutdown(ctx) }()

	_, _, err = runtime.Submit(ctx, []byte(`{"data":`))
	assert.Error(t, err)
	_, _, err = runtime.Score([]byte(`[]`))
	assert.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
	}{
		{description: "unsupported store", mutate: func(c *Config) { c.Store.Driver = "mongo" }},
		{description: "redis without section", mutate: func(c *Config) { c.Store.Driver = StoreRedis }},
		{description: "unsupported artifacts", mutate: func(c *Config) { c.Artifacts.Driver = "gcs" }},
		{description: "s3 without section", mutate: func(c *Config) { c.Artifacts.Driver = ArtifactS3 }},
		{description: "unsupported notify", mutate: func(c *Config) { c.Notify.Driver = "sms" }},
		{description: "smtp without section", mutate: func(c *Config) { c.Notify.Driver = NotifySMTP }},
		{description: "short token secret", mutate: func(c *Config) { c.Token.Secret = "short" }},
		{description: "missing rubric", mutate: func(c *Config) { c.Rubric.Inline = nil }},
		{description: "missing field map", mutate: func(c *Config) { c.Normalizer.FieldsURL = "mem://localhost/missing/" + uuid.New().String() }},
	}
	for _, testCase := range testCases {
		cfg := testServiceConfig()
		testCase.mutate(cfg)
		_, err := New(context.Background(), WithConfig(cfg))
		assert.Error(t, err, testCase.description)
	}
}

func TestNew_FileStore(t *testing.T) {
	ctx := context.Background()
	cfg := testServiceConfig()
	cfg.Store.Driver = StoreFS
	cfg.Store.URL = "mem://localhost/store/" + uuid.New().String()
	cfg.Notify.Driver = NotifyMemory

	srv, err := New(ctx, WithConfig(cfg))
	require.NoError(t, err)
	instance, created, err := srv.Runtime().Submit(ctx, []byte(testPayload))
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, srv.Runtime().Shutdown(ctx))

	reopened, err := New(ctx, WithConfig(cfg))
	require.NoError(t, err)
	defer func() { _ = reopened.Runtime().Shutdown(ctx) }()
	loaded, err := reopened.Runtime().Instance(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateAwaitingDecision, loaded.State)
}
