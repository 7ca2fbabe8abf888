package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/intake/model/rubric"
)

func testDefinition() *rubric.Definition {
	return &rubric.Definition{
		Dimensions: map[string]float64{"team": 1},
		Questions: []rubric.Question{
			{ID: "experience", Field: "experience", Dimension: "team", Weight: 1, Choices: map[string]float64{"yes": 4, "no": 0}},
		},
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Notify.Reviewers = []string{"reviewer@example.com"}
	cfg.Token.Secret = "0123456789abcdef-config"
	cfg.Rubric.Inline = testDefinition()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(c *Config)
		expect      []string
	}{
		{description: "valid", mutate: func(c *Config) {}},
		{
			description: "defaults only",
			mutate: func(c *Config) {
				*c = *DefaultConfig()
			},
			expect: []string{"Config.Notify.Reviewers", "token: secret or secretURL is required", "rubric: url or inline definition is required"},
		},
		{description: "short secret", mutate: func(c *Config) { c.Token.Secret = "short" }, expect: []string{"at least 16 bytes"}},
		{description: "both secrets", mutate: func(c *Config) { c.Token.SecretURL = "mem://localhost/secret" }, expect: []string{"mutually exclusive"}},
		{description: "unknown store", mutate: func(c *Config) { c.Store.Driver = "mongo" }, expect: []string{"Config.Store.Driver", "oneof"}},
		{description: "fs store without url", mutate: func(c *Config) { c.Store.Driver = StoreFS }, expect: []string{"Config.Store.URL"}},
		{description: "sqlite without dsn", mutate: func(c *Config) { c.Store.Driver = StoreSQLite }, expect: []string{"store: dsn is required for sqlite"}},
		{description: "redis without section", mutate: func(c *Config) { c.Store.Driver = StoreRedis }, expect: []string{"store: redis section is required"}},
		{description: "s3 without bucket", mutate: func(c *Config) { c.Artifacts.Driver = ArtifactS3 }, expect: []string{"artifacts: s3 bucket is required"}},
		{description: "smtp without section", mutate: func(c *Config) { c.Notify.Driver = NotifySMTP }, expect: []string{"notify: smtp section is required"}},
		{description: "invalid reviewer", mutate: func(c *Config) { c.Notify.Reviewers = []string{"not-an-email"} }, expect: []string{"email"}},
		{description: "invalid base url", mutate: func(c *Config) { c.Notify.BaseURL = "localhost" }, expect: []string{"Config.Notify.BaseURL"}},
		{description: "zero lifetime", mutate: func(c *Config) { c.Workflow.MaxPendingLifetime = 0 }, expect: []string{"MaxPendingLifetime"}},
		{description: "unknown log level", mutate: func(c *Config) { c.Log.Level = "trace" }, expect: []string{"Config.Log.Level"}},
	}
	for _, testCase := range testCases {
		cfg := validConfig()
		testCase.mutate(cfg)
		err := cfg.Validate()
		if len(testCase.expect) == 0 {
			assert.NoError(t, err, testCase.description)
			continue
		}
		require.Error(t, err, testCase.description)
		for _, fragment := range testCase.expect {
			assert.Contains(t, err.Error(), fragment, testCase.description)
		}
	}
	var cfg *Config
	assert.Error(t, cfg.Validate())
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"INTAKE_HTTP_ADDR":            ":9090",
		"INTAKE_STORE_DRIVER":         StoreSQLite,
		"INTAKE_STORE_DSN":            "file:intake.db",
		"INTAKE_NOTIFY_REVIEWERS":     " a@example.com, ,b@example.com ",
		"INTAKE_REDIS_ADDR":           "localhost:6379",
		"INTAKE_MAX_PENDING_LIFETIME": "72h",
		"INTAKE_HTTP_RATE_LIMIT":      "2.5",
	}
	lookup := func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.EqualValues(t, ":9090", cfg.HTTP.Addr)
	assert.EqualValues(t, StoreSQLite, cfg.Store.Driver)
	assert.EqualValues(t, "file:intake.db", cfg.Store.DSN)
	assert.EqualValues(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Reviewers)
	require.NotNil(t, cfg.Store.Redis)
	assert.EqualValues(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.EqualValues(t, 72*time.Hour, cfg.Workflow.MaxPendingLifetime)
	assert.EqualValues(t, 2.5, cfg.HTTP.RateLimit)

	testCases := []struct {
		description string
		name        string
		value       string
	}{
		{description: "bad duration", name: "INTAKE_MAX_PENDING_LIFETIME", value: "a week"},
		{description: "bad rate", name: "INTAKE_HTTP_RATE_LIMIT", value: "fast"},
	}
	for _, testCase := range testCases {
		err := DefaultConfig().ApplyEnv(func(name string) (string, bool) {
			if name == testCase.name {
				return testCase.value, true
			}
			return "", false
		})
		require.Error(t, err, testCase.description)
		assert.True(t, strings.HasPrefix(err.Error(), testCase.name), testCase.description)
	}
}

func TestLoadConfig(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	base := "mem://localhost/config/" + uuid.New().String()
	document := `
http:
  addr: ":7070"
notify:
  driver: memory
  baseURL: https://intake.example.com
  reviewers: [reviewer@example.com]
token:
  secret: 0123456789abcdef-loaded
workflow:
  maxPendingLifetime: 48h
rubric:
  url: ` + base + `/rubric.yaml
normalizer:
  fieldsURL: ` + base + `/fields.yaml
  fields:
    q9: experience
`
	require.NoError(t, fs.Upload(ctx, base+"/config.yaml", 0644, strings.NewReader(document)))
	require.NoError(t, fs.Upload(ctx, base+"/fields.yaml", 0644, strings.NewReader("q1: project_name\nq9: ignored\n")))
	require.NoError(t, fs.Upload(ctx, base+"/rubric.yaml", 0644, strings.NewReader(`
dimensions:
  team: 1
questions:
  - id: experience
    field: experience
    dimension: team
    weight: 1
    choices:
      "yes": 1
`)))

	cfg, err := LoadConfig(ctx, base+"/config.yaml")
	require.NoError(t, err)
	assert.EqualValues(t, ":7070", cfg.HTTP.Addr)
	assert.EqualValues(t, NotifyMemory, cfg.Notify.Driver)
	assert.EqualValues(t, 48*time.Hour, cfg.Workflow.MaxPendingLifetime)
	assert.EqualValues(t, StoreMemory, cfg.Store.Driver)
	require.NoError(t, cfg.Validate())

	fields, err := cfg.LoadFields(ctx, fs)
	require.NoError(t, err)
	assert.EqualValues(t, map[string]string{"q1": "project_name", "q9": "experience"}, fields)

	r, err := cfg.LoadRubric(ctx, fs)
	require.NoError(t, err)
	assert.EqualValues(t, []string{"team"}, r.Dimensions())

	_, err = LoadConfig(ctx, base+"/missing.yaml")
	assert.Error(t, err)

	require.NoError(t, fs.Upload(ctx, base+"/broken.yaml", 0644, strings.NewReader("http: [")))
	_, err = LoadConfig(ctx, base+"/broken.yaml")
	assert.Error(t, err)
}

func TestConfig_LoadRubric(t *testing.T) {
	cfg := validConfig()
	r, err := cfg.LoadRubric(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, r.AllQuestions(), 1)

	cfg.Rubric.Inline = nil
	_, err = cfg.LoadRubric(context.Background(), nil)
	assert.True(t, rubric.IsConfigurationError(err))

	cfg.Rubric.Inline = &rubric.Definition{Dimensions: map[string]float64{"team": 1}}
	_, err = cfg.LoadRubric(context.Background(), nil)
	assert.True(t, rubric.IsConfigurationError(err))
}
