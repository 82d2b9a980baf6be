package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/courier/pkg/secrets"
)

const sample = `
submission:
  attempt_timeout: 10s
progress:
  step: 5
  interval: 250ms
channels:
  - type: direct
    url: ${UPLOAD_BASE}/upload
  - type: function_proxy
    url: https://forms.example.com/.netlify/functions/upload-proxy
  - type: cors
    relay: https://cors-anywhere.herokuapp.com/
    url: ${UPLOAD_BASE}/upload
    origin: https://forms.example.com
  - type: cors
    relay: https://corsproxy.io/?url={url}
    url: ${UPLOAD_BASE}/upload
  - type: notify
    provider: webhook
    url: ${HOOK_URL:-https://hooks.example.com/x}
  - type: local
`

func TestParse(t *testing.T) {
	t.Setenv("UPLOAD_BASE", "https://api.example.com")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Submission.AttemptTimeout)
	assert.Equal(t, 5, cfg.Progress.Step)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.Interval)
	assert.Equal(t, 90, cfg.Progress.Ceiling)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "uploads", cfg.Storage.LocalDir)

	require.Len(t, cfg.Channels, 6)
	assert.Equal(t, "https://api.example.com/upload", cfg.Channels[0].URL)
	assert.Equal(t, "direct", cfg.Channels[0].Label)
	assert.Equal(t, "cors:https://cors-anywhere.herokuapp.com/", cfg.Channels[2].Label)
	assert.Equal(t, "cors:https://corsproxy.io/?url={url}", cfg.Channels[3].Label)
	assert.Equal(t, "https://hooks.example.com/x", cfg.Channels[4].URL)
	assert.Equal(t, "notify:webhook", cfg.Channels[4].Label)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("COURIER_ATTEMPT_TIMEOUT", "3s")
	t.Setenv("COURIER_LOG_LEVEL", "debug")

	cfg, err := Parse([]byte("channels: [{type: local}]"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Submission.AttemptTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown type":    "channels: [{type: carrier_pigeon}]",
		"missing url":     "channels: [{type: direct}]",
		"missing relay":   "channels: [{type: cors, url: http://x}]",
		"duplicate label": "channels: [{type: local}, {type: local}]",
		"ceiling":         "progress: {ceiling: 100}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - type: local\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Channels, 1)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("COURIER_TEST_HOST", "example.com")
	assert.Equal(t, "https://example.com/a", SubstituteEnvVars("https://${COURIER_TEST_HOST}/a"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${COURIER_TEST_UNSET:-fallback}"))
	assert.Equal(t, "", SubstituteEnvVars("${COURIER_TEST_UNSET}"))
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("COURIER_TEST_TG_TOKEN", "123:abc")
	t.Setenv("COURIER_TEST_API_KEY", "k-1")

	cfg, err := Parse([]byte(`
storage:
  type: s3
  s3:
    bucket: uploads
    secret_access_key: plain
channels:
  - type: direct
    url: https://api.example.com/upload
    headers:
      Authorization: secret:COURIER_TEST_API_KEY
      Accept: application/json
  - type: notify
    provider: telegram
    telegram_token: secret:COURIER_TEST_TG_TOKEN
    telegram_chat_id: "42"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.ResolveSecrets(context.Background(), &secrets.EnvManager{}))

	assert.Equal(t, "k-1", cfg.Channels[0].Headers["Authorization"])
	assert.Equal(t, "application/json", cfg.Channels[0].Headers["Accept"])
	assert.Equal(t, "123:abc", cfg.Channels[1].TelegramToken)
	assert.Equal(t, "42", cfg.Channels[1].TelegramChatID)
	assert.Equal(t, "plain", cfg.Storage.S3.SecretAccessKey)

	cfg.Channels[1].TelegramToken = "secret:COURIER_TEST_MISSING"
	assert.Error(t, cfg.ResolveSecrets(context.Background(), &secrets.EnvManager{}))
}
