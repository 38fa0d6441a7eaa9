package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/mapqueue/errors"
)

// inTempDir runs the test from an empty directory so no stray mapqueue.*
// file is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "assignments", cfg.Store.Bucket)
	assert.Equal(t, 500*time.Millisecond, cfg.Producer.Delay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Consumer.WorkDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Consumer.SweepInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Empty(t, cfg.Telemetry.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestDefault_MatchesLoad(t *testing.T) {
	inTempDir(t)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, loaded, Default())
}

func TestLoad_FromEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("MAPQUEUE_STORE_BACKEND", "nats")
	t.Setenv("MAPQUEUE_STORE_URL", "nats://localhost:4222")
	t.Setenv("MAPQUEUE_PRODUCER_DELAY", "10ms")
	t.Setenv("MAPQUEUE_CONSUMER_WORK_DELAY", "0s")
	t.Setenv("MAPQUEUE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats", cfg.Store.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.Store.URL)
	assert.Equal(t, 10*time.Millisecond, cfg.Producer.Delay)
	assert.Zero(t, cfg.Consumer.WorkDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := inTempDir(t)
	path := writeFile(t, dir, "run.toml", `
report = "summary.yaml"

[producer]
delay = "1ms"
fixture = "items.toml"

[consumer]
sweep_interval = "5ms"

[telemetry]
endpoint = "localhost:4318"
protocol = "http"
insecure = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "summary.yaml", cfg.Report)
	assert.Equal(t, time.Millisecond, cfg.Producer.Delay)
	assert.Equal(t, "items.toml", cfg.Producer.Fixture)
	assert.Equal(t, 5*time.Millisecond, cfg.Consumer.SweepInterval)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "http", cfg.Telemetry.Protocol)
	assert.True(t, cfg.Telemetry.Insecure)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1500*time.Millisecond, cfg.Consumer.WorkDelay)
}

func TestLoad_DiscoversFileInWorkingDir(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, dir, "mapqueue.yaml", "log:\n  level: warn\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	path := writeFile(t, dir, "run.yaml", "producer:\n  delay: 2s\n")
	t.Setenv("MAPQUEUE_PRODUCER_DELAY", "3ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Millisecond, cfg.Producer.Delay)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	inTempDir(t)

	_, err := Load("does-not-exist.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
	assert.Equal(t, "does-not-exist.toml", errors.As(err).Metadata()["path"])
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"MAPQUEUE_STORE_BACKEND": "redis"}},
		{"nats without url", map[string]string{"MAPQUEUE_STORE_BACKEND": "nats"}},
		{"negative delay", map[string]string{"MAPQUEUE_PRODUCER_DELAY": "-1s"}},
		{"zero sweep interval", map[string]string{"MAPQUEUE_CONSUMER_SWEEP_INTERVAL": "0s"}},
		{"unknown log level", map[string]string{"MAPQUEUE_LOG_LEVEL": "loud"}},
		{"unknown protocol", map[string]string{"MAPQUEUE_TELEMETRY_PROTOCOL": "udp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
			assert.True(t, errors.IsFatal(err))
		})
	}
}
