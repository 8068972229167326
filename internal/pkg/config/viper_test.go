package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
app:
  tz: Asia/Jakarta
modules:
  mailing:
    consumer_names: "batch_uploaded_mailing, ,batch_dispatch_mailing"
    composer:
      inline_images:
        - logo.jpg
        - " footer.png "
    worker:
      concurrency: 8
secret:
  key: c2VjcmV0
`

func TestNewViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetInt("modules.mailing.worker.concurrency"))
	assert.Equal(t, 5000, cfg.GetInt("modules.mailing.worker.queue_size"), "default applies")
	assert.Equal(t, 30*time.Second, cfg.GetSecond("modules.mailing.attachment.timeout_seconds"))
	assert.Equal(t, 2*time.Second, cfg.GetMillisecond("modules.mailing.worker.interval_ms"))
	assert.Equal(t, []byte("secret"), cfg.GetBinary("secret.key"))
	assert.Equal(t, []string{"batch_uploaded_mailing", "batch_dispatch_mailing"}, cfg.GetArray("modules.mailing.consumer_names"))
	assert.Equal(t, []string{"logo.jpg", "footer.png"}, cfg.GetArray("modules.mailing.composer.inline_images"))
	assert.Empty(t, cfg.GetArray("does.not.exist"))
	assert.Equal(t, "Asia/Jakarta", cfg.GetLocation("app.tz").String())
	require.NoError(t, cfg.Close())
}

func TestNewViperFromBytes_RequiresType(t *testing.T) {
	_, err := NewViperFromBytes(" ", []byte(sample))
	assert.Error(t, err)
}

func TestNewViper_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sample), 0o600))

	t.Setenv("JBCAST_MODULES_MAILING_WORKER_CONCURRENCY", "2")

	cfg, err := NewViper(file)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.GetInt("modules.mailing.worker.concurrency"))
}

func TestGetLocation_Unknown(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte("app:\n  tz: Mars/Olympus\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.GetLocation("app.tz"))
}
