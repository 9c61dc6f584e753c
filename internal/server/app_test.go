package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/dmitrijs2005/sealpost/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = filepath.Join(dir, "ledger.db")
	c.KeyFile = filepath.Join(dir, "ks.key")
	c.LogLevel = "error"
	return c
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ks.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	require.Len(t, first, cryptox.KeySize)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	require.NoError(t, os.WriteFile(path, []byte("zz"), 0o600))
	_, err = LoadOrCreateKey(path)
	require.Error(t, err)

	_, err = LoadOrCreateKey(filepath.Join(t.TempDir(), "missing-dir", "ks.key"))
	require.Error(t, err)
}

func TestNewApp_AndRun(t *testing.T) {
	c := testConfig(t)

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "ks-1", app.keys.ID())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
	require.Error(t, app.db.Ping(), "database must be closed after Run")
}

func TestNewApp_Errors(t *testing.T) {
	c := testConfig(t)
	c.DatabaseDriver = "mysql"
	_, err := NewApp(context.Background(), c)
	require.ErrorContains(t, err, "db init error")

	c = testConfig(t)
	require.NoError(t, os.WriteFile(c.KeyFile, []byte("not hex"), 0o600))
	_, err = NewApp(context.Background(), c)
	require.Error(t, err)
}
