package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Len(t, c.KeyServers, 3)
	assert.Equal(t, 2, c.Threshold)
	assert.Equal(t, "walrus", c.BlobBackend)
	assert.Equal(t, 10, c.WalrusEpochs)
	assert.Equal(t, 10*time.Minute, c.CredentialTTL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, "en", c.Locale)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"sealpost"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	var want Config
	want.LoadDefaults()
	assert.Equal(t, want, *cfg)
}

func TestEndpoints(t *testing.T) {
	c := Config{KeyServers: []string{"ks-1=127.0.0.1:50051", " ks-2 = host:1 "}}
	eps, err := c.Endpoints()
	require.NoError(t, err)
	assert.Equal(t, []KeyServerEndpoint{
		{ID: "ks-1", Address: "127.0.0.1:50051"},
		{ID: "ks-2", Address: "host:1"},
	}, eps)

	for _, bad := range [][]string{
		{"127.0.0.1:50051"},
		{"=host:1"},
		{"ks-1="},
		{"ks-1=a:1", "ks-1=b:2"},
	} {
		c := Config{KeyServers: bad}
		_, err := c.Endpoints()
		assert.Error(t, err, bad)
	}
}
