package daemon_test

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authindex/internal/config"
	"authindex/internal/daemon"
	"authindex/internal/service"
	"authindex/internal/syncstate"
	"authindex/internal/testsupport"
	"authindex/internal/upstream"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	state, err := syncstate.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })
	svc := service.New(cfg, testsupport.OpenIndex(t), state, upstream.New(upstream.ConfigFrom(cfg)), nil)
	d, err := daemon.New(cfg, svc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartServesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	require.NoError(t, d.Start(context.Background()))
	require.NotEmpty(t, d.Address())

	resp, err := http.Get(fmt.Sprintf("http://%s/", d.Address()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status := d.Status(context.Background())
	assert.True(t, status.Running)
	assert.Equal(t, cfg.DaemonLockPath(), status.LockFilePath)

	d.Stop()
	assert.False(t, d.Status(context.Background()).Running)
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop()

	second := newDaemon(t, cfg)
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestDaemonStartTwice(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t))
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()
	assert.Error(t, d.Start(context.Background()))
}
