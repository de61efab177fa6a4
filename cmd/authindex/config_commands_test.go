package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.IndexPath())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.NoError(t, err)
	requireContains(t, out, "Wrote sample configuration")
	_, err = os.Stat(target)
	require.NoError(t, err)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.Error(t, err)
	requireContains(t, err.Error(), "--overwrite")

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	require.NoError(t, err)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeFile(t, "broken.toml", []byte("[sync]\nindex_types = [\"holdings\"]\n"))
	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	require.Error(t, err)
	requireContains(t, err.Error(), "load config")
}
