package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zyberhero/internal/output"
	"zyberhero/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZH_CONFIG", filepath.Join(dir, "zyberhero.json"))
	t.Setenv("ZH_ENV_FILE", filepath.Join(dir, "none.env"))
	t.Setenv("ZH_JWT_SECRET", "token-test-secret-0123456789abcdef")

	var out bytes.Buffer
	output.SetWriters(&out, &bytes.Buffer{})
	t.Cleanup(func() { output.SetWriters(os.Stdout, os.Stderr) })

	require.Equal(t, 0, RunToken([]string{"--subject", "mum", "--role", "readonly", "--expire", "1h"}))

	claims, err := web.ValidateJWT(strings.TrimSpace(out.String()), "token-test-secret-0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "mum", claims.Subject)
	assert.Equal(t, "readonly", claims.Role)
}

func TestRunToken_BadInput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZH_CONFIG", filepath.Join(dir, "zyberhero.json"))
	t.Setenv("ZH_ENV_FILE", filepath.Join(dir, "none.env"))
	output.SetWriters(&bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(func() { output.SetWriters(os.Stdout, os.Stderr) })

	assert.Equal(t, 2, RunToken([]string{"--role", "admin"}))
	assert.Equal(t, 2, RunToken([]string{"--expire=-1h"}))
	assert.Equal(t, 2, RunToken([]string{"--nope"}))
}
