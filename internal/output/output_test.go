package output

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetWriters(&out, &errOut)
	color, debug := colorEnabled, debugMode
	t.Cleanup(func() {
		SetWriters(os.Stdout, os.Stderr)
		colorEnabled, debugMode = color, debug
	})
	return &out, &errOut
}

func TestColorize(t *testing.T) {
	capture(t)

	SetColor(false)
	assert.Equal(t, "ok", Colorize("success", "ok"))

	SetColor(true)
	assert.True(t, ColorEnabled())
	assert.Equal(t, "\x1b[1;32mok\x1b[0m", Colorize("success", "ok"))
	assert.Equal(t, "ok", Colorize("sparkle", "ok"))
}

func TestDebugf(t *testing.T) {
	out, _ := capture(t)
	SetColor(false)

	Debugf("hidden %d\n", 1)
	assert.Empty(t, out.String())

	SetDebug(true)
	Debugf("shown %d\n", 2)
	assert.Equal(t, "[debug] shown 2\n", out.String())
}

func TestErrorf(t *testing.T) {
	out, errOut := capture(t)
	SetColor(false)

	Errorf("bad %s\n", "thing")
	assert.Empty(t, out.String())
	assert.Equal(t, "error: bad thing\n", errOut.String())
}
