// Package output writes human-facing CLI text, optionally colored.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	stdout       io.Writer = os.Stdout
	stderr       io.Writer = os.Stderr
	debugMode    bool
	colorEnabled = detectColorSupport()
)

// SetWriters redirects output; nil keeps the current writer.
func SetWriters(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

func SetDebug(enabled bool) {
	debugMode = enabled
}

func IsDebug() bool {
	return debugMode
}

func Printf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

func Println(msg string) {
	fmt.Fprintln(stdout, msg)
}

// Errorf writes to stderr with a colored "error:" prefix.
func Errorf(format string, args ...any) {
	fmt.Fprintf(stderr, Colorize("danger", "error:")+" "+format, args...)
}

func Debugf(format string, args ...any) {
	if !debugMode {
		return
	}
	fmt.Fprintf(stdout, Colorize("dim", "[debug]")+" "+format, args...)
}

func SetColor(enabled bool) {
	colorEnabled = enabled
}

func ColorEnabled() bool {
	return colorEnabled
}

var roleCodes = map[string]string{
	"title":   "1;36",
	"success": "1;32",
	"warning": "1;33",
	"danger":  "1;31",
	"dim":     "2",
	"accent":  "1;34",
}

// Colorize wraps text in the ANSI code of role. Unknown roles and disabled
// color return text unchanged.
func Colorize(role, text string) string {
	code, ok := roleCodes[role]
	if !colorEnabled || !ok {
		return text
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}

func detectColorSupport() bool {
	if v := strings.TrimSpace(os.Getenv("FORCE_COLOR")); v != "" && v != "0" {
		return true
	}
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
