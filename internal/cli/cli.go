package cli

import (
	"fmt"
	"os"
	"strings"

	"zyberhero/internal/commands"
	"zyberhero/internal/output"
	"zyberhero/internal/version"
)

// Run dispatches os.Args style arguments and returns the exit code.
func Run(args []string) int {
	output.SetDebug(strings.EqualFold(os.Getenv("ZH_LOG_MODE"), "debug"))

	if len(args) < 2 {
		return commands.RunServe(nil)
	}

	switch args[1] {
	case "-h", "--help", "help":
		output.Println(usage())
		return 0
	case "-v", "--version", "version":
		output.Printf("zyberhero %s (build %s)\n", version.Version, version.Build)
		return 0
	case "serve":
		return commands.RunServe(args[2:])
	case "migrate":
		return commands.RunMigrate(args[2:])
	case "token":
		return commands.RunToken(args[2:])
	case "doctor":
		return commands.Doctor(args[2:])
	case "settings":
		return handleSettings(args[2:])
	default:
		// flags without a command go to serve
		if strings.HasPrefix(args[1], "-") {
			return commands.RunServe(args[1:])
		}
		output.Errorf("unknown command %q\n\n", args[1])
		output.Println(usage())
		return 2
	}
}

func usage() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "zyberhero - parental monitoring backend")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Usage:")
	fmt.Fprintln(b, "  zyberhero [flags]                 start the API server")
	fmt.Fprintln(b, "  zyberhero <command> [flags]")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Commands:")
	fmt.Fprintln(b, "  serve      start the API server")
	fmt.Fprintln(b, "  migrate    create or update the database schema")
	fmt.Fprintln(b, "  token      issue a dashboard bearer token")
	fmt.Fprintln(b, "  doctor     check config, database and port")
	fmt.Fprintln(b, "  settings   show or change local settings")
	fmt.Fprintln(b, "  version    print the version")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Serve flags:")
	fmt.Fprintln(b, "  -p, --port PORT    listen port")
	fmt.Fprintln(b, "  -b, --bind ADDR    bind address (default 0.0.0.0)")
	fmt.Fprintln(b, "      --auth         require bearer tokens on dashboard routes")
	fmt.Fprintln(b, "      --debug        console debug logging")
	fmt.Fprintln(b, "      --save         persist port, bind and auth")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Examples:")
	fmt.Fprintln(b, "  zyberhero -p 9090 --auth")
	fmt.Fprintln(b, "  zyberhero token --role readonly --expire 720h")
	return b.String()
}

func handleSettings(args []string) int {
	if len(args) == 0 {
		output.Println(settingsUsage())
		return 2
	}
	switch args[0] {
	case "show":
		return commands.SettingsShow(args[1:])
	case "set-mode":
		return commands.SettingsSetMode(args[1:])
	default:
		output.Errorf("unknown settings command %q\n\n", args[0])
		output.Println(settingsUsage())
		return 2
	}
}

func settingsUsage() string {
	return subUsage("settings", []string{
		"show      print the effective config",
		"set-mode  set the log mode (production or debug)",
	})
}

func subUsage(name string, lines []string) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Usage:\n  zyberhero %s <command> [flags]\n\n", name)
	fmt.Fprintln(b, "Commands:")
	for _, line := range lines {
		fmt.Fprintf(b, "  %s\n", line)
	}
	return b.String()
}
