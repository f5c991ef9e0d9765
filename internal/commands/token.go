package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"zyberhero/internal/constants"
	"zyberhero/internal/output"
	"zyberhero/internal/web"
	"zyberhero/internal/webconfig"

	"github.com/spf13/pflag"
)

// RunToken issues a dashboard bearer token signed with the configured secret.
func RunToken(args []string) int {
	cfg, err := webconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	subject := fs.StringP("subject", "s", "dashboard", "token subject")
	role := fs.StringP("role", "r", constants.RoleParent, "role: parent or readonly")
	expire := fs.DurationP("expire", "e", cfg.JWTExpireDuration(), "token lifetime")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	r := strings.ToLower(strings.TrimSpace(*role))
	if r != constants.RoleParent && r != constants.RoleReadonly {
		fmt.Fprintf(os.Stderr, "error: unknown role %q\n", *role)
		return 2
	}
	if *expire <= 0 {
		fmt.Fprintln(os.Stderr, "error: --expire must be positive")
		return 2
	}

	token, expiresAt, err := web.GenerateJWT(strings.TrimSpace(*subject), r, cfg.Auth.JWTSecret, *expire)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		return 1
	}
	output.Println(token)
	output.Debugf("expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return 0
}
