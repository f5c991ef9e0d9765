package commands

import (
	"fmt"
	"os"

	"zyberhero/internal/database"
	"zyberhero/internal/logger"
	"zyberhero/internal/output"
	"zyberhero/internal/webconfig"
)

// RunMigrate creates or updates the schema and exits.
func RunMigrate(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: zyberhero migrate")
		return 2
	}
	cfg, err := webconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	logger.Init(cfg.Log)

	db, err := database.Open(cfg.Database, cfg.IsDebug())
	if err != nil {
		fmt.Fprintf(os.Stderr, "database init failed: %v\n", err)
		return 1
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		return 1
	}
	output.Printf("schema up to date (%s)\n", cfg.Database.Driver)
	return 0
}
