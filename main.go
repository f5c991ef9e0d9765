package main

import (
	"os"

	"zyberhero/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
