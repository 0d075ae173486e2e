package main

import (
	"os"

	"github.com/abuseshield/federation/cmd/federationd/commands"
	"github.com/abuseshield/federation/internal/logger"
)

func main() {
	if err := commands.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
