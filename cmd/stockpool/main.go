package main

import (
	"os"

	"github.com/zhwen/stockpool/backend/cmd/stockpool/commands"
)

// main is the entry point for the stockpool CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
