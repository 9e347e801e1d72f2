package main

import (
	"os"

	"github.com/trustvault/settlement/cmd/settlement/cmd"
)

// Settlement operator CLI
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
