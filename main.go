package main

import (
	"os"

	"github.com/meridian-labs/meridian/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
