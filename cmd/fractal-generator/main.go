package main

import (
	"os"

	"github.com/UntitledError-09/fractal-generator/cmd/fractal-generator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
