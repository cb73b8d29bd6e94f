package main

import (
	"os"

	"solaudit/cmd/solaudit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
