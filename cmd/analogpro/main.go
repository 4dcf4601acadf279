package main

import (
	"os"

	"github.com/1v1expert/AnalogPro/cmd/analogpro/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
