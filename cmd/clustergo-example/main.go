package main

import (
	"os"

	"github.com/stlpine/clustergo/cmd/clustergo-example/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
