package main

import (
	"os"

	"github.com/fleetlink/driverd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
